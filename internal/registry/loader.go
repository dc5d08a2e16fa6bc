package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inferd/internal/backend"
	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// LoadDir scans a directory for model files and builds a catalog from the
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. The format family is sniffed from the file header so
// the resolver does not have to trust extensions.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isModelFile(name) {
			continue
		}
		p := filepath.Join(abs, name)
		m := types.Model{ID: name, Name: name, Path: p, Quant: deriveQuant(name)}
		if info, err := e.Info(); err == nil {
			m.SizeBytes = info.Size()
		}
		if fam, err := backend.DetectFamily(p); err == nil {
			m.Family = fam.String()
		}
		models = append(models, m)
	}
	return models, nil
}

// isModelFile accepts gguf plus the legacy ggml-era containers, which were
// usually shipped as .bin.
func isModelFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gguf", ".ggml", ".ggmf", ".ggjt", ".bin":
		return true
	}
	return false
}

// deriveQuant pulls a quantization label like "q4_k_m" or "f16" out of the
// filename, if one is present.
func deriveQuant(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.FieldsFunc(strings.ToLower(base), func(r rune) bool {
		return r == '.' || r == '-'
	})
	for _, p := range parts {
		if p == "f16" || p == "f32" {
			return p
		}
		if len(p) >= 2 && p[0] == 'q' && p[1] >= '0' && p[1] <= '9' {
			return p
		}
	}
	return ""
}
