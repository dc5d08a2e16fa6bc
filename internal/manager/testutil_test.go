package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/engine/enginetest"
	"inferd/pkg/types"
)

// createModelFile writes a gguf-magic file of roughly sizeMB megabytes
// and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	if _, err := f.Write([]byte("GGUF")); err != nil {
		t.Fatalf("write magic: %v", err)
	}
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return p
}

// fakeRegistry registers the fake engine for both CPU variants.
func fakeRegistry(fake *enginetest.Engine) *engine.Registry {
	reg := engine.NewRegistry()
	reg.Register(engine.CPUModern, fake)
	reg.Register(engine.CPULegacy, fake)
	return reg
}

// testManager builds a manager over the fake engine and closes it on
// cleanup. Adjust cfg before first use only.
func testManager(t *testing.T, fake *enginetest.Engine, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.Engines == nil {
		cfg.Engines = fakeRegistry(fake)
	}
	m := New(cfg, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// oneModelManager is the common single-model setup: a 1MB file under a
// temp dir, registered as id.
func oneModelManager(t *testing.T, fake *enginetest.Engine, id string) *Manager {
	t.Helper()
	p := createModelFile(t, t.TempDir(), id+".gguf", 1)
	return testManager(t, fake, ManagerConfig{
		Registry:     []types.Model{{ID: id, Path: p}},
		DefaultModel: id,
	})
}

// errWriter writes once, then fails.
type errWriter struct{ wrote int }

func (e *errWriter) Write(p []byte) (int, error) {
	if e.wrote == 0 {
		e.wrote += len(p)
		return len(p), nil
	}
	return 0, os.ErrClosed
}
