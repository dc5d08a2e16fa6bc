// Package backend selects the engine variant for a model: it sniffs the
// file's format family and walks a fixed fallback chain from the available
// hardware to a registered engine. Resolution is pure dispatch; a missing
// accelerated variant degrades silently and only an entirely empty registry
// is an error.
package backend

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"inferd/internal/common/fsutil"
)

// Family is the model container format family.
type Family string

const (
	// FamilyModern is the gguf container.
	FamilyModern Family = "modern"
	// FamilyLegacy covers the ggml-era containers (ggml, ggmf, ggjt).
	FamilyLegacy Family = "legacy"
)

func (f Family) String() string { return string(f) }

// Leading uint32 magics, little-endian as written on disk.
const (
	magicGGUF = 0x46554747 // "GGUF"
	magicGGML = 0x67676d6c
	magicGGMF = 0x67676d66
	magicGGJT = 0x67676a74
)

// DetectFamily sniffs the leading magic of the file at path. Files too
// short to carry a magic, or with an unknown one, fall back to the file
// extension; unknown extensions count as modern.
func DetectFamily(path string) (Family, error) {
	head, err := fsutil.ReadHead(path, 4)
	if err != nil {
		return "", err
	}
	if len(head) == 4 {
		switch binary.LittleEndian.Uint32(head) {
		case magicGGUF:
			return FamilyModern, nil
		case magicGGML, magicGGMF, magicGGJT:
			return FamilyLegacy, nil
		}
	}
	return familyFromName(path), nil
}

func familyFromName(path string) Family {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ggml", ".ggmf", ".ggjt":
		return FamilyLegacy
	}
	if strings.Contains(strings.ToLower(filepath.Base(path)), "ggml") {
		return FamilyLegacy
	}
	return FamilyModern
}
