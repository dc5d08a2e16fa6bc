package engine

import (
	"math"
	"testing"
)

type nullEngine struct{ name string }

func (n nullEngine) Name() string                            { return n.name }
func (n nullEngine) Load(string, ModelParams) (Model, error) { return nil, ErrUnsupported("load") }
func (n nullEngine) NewCache(int64) (Cache, error)           { return nil, ErrUnsupported("cache") }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup(CPUModern); ok {
		t.Fatalf("empty registry returned an engine")
	}

	r.Register(CPUModern, nullEngine{name: "a"})
	r.Register(AccelModern, nullEngine{name: "b"})

	e, ok := r.Lookup(CPUModern)
	if !ok || e.Name() != "a" {
		t.Fatalf("Lookup(cpu-modern) = %v, %v", e, ok)
	}

	// Re-registering replaces the binding.
	r.Register(CPUModern, nullEngine{name: "c"})
	e, _ = r.Lookup(CPUModern)
	if e.Name() != "c" {
		t.Fatalf("re-register did not replace: got %s", e.Name())
	}
}

func TestRegistryVariantsStableOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(CPULegacy, nullEngine{})
	r.Register(AccelModern, nullEngine{})
	r.Register(CPUModern, nullEngine{})

	want := []Variant{AccelModern, CPULegacy, CPUModern}
	got := r.Variants()
	if len(got) != len(want) {
		t.Fatalf("Variants() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Variants() = %v, want %v", got, want)
		}
	}
}

func TestEOSBanForcesNegativeInfinity(t *testing.T) {
	logits := []float32{0.1, 0.9, 0.5}
	out := EOSBan{ID: 1}.Process(-1, nil, logits)
	if !math.IsInf(float64(out[1]), -1) {
		t.Fatalf("banned logit = %v, want -Inf", out[1])
	}
	if out[0] != 0.1 || out[2] != 0.5 {
		t.Fatalf("other logits changed: %v", out)
	}
}

func TestEOSBanUnknownIDLeavesLogits(t *testing.T) {
	logits := []float32{0.1, 0.9}
	out := EOSBan{ID: -1}.Process(-1, nil, logits)
	if out[0] != 0.1 || out[1] != 0.9 {
		t.Fatalf("logits changed for unknown id: %v", out)
	}
}
