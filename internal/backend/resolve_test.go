package backend

import (
	"testing"

	"inferd/internal/engine"
	"inferd/internal/engine/enginetest"
)

func fullRegistry() (*engine.Registry, map[engine.Variant]*enginetest.Engine) {
	reg := engine.NewRegistry()
	engines := make(map[engine.Variant]*enginetest.Engine)
	for _, v := range []engine.Variant{engine.CPUModern, engine.CPULegacy, engine.AccelModern, engine.AccelLegacy} {
		e := enginetest.New()
		e.EngineName = v.String()
		engines[v] = e
		reg.Register(v, e)
	}
	return reg, engines
}

func TestResolveFullTable(t *testing.T) {
	reg, _ := fullRegistry()
	cases := []struct {
		accel  bool
		family Family
		want   engine.Variant
	}{
		{false, FamilyModern, engine.CPUModern},
		{false, FamilyLegacy, engine.CPULegacy},
		{true, FamilyModern, engine.AccelModern},
		{true, FamilyLegacy, engine.AccelLegacy},
	}
	for _, c := range cases {
		_, v, err := Resolve(reg, c.accel, c.family)
		if err != nil {
			t.Fatalf("Resolve(%v, %s): %v", c.accel, c.family, err)
		}
		if v != c.want {
			t.Fatalf("Resolve(%v, %s) = %s, want %s", c.accel, c.family, v, c.want)
		}
	}
}

func TestResolveFallsBackSilently(t *testing.T) {
	// No accelerated engines registered at all: accel requests degrade to
	// CPU without an error.
	reg := engine.NewRegistry()
	reg.Register(engine.CPUModern, enginetest.New())
	reg.Register(engine.CPULegacy, enginetest.New())

	_, v, err := Resolve(reg, true, FamilyModern)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != engine.CPUModern {
		t.Fatalf("variant = %s, want cpu-modern", v)
	}

	_, v, err = Resolve(reg, true, FamilyLegacy)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != engine.CPULegacy {
		t.Fatalf("variant = %s, want cpu-legacy", v)
	}
}

func TestResolveLegacyAccelPrefersAccelModernOverCPU(t *testing.T) {
	reg := engine.NewRegistry()
	reg.Register(engine.CPULegacy, enginetest.New())
	reg.Register(engine.AccelModern, enginetest.New())

	_, v, err := Resolve(reg, true, FamilyLegacy)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != engine.AccelModern {
		t.Fatalf("variant = %s, want accel-modern before cpu-legacy", v)
	}
}

func TestResolveDeterministic(t *testing.T) {
	reg, _ := fullRegistry()
	for i := 0; i < 10; i++ {
		_, v, err := Resolve(reg, true, FamilyLegacy)
		if err != nil || v != engine.AccelLegacy {
			t.Fatalf("iteration %d: %s, %v", i, v, err)
		}
	}
}

func TestResolveEmptyChainErrors(t *testing.T) {
	reg := engine.NewRegistry()
	reg.Register(engine.CPUModern, enginetest.New())

	_, _, err := Resolve(reg, false, FamilyLegacy)
	if !IsNoEngine(err) {
		t.Fatalf("err = %v, want no-engine", err)
	}
}
