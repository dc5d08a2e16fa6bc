package backend

import "inferd/internal/engine"

// Chain returns the variant preference order for a hardware/family pair.
// The accelerated chains end in a CPU variant so machines without the
// accelerated engines still serve every model; a legacy model on
// accelerated hardware additionally tries the accel-modern build, which
// historically shipped more often than the accel-legacy one.
func Chain(accel bool, family Family) []engine.Variant {
	switch {
	case !accel && family == FamilyLegacy:
		return []engine.Variant{engine.CPULegacy}
	case !accel:
		return []engine.Variant{engine.CPUModern}
	case family == FamilyLegacy:
		return []engine.Variant{engine.AccelLegacy, engine.AccelModern, engine.CPULegacy}
	default:
		return []engine.Variant{engine.AccelModern, engine.CPUModern}
	}
}

// Resolve walks the chain and returns the first registered engine. The
// walk itself never fails and has no side effects; an error means the
// registry holds no engine at all for the family, which is a process
// configuration problem rather than a per-request one.
func Resolve(reg *engine.Registry, accel bool, family Family) (engine.Engine, engine.Variant, error) {
	for _, v := range Chain(accel, family) {
		if e, ok := reg.Lookup(v); ok {
			return e, v, nil
		}
	}
	return nil, "", ErrNoEngine(family.String())
}
