package engine

import (
	"sort"
	"sync"
)

// Registry maps variants to the engines able to serve them. It is built
// explicitly at process start and passed to the resolver; there is no
// package-level registry.
type Registry struct {
	mu      sync.RWMutex
	engines map[Variant]Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[Variant]Engine)}
}

// Register binds v to e, replacing any previous binding.
func (r *Registry) Register(v Variant, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[v] = e
}

// Lookup returns the engine registered for v.
func (r *Registry) Lookup(v Variant) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[v]
	return e, ok
}

// Variants lists registered variants in stable order.
func (r *Registry) Variants() []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Variant, 0, len(r.engines))
	for v := range r.engines {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
