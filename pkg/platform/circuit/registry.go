package circuit

import (
	"sort"
	"sync"
)

// Registry hands out one Breaker per call-site name. It is passed explicitly
// to the components that need protection; there is no package-level instance.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	defaults []Option
}

// NewRegistry creates a registry whose breakers start from defaults.
func NewRegistry(defaults ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// Get returns the breaker for name, creating it with the registry defaults
// followed by opts on first use. Options passed on later calls are ignored.
func (r *Registry) Get(name string, opts ...Option) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	all := make([]Option, 0, len(r.defaults)+len(opts))
	all = append(all, r.defaults...)
	all = append(all, opts...)
	b := New(name, all...)
	r.breakers[name] = b
	return b
}

// Snapshots returns every registered breaker ordered by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
