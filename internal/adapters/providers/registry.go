package providers

import (
	"sort"

	"github.com/earnforge/payments-core/internal/ports"
)

// Registry maps provider identifiers to their adapters. It is populated once
// during bootstrap and read-only afterwards, so lookups need no locking.
type Registry struct {
	adapters map[string]ports.ProviderAdapter
}

func NewRegistry(adapters ...ports.ProviderAdapter) *Registry {
	m := make(map[string]ports.ProviderAdapter, len(adapters))
	for _, a := range adapters {
		m[a.ProviderID()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(providerID string) (ports.ProviderAdapter, bool) {
	a, ok := r.adapters[providerID]
	return a, ok
}

func (r *Registry) All() []ports.ProviderAdapter {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]ports.ProviderAdapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.adapters[id])
	}
	return out
}
