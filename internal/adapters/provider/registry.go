// Package provider wires the concrete payment adapters behind the
// uniform ProviderAdapter contract.
package provider

import (
	"sort"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
)

// Registry holds the adapters enabled by configuration.
type Registry struct {
	adapters map[domain.ProviderID]ports.ProviderAdapter
}

var _ ports.ProviderRegistry = (*Registry)(nil)

func NewRegistry(adapters ...ports.ProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[domain.ProviderID]ports.ProviderAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

func (r *Registry) Lookup(id domain.ProviderID) (ports.ProviderAdapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, domain.NewProviderUnavailableError(id)
	}
	return a, nil
}

func (r *Registry) Enabled() []domain.ProviderID {
	ids := make([]domain.ProviderID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
