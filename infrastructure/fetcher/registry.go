// Package fetcher selects the transport responsible for a dependency's
// source location.
package fetcher

import (
	"fmt"

	"github.com/rios0rios0/prefetch/domain"
)

// Registry manages all registered fetcher implementations. Fetchers are
// consulted in registration order; the first match wins.
type Registry struct {
	fetchers []domain.Fetcher
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a fetcher. Registration order is match order.
func (r *Registry) Register(f domain.Fetcher) {
	r.fetchers = append(r.fetchers, f)
}

// For returns the fetcher that handles the given source location.
func (r *Registry) For(sourceLocation string) (domain.Fetcher, error) {
	for _, f := range r.fetchers {
		if f.Matches(sourceLocation) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no fetcher handles source location %q", sourceLocation)
}

// Get returns the fetcher with the given name, or nil if not registered.
func (r *Registry) Get(name string) domain.Fetcher {
	for _, f := range r.fetchers {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Names returns the list of registered fetcher names in match order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fetchers))
	for _, f := range r.fetchers {
		names = append(names, f.Name())
	}
	return names
}
