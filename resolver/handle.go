package resolver

import (
	"context"

	"github.com/rios0rios0/prefetch/domain"
	"github.com/zclconf/go-cty/cty"
)

// Handle is the caller's reference to one declared dependency. Handles for
// the same name are interchangeable: they share the declaration's state.
type Handle struct {
	resolver *Resolver
	name     string
}

// Name returns the dependency name the handle refers to.
func (h *Handle) Name() string {
	return h.name
}

// SetOption binds a build option to this dependency. See Resolver.SetOption.
func (h *Handle) SetOption(key string, value cty.Value) error {
	return h.resolver.SetOption(h.name, key, value)
}

// Materialize fetches the dependency into the local cache, or reuses the
// intact cache entry, and applies the pending option bindings. Calling it
// again after success is a no-op returning the existing result. A failed
// materialization leaves the dependency unmaterialized and retryable.
func (h *Handle) Materialize(ctx context.Context) (*domain.MaterializedDependency, error) {
	return h.resolver.materialize(ctx, h.name)
}

// Consume exposes the dependency's build targets. Consuming an
// unmaterialized dependency materializes it first (lazy on first use),
// which means fetch and configuration errors can surface here too.
func (h *Handle) Consume(ctx context.Context) (domain.BuildTargets, error) {
	materialized, err := h.resolver.materialize(ctx, h.name)
	if err != nil {
		return domain.BuildTargets{}, err
	}
	return materialized.Targets, nil
}
