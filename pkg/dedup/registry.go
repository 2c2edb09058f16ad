package dedup

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Factory builds a deduplicator from string settings.
type Factory func(settings map[string]any) (Deduplicator, error)

// Registry maps strategy names to factories. Strategies are registered at startup,
// so adding one never touches the batch engine.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in exact and fuzzy strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("exact", func(map[string]any) (Deduplicator, error) {
		return NewExact(), nil
	})

	r.Register("fuzzy", func(settings map[string]any) (Deduplicator, error) {
		threshold := DefaultNameThreshold

		if raw, ok := settings["threshold"]; ok {
			value, ok := raw.(float64)
			if !ok {
				return nil, fmt.Errorf("fuzzy threshold must be a number, got %T", raw)
			}

			threshold = value
		}

		return NewFuzzy(threshold)
	})

	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

// Create builds the named strategy.
func (r *Registry) Create(name string, settings map[string]any) (Deduplicator, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("dedup strategy '%s' not registered", name)
	}

	return factory(settings)
}

// Names lists the registered strategies in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.factories))
}
