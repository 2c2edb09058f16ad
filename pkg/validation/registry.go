package validation

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Factory builds a validator.
type Factory func() (Validator, error)

// Registry maps validator names to factories, populated at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the schema and integrity validators.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("schema", func() (Validator, error) {
		return NewSchema()
	})
	r.Register("integrity", func() (Validator, error) {
		return NewIntegrity(), nil
	})

	return r
}

// Register adds or replaces a validator factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

// Create builds the named validators and chains them in the given order.
func (r *Registry) Create(names ...string) (Validator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	validators := make([]Validator, 0, len(names))

	for _, name := range names {
		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("validator '%s' not registered", name)
		}

		v, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create validator '%s': %w", name, err)
		}

		validators = append(validators, v)
	}

	if len(validators) == 1 {
		return validators[0], nil
	}

	return NewChain(validators...), nil
}

// Names lists the registered validators in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.factories))
}
