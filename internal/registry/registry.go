// Package registry provides a named-strategy lookup used for pluggable
// pipeline pieces (ordering strategies, retriever sources).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"rag-contextkit/internal/domain"
)

// Registry maps names to strategy values of type T.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register adds value under name. Registering an existing name fails instead
// of silently overwriting.
func (r *Registry[T]) Register(name string, value T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateRegistration, name)
	}
	r.entries[name] = value
	return nil
}

// Unregister removes name, reporting whether it was registered.
func (r *Registry[T]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return false
	}
	delete(r.entries, name)
	return true
}

// Get looks up name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[name]
	return v, ok
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
