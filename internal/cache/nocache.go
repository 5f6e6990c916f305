package cache

import "time"

// NoCache satisfies Provider without retaining anything, so call sites can
// disable caching without branching.
type NoCache[V any] struct{}

// NewNoCache returns a cache that never stores.
func NewNoCache[V any]() *NoCache[V] {
	return &NoCache[V]{}
}

func (NoCache[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (NoCache[V]) Set(string, V, time.Duration) {}

func (NoCache[V]) Delete(string) bool { return false }

func (NoCache[V]) Has(string) bool { return false }

func (NoCache[V]) Clear() {}

func (NoCache[V]) Size() int { return 0 }

func (NoCache[V]) Stats() Stats { return Stats{} }
