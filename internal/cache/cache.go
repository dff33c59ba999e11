// Package cache wraps a fixed-capacity LRU behind the read-through interface
// the adapter stores share. Capacity pressure fires an eviction callback so
// evicted entries can spill to the archive.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EvictFunc is invoked for each entry dropped by capacity pressure.
type EvictFunc[V any] func(key string, value V)

// Store is a bounded, string-keyed LRU store.
type Store[V any] struct {
	lru *lru.Cache[string, V]
}

// New creates a store with the given capacity. onEvict may be nil.
func New[V any](capacity int, onEvict EvictFunc[V]) (*Store[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	var cb func(string, V)
	if onEvict != nil {
		cb = func(k string, v V) { onEvict(k, v) }
	}

	inner, err := lru.NewWithEvict[string, V](capacity, cb)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Store[V]{lru: inner}, nil
}

// Get returns the cached value and whether it was present.
func (s *Store[V]) Get(key string) (V, bool) {
	return s.lru.Get(key)
}

// Put inserts or replaces a value. Last writer wins on the same key.
func (s *Store[V]) Put(key string, value V) {
	s.lru.Add(key, value)
}

// Remove drops a key without invoking the eviction callback semantics of
// capacity pressure (the callback still fires, matching LRU removal).
func (s *Store[V]) Remove(key string) {
	s.lru.Remove(key)
}

// Keys returns the cached keys, oldest first.
func (s *Store[V]) Keys() []string {
	return s.lru.Keys()
}

// Len returns the number of cached entries.
func (s *Store[V]) Len() int {
	return s.lru.Len()
}

// Purge drops every entry.
func (s *Store[V]) Purge() {
	s.lru.Purge()
}
