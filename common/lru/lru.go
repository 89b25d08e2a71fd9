// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// Package lru provides a type-safe, thread-safe wrapper around
// hashicorp/golang-lru for use as the DNS discovery parse cache.
package lru

import (
	hashicorplru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a fixed-size, thread-safe LRU cache.
type Cache[K comparable, V any] struct {
	cache *hashicorplru.Cache[K, V]
}

// NewCache creates a cache with the given capacity. Capacity <= 0 is
// treated as 1, since hashicorp/golang-lru rejects such a size.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	c, err := hashicorplru.New[K, V](capacity)
	if err != nil {
		// Only returns an error for capacity <= 0, already excluded above.
		panic(err)
	}
	return &Cache[K, V]{cache: c}
}

// Add inserts or updates a value, evicting the least recently used
// entry if the cache is full. Eviction order is not load-bearing for
// discovery correctness: an evicted entry is simply re-fetched and
// re-parsed on demand.
func (c *Cache[K, V]) Add(key K, value V) (evicted bool) {
	return c.cache.Add(key, value)
}

// Get returns the value for key, if present, marking it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.cache.Get(key)
}

// Contains reports whether key is present without updating recency.
func (c *Cache[K, V]) Contains(key K) bool {
	return c.cache.Contains(key)
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *Cache[K, V]) Purge() {
	c.cache.Purge()
}
