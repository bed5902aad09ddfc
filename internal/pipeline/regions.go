package pipeline

import (
	"github.com/couchcryptid/agrimeteo-etl/internal/cache"
	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
)

// RegionKey identifies a region layer by the fingerprints of the inputs it
// was built from.
type RegionKey struct {
	Registry string
	Grid     string
}

// RegionCache memoizes dissolved region layers. A layer depends only on the
// geometry registry and the grid point layout, never on the query year.
type RegionCache struct {
	lru *cache.LRU[RegionKey, *domain.RegionSet]
}

// NewRegionCache creates a cache holding up to size region layers.
func NewRegionCache(size int) *RegionCache {
	return &RegionCache{lru: cache.New[RegionKey, *domain.RegionSet](size)}
}

// Get returns the cached layer for key.
func (c *RegionCache) Get(key RegionKey) (*domain.RegionSet, bool) {
	return c.lru.Get(key)
}

// Put stores a layer under key.
func (c *RegionCache) Put(key RegionKey, set *domain.RegionSet) {
	c.lru.Put(key, set)
}

// Invalidate drops the layer for key, if any.
func (c *RegionCache) Invalidate(key RegionKey) {
	c.lru.Remove(key)
}

// Purge drops every cached layer.
func (c *RegionCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached layers.
func (c *RegionCache) Len() int {
	return c.lru.Len()
}
