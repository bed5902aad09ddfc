package mapbox

import (
	"context"
	"fmt"

	"github.com/couchcryptid/agrimeteo-etl/internal/cache"
	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/couchcryptid/agrimeteo-etl/internal/observability"
)

// CachedLookup wraps a PlaceLookup with an in-memory LRU cache keyed by the
// rounded coordinates.
type CachedLookup struct {
	inner   domain.PlaceLookup
	cache   *cache.LRU[string, domain.PlaceResult]
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a lookup.
func NewCachedLookup(inner domain.PlaceLookup, maxEntries int, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   cache.New[string, domain.PlaceResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLookup) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.PlaceResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.Put(key, result)
	}
	return result, nil
}
