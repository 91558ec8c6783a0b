// Package enrichment joins plant records (or area centroids) with hourly
// weather series and derives the wind potential columns.
package enrichment

import (
	"context"

	"capfactor/internal/types"
)

// WeatherFetcher fetches the complete series for one coordinate. It never
// returns an error; failures come back as an unavailable FetchResult.
type WeatherFetcher interface {
	Fetch(ctx context.Context, coord types.Coordinate) types.FetchResult
}

// WeatherCache memoizes fetch results per exact coordinate for the lifetime
// of one pipeline run. Unavailable results are cached too. It is not safe for
// concurrent use.
type WeatherCache struct {
	fetcher  WeatherFetcher
	entries  map[types.Coordinate]types.FetchResult
	failures int
}

// NewWeatherCache returns an empty cache backed by fetcher.
func NewWeatherCache(fetcher WeatherFetcher) *WeatherCache {
	return &WeatherCache{
		fetcher: fetcher,
		entries: make(map[types.Coordinate]types.FetchResult),
	}
}

// GetOrFetch returns the cached result for coord, fetching it on first use.
func (c *WeatherCache) GetOrFetch(ctx context.Context, coord types.Coordinate) types.FetchResult {
	if res, ok := c.entries[coord]; ok {
		return res
	}
	res := c.fetcher.Fetch(ctx, coord)
	if !res.Available() {
		c.failures++
	}
	c.entries[coord] = res
	return res
}

// Fetches returns the number of fetcher calls made so far.
func (c *WeatherCache) Fetches() int { return len(c.entries) }

// Failures returns how many of those calls came back unavailable.
func (c *WeatherCache) Failures() int { return c.failures }

// Len returns the number of cached coordinates.
func (c *WeatherCache) Len() int { return len(c.entries) }
