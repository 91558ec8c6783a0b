package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"capfactor/internal/types"
)

// DefaultSeriesTTL is how long a persisted series stays in Redis.
const DefaultSeriesTTL = 30 * 24 * time.Hour

// RedisClient is the subset of the go-redis client used by SeriesCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// SeriesCacheConfig configures a SeriesCache.
type SeriesCacheConfig struct {
	// Namespace separates series fetched with different queries, e.g.
	// "wind:2024-01-01:2025-09-26".
	Namespace string
	TTL       time.Duration
	Logger    *slog.Logger
}

// SeriesCache is a WeatherFetcher that keeps available series in Redis so
// later runs skip the upstream call. Unavailable results are never stored.
// Redis errors are logged and the call falls through to the wrapped fetcher.
type SeriesCache struct {
	next      WeatherFetcher
	client    RedisClient
	namespace string
	ttl       time.Duration
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	logger    *slog.Logger

	hits int
}

// NewSeriesCache wraps next with a Redis-backed series cache.
func NewSeriesCache(next WeatherFetcher, client RedisClient, cfg SeriesCacheConfig) (*SeriesCache, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSeriesTTL
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &SeriesCache{
		next:      next,
		client:    client,
		namespace: cfg.Namespace,
		ttl:       ttl,
		encoder:   enc,
		decoder:   dec,
		logger:    logger,
	}, nil
}

// Hits returns how many fetches were answered from Redis.
func (c *SeriesCache) Hits() int { return c.hits }

// Key returns the Redis key of coord. Coordinates are formatted with the
// shortest exact representation, so distinct values never share a key.
func (c *SeriesCache) Key(coord types.Coordinate) string {
	return "weather:" + c.namespace + ":" +
		strconv.FormatFloat(coord.Lat, 'g', -1, 64) + "," +
		strconv.FormatFloat(coord.Lon, 'g', -1, 64)
}

// Fetch returns the persisted series for coord, or fetches and persists it.
func (c *SeriesCache) Fetch(ctx context.Context, coord types.Coordinate) types.FetchResult {
	key := c.Key(coord)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		series, decodeErr := c.decode(raw)
		if decodeErr == nil {
			c.hits++
			return types.FetchResult{Series: series}
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached series", "key", key, "error", decodeErr)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "series cache read failed", "key", key, "error", err)
	}

	res := c.next.Fetch(ctx, coord)
	if !res.Available() {
		return res
	}

	payload, err := c.encode(res.Series)
	if err != nil {
		c.logger.WarnContext(ctx, "series cache encode failed", "key", key, "error", err)
		return res
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "series cache write failed", "key", key, "error", err)
	}
	return res
}

// cachedSeries is the stored form of a WeatherSeries. Observations are kept
// in time order.
type cachedSeries struct {
	Lat          float64                    `json:"lat"`
	Lon          float64                    `json:"lon"`
	Elevation    *float64                   `json:"elevation,omitempty"`
	Observations []types.WeatherObservation `json:"observations"`
}

func (c *SeriesCache) encode(s *types.WeatherSeries) ([]byte, error) {
	stored := cachedSeries{
		Lat:          s.Coordinate.Lat,
		Lon:          s.Coordinate.Lon,
		Elevation:    s.Elevation,
		Observations: make([]types.WeatherObservation, 0, len(s.Observations)),
	}
	for _, obs := range s.Observations {
		stored.Observations = append(stored.Observations, obs)
	}
	slices.SortFunc(stored.Observations, func(a, b types.WeatherObservation) int {
		return a.Time.Compare(b.Time)
	})

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *SeriesCache) decode(raw []byte) (*types.WeatherSeries, error) {
	data, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	var stored cachedSeries
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	s := types.NewWeatherSeries(types.Coordinate{Lat: stored.Lat, Lon: stored.Lon}, stored.Elevation)
	for _, obs := range stored.Observations {
		s.Observations[obs.Time.UTC()] = obs
	}
	return s, nil
}
