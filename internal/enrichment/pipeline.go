package enrichment

import (
	"context"
	"log/slog"
	"time"

	"capfactor/internal/potential"
	"capfactor/internal/types"
)

// DefaultBatchSize is the number of source rows requested per cursor fetch.
const DefaultBatchSize = 10000

// RecordSource is a forward-only cursor over plant records. Next returns an
// empty batch once the source is exhausted.
type RecordSource interface {
	Next(ctx context.Context, n int) ([]types.PlantRecord, error)
	Close(ctx context.Context) error
}

// Config configures a Pipeline.
type Config struct {
	PlantType types.PlantType
	BatchSize int

	// JoinTolerance is the largest allowed distance between a record's instant
	// and a weather hour. Zero requires an exact match.
	JoinTolerance time.Duration

	Logger *slog.Logger
}

// Pipeline enriches one plant type per run. A Pipeline owns its cache, so
// every run starts from an empty one.
type Pipeline struct {
	fetcher   WeatherFetcher
	plantType types.PlantType
	batchSize int
	tolerance time.Duration
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline that fetches weather through fetcher.
func NewPipeline(fetcher WeatherFetcher, cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Pipeline{
		fetcher:   fetcher,
		plantType: cfg.PlantType,
		batchSize: batch,
		tolerance: cfg.JoinTolerance,
		logger:    logger.With("plant_type", string(cfg.PlantType)),
	}
}

// RunTraining streams source in batches and emits one record per plant row
// that has a coordinate, an available series and a matching weather hour.
// Source errors abort the run. The source is closed on every path.
func (p *Pipeline) RunTraining(ctx context.Context, source RecordSource) (records []types.EnrichedRecord, stats types.EnrichmentStats, err error) {
	cache := NewWeatherCache(p.fetcher)
	defer func() {
		if closeErr := source.Close(ctx); closeErr != nil {
			p.logger.WarnContext(ctx, "failed to close record source", "error", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}()

	for {
		batch, fetchErr := source.Next(ctx, p.batchSize)
		if fetchErr != nil {
			return nil, stats, fetchErr
		}
		if len(batch) == 0 {
			break
		}

		for _, rec := range batch {
			stats.RowsRead++

			coord, ok := rec.Coordinate()
			if !ok {
				stats.MissingCoordinate++
				continue
			}

			res := cache.GetOrFetch(ctx, coord)
			if !res.Available() {
				stats.UnavailableSeries++
				continue
			}

			obs, ok := res.Series.Nearest(rec.Instant, p.tolerance)
			if !ok {
				stats.JoinMisses++
				continue
			}

			records = append(records, p.enrich(rec, coord, obs))
		}

		p.logger.DebugContext(ctx, "batch enriched", "batch_rows", len(batch), "rows_read", stats.RowsRead, "rows_emitted", len(records))
	}

	stats.RowsEmitted = len(records)
	stats.Fetches = cache.Fetches()
	stats.FetchFailures = cache.Failures()
	p.logStats(ctx, "training enrichment complete", stats)
	return records, stats, nil
}

// RunAreas emits one record per (area, weather hour) in ascending time order.
// Areas whose series is unavailable are skipped and counted.
func (p *Pipeline) RunAreas(ctx context.Context, areas []types.Area) ([]types.EnrichedRecord, types.EnrichmentStats) {
	cache := NewWeatherCache(p.fetcher)
	var (
		records []types.EnrichedRecord
		stats   types.EnrichmentStats
	)

	for _, area := range areas {
		stats.RowsRead++
		res := cache.GetOrFetch(ctx, area.Coordinate)
		if !res.Available() {
			stats.UnavailableSeries++
			continue
		}
		rec := types.PlantRecord{State: area.State, PlantName: area.Name}
		for _, ts := range res.Series.Times() {
			rec.Instant = ts
			records = append(records, p.enrich(rec, area.Coordinate, res.Series.Observations[ts]))
		}
	}

	stats.RowsEmitted = len(records)
	stats.Fetches = cache.Fetches()
	stats.FetchFailures = cache.Failures()
	p.logStats(ctx, "area enrichment complete", stats)
	return records, stats
}

func (p *Pipeline) enrich(rec types.PlantRecord, coord types.Coordinate, obs types.WeatherObservation) types.EnrichedRecord {
	out := types.EnrichedRecord{
		State:               rec.State,
		Name:                rec.PlantName,
		Instant:             rec.Instant.UTC(),
		Coordinate:          coord,
		Observation:         obs,
		CapacityFactor:      rec.CapacityFactor,
		ScheduledGeneration: rec.ScheduledGeneration,
		VerifiedGeneration:  rec.VerifiedGeneration,
		InstalledCapacity:   rec.InstalledCapacity,
	}
	if p.plantType != types.PlantWind {
		return out
	}

	speed := obs.WindSpeed10m
	wp := potential.Calculate(coord.Lat, &speed, obs.Altitude)
	if wp.Index != nil {
		rounded := potential.Round2(*wp.Index)
		wp.Index = &rounded
	}
	out.Potential = &wp
	out.Observation.WindSpeed10m = potential.Round2(obs.WindSpeed10m)
	out.Observation.WindGusts10m = potential.Round2(obs.WindGusts10m)
	out.Observation.WindDirection10m = potential.Round2(obs.WindDirection10m)
	return out
}

func (p *Pipeline) logStats(ctx context.Context, msg string, stats types.EnrichmentStats) {
	p.logger.InfoContext(ctx, msg,
		"rows_read", stats.RowsRead,
		"rows_emitted", stats.RowsEmitted,
		"rows_dropped", stats.Dropped(),
		"missing_coordinate", stats.MissingCoordinate,
		"join_misses", stats.JoinMisses,
		"unavailable_series", stats.UnavailableSeries,
		"fetches", stats.Fetches,
		"fetch_failures", stats.FetchFailures,
	)
}
