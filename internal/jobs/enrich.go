// Package jobs runs the enrichment and training jobs end to end: sources in,
// artifacts out, with telemetry and the hand-off between the two.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"capfactor/internal/artifacts"
	"capfactor/internal/dataset"
	"capfactor/internal/enrichment"
	"capfactor/internal/metrics"
	"capfactor/internal/types"
)

// Mode selects which enrichment runs a job performs.
type Mode string

const (
	ModeTraining  Mode = "training"
	ModeGeography Mode = "geography"
	ModeAll       Mode = "all"
)

// ParseMode converts a user-supplied string into a Mode. Empty means all.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeTraining, ModeGeography, ModeAll:
		return m, nil
	default:
		return "", types.NewAppError(types.ErrCodeValidationMissingField,
			fmt.Sprintf("unknown mode %q (allowed: training, geography, all)", s), nil)
	}
}

func (m Mode) training() bool  { return m == ModeTraining || m == ModeAll }
func (m Mode) geography() bool { return m == ModeGeography || m == ModeAll }

// SourceOpener opens a plant record source for a plant type.
type SourceOpener func(ctx context.Context, plant types.PlantType) (enrichment.RecordSource, error)

// FetcherFactory returns the weather fetcher for a plant type.
type FetcherFactory func(plant types.PlantType) enrichment.WeatherFetcher

// AreaLoader loads the areas enriched in geography mode.
type AreaLoader interface {
	Load(ctx context.Context, source string) ([]types.Area, error)
}

// TrainingRequester hands finished artifacts over to the trainer.
type TrainingRequester interface {
	RequestTraining(ctx context.Context, plant types.PlantType, models []types.ModelKind) ([]types.TrainingRequest, error)
}

// EnrichRequest is the payload of one enrichment job.
type EnrichRequest struct {
	PlantType types.PlantType `json:"plant_type"`
	Mode      Mode            `json:"mode,omitempty"`
}

// EnrichResult summarizes a finished enrichment job.
type EnrichResult struct {
	RunID     string                  `json:"run_id"`
	Training  *types.EnrichmentStats  `json:"training,omitempty"`
	Geography *types.EnrichmentStats  `json:"geography,omitempty"`
	Artifacts []string                `json:"artifacts"`
	Requests  []types.TrainingRequest `json:"requests,omitempty"`
}

// EnricherConfig holds the Enricher's collaborators.
type EnricherConfig struct {
	OpenSource     SourceOpener
	Fetchers       FetcherFactory
	Areas          AreaLoader
	BoundarySource string
	Store          artifacts.Store
	Metrics        metrics.Recorder

	// Trigger is optional. When set, a full run requests training for
	// every model in Models.
	Trigger TrainingRequester
	Models  []types.ModelKind

	BatchSize     int
	JoinTolerance time.Duration
	Logger        *slog.Logger
}

// Enricher produces the training and prediction artifacts of a plant type.
type Enricher struct {
	cfg    EnricherConfig
	logger *slog.Logger
}

func NewEnricher(cfg EnricherConfig) *Enricher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	return &Enricher{cfg: cfg, logger: logger}
}

// Run enriches the plant records and/or the areas of req.PlantType and
// writes one artifact per mode. A failed training run aborts before the
// geography run starts.
func (e *Enricher) Run(ctx context.Context, req EnrichRequest) (*EnrichResult, error) {
	plant, err := types.ParsePlantType(string(req.PlantType))
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	runID := types.GetRunID(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = types.WithRunID(ctx, runID)
	}
	logger := e.logger.With("run_id", runID, "plant_type", string(plant), "mode", string(mode))
	result := &EnrichResult{RunID: runID}

	pipeline := enrichment.NewPipeline(e.cfg.Fetchers(plant), enrichment.Config{
		PlantType:     plant,
		BatchSize:     e.cfg.BatchSize,
		JoinTolerance: e.cfg.JoinTolerance,
		Logger:        logger,
	})

	if mode.training() {
		stats, err := e.runTraining(ctx, pipeline, plant)
		if err != nil {
			return result, err
		}
		result.Training = &stats
		result.Artifacts = append(result.Artifacts, artifacts.TrainingName(plant))
	}

	if mode.geography() {
		stats, err := e.runGeography(ctx, pipeline, plant)
		if err != nil {
			return result, err
		}
		result.Geography = &stats
		result.Artifacts = append(result.Artifacts, artifacts.PredictionName(plant))
	}

	if mode == ModeAll && e.cfg.Trigger != nil && len(e.cfg.Models) > 0 {
		result.Requests, err = e.cfg.Trigger.RequestTraining(ctx, plant, e.cfg.Models)
		if err != nil {
			return result, err
		}
	}

	logger.InfoContext(ctx, "enrichment job finished", "artifacts", result.Artifacts, "training_requests", len(result.Requests))
	return result, nil
}

func (e *Enricher) runTraining(ctx context.Context, pipeline *enrichment.Pipeline, plant types.PlantType) (types.EnrichmentStats, error) {
	source, err := e.cfg.OpenSource(ctx, plant)
	if err != nil {
		return types.EnrichmentStats{}, err
	}
	records, stats, err := pipeline.RunTraining(ctx, source)
	if err != nil {
		return stats, err
	}
	e.cfg.Metrics.RecordEnrichment(ctx, plant, stats)

	frame := dataset.FromEnriched(records, plant, true)
	if err := artifacts.WriteFrame(ctx, e.cfg.Store, artifacts.TrainingName(plant), frame); err != nil {
		return stats, err
	}
	return stats, nil
}

func (e *Enricher) runGeography(ctx context.Context, pipeline *enrichment.Pipeline, plant types.PlantType) (types.EnrichmentStats, error) {
	areas, err := e.cfg.Areas.Load(ctx, e.cfg.BoundarySource)
	if err != nil {
		return types.EnrichmentStats{}, err
	}
	records, stats := pipeline.RunAreas(ctx, areas)
	e.cfg.Metrics.RecordEnrichment(ctx, plant, stats)

	frame := dataset.FromEnriched(records, plant, false)
	if err := artifacts.WriteFrame(ctx, e.cfg.Store, artifacts.PredictionName(plant), frame); err != nil {
		return stats, err
	}
	return stats, nil
}
