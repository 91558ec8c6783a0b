package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"capfactor/internal/artifacts"
	"capfactor/internal/db"
	"capfactor/internal/metrics"
	"capfactor/internal/regression"
	"capfactor/internal/types"
)

// ModelRunStore persists training outcomes.
type ModelRunStore interface {
	Create(ctx context.Context, run db.ModelRun) (uuid.UUID, error)
}

// TrainerConfig holds the Trainer's collaborators.
type TrainerConfig struct {
	Store   artifacts.Store
	Runs    ModelRunStore // optional
	Metrics metrics.Recorder
	Clock   types.Clock
	Logger  *slog.Logger
}

// Trainer fits a model on a training artifact and writes the forecast and
// evaluation artifacts.
type Trainer struct {
	cfg    TrainerConfig
	logger *slog.Logger
}

func NewTrainer(cfg TrainerConfig) *Trainer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Train runs every engine stage for req and stores the results.
func (t *Trainer) Train(ctx context.Context, req types.TrainingRequest) (*regression.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RunID != "" {
		ctx = types.WithRunID(ctx, req.RunID)
	}
	logger := t.logger.With("run_id", req.RunID)

	training, err := artifacts.ReadFrame(ctx, t.cfg.Store, req.TrainingArtifact)
	if err != nil {
		return nil, err
	}
	prediction, err := artifacts.ReadFrame(ctx, t.cfg.Store, req.PredictionArtifact)
	if err != nil {
		return nil, err
	}

	engine, err := regression.NewEngine(regression.Config{
		Kind:      req.Model,
		PlantType: req.PlantType,
		Logger:    logger,
		Clock:     t.cfg.Clock,
	})
	if err != nil {
		return nil, err
	}
	report, err := engine.Run(ctx, training, prediction)
	if err != nil {
		return nil, err
	}

	if err := artifacts.WriteFrame(ctx, t.cfg.Store, artifacts.ForecastName(req.PlantType, req.Model), report.Forecast); err != nil {
		return report, err
	}
	if err := artifacts.WriteJSON(ctx, t.cfg.Store, artifacts.EvaluationName(req.PlantType, req.Model), report); err != nil {
		return report, err
	}

	t.cfg.Metrics.RecordEvaluation(ctx, req.PlantType, req.Model, report.Metrics, engine.TrainDuration())

	if t.cfg.Runs != nil {
		id, err := t.cfg.Runs.Create(ctx, db.ModelRun{
			PlantType: req.PlantType,
			Model:     req.Model,
			Metrics:   report.Metrics,
			TrainedAt: t.cfg.Clock.Now(),
		})
		if err != nil {
			return report, err
		}
		logger.InfoContext(ctx, "model run recorded", "model_run_id", id.String())
	}
	return report, nil
}
