package regression

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"capfactor/internal/dataset"
	"capfactor/internal/types"
)

// Stage is a step of the engine's lifecycle. Each step requires the one
// before it.
type Stage int

const (
	StageInit Stage = iota
	StagePrepared
	StageTrained
	StageEvaluated
	StageApplied
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StagePrepared:
		return "prepared"
	case StageTrained:
		return "trained"
	case StageEvaluated:
		return "evaluated"
	case StageApplied:
		return "applied"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Default engine settings.
const (
	DefaultTestFraction = 0.2
	DefaultFolds        = 5
)

// Config configures an Engine.
type Config struct {
	Kind      types.ModelKind
	PlantType types.PlantType

	// Target is the column to predict. Defaults to the capacity factor.
	Target string

	TestFraction float64
	Folds        int
	Seed         uint64

	Logger *slog.Logger
	Clock  types.Clock
}

// Engine fits one model family on a training frame and applies it to a
// prediction frame.
type Engine struct {
	cfg      Config
	features []string
	logger   *slog.Logger
	clock    types.Clock

	stage      Stage
	training   *dataset.Frame
	prediction *dataset.Frame

	filledTraining   int
	filledPrediction int

	X             [][]float64
	y             []float64
	holdout       Holdout
	model         Model
	cv            *CrossValidation
	trainDuration time.Duration

	metrics   types.EvaluationMetrics
	actual    []float64
	predicted []float64
	clipped   int
}

// NewEngine validates cfg and fills in defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if _, err := types.ParseModelKind(string(cfg.Kind)); err != nil {
		return nil, err
	}
	if _, err := types.ParsePlantType(string(cfg.PlantType)); err != nil {
		return nil, err
	}
	if cfg.Target == "" {
		cfg.Target = types.ColCapacityFactor
	}
	if cfg.TestFraction == 0 {
		cfg.TestFraction = DefaultTestFraction
	}
	if cfg.Folds == 0 {
		cfg.Folds = DefaultFolds
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Engine{
		cfg:      cfg,
		features: dataset.FeatureColumns(cfg.PlantType),
		logger:   logger.With("plant_type", string(cfg.PlantType), "model", string(cfg.Kind)),
		clock:    clock,
	}, nil
}

// Stage returns the last completed stage.
func (e *Engine) Stage() Stage { return e.stage }

// Features returns the model input columns in order.
func (e *Engine) Features() []string { return slices.Clone(e.features) }

func (e *Engine) advance(from, to Stage) error {
	if e.stage != from {
		return types.NewAppErrorWithDetails(types.ErrCodeStateInvalidTransition,
			fmt.Sprintf("cannot move to %s from %s", to, e.stage), nil,
			map[string]any{"stage": e.stage.String(), "required": from.String()})
	}
	return nil
}

// Prepare derives the temporal features on both frames, zero-fills missing
// numeric values and checks that every feature column is present. The
// frames are modified in place. Nothing is fitted when a column is missing.
func (e *Engine) Prepare(training, prediction *dataset.Frame) error {
	if err := e.advance(StageInit, StagePrepared); err != nil {
		return err
	}
	if err := dataset.AddTemporalFeatures(training); err != nil {
		return fmt.Errorf("training frame: %w", err)
	}
	if err := dataset.AddTemporalFeatures(prediction); err != nil {
		return fmt.Errorf("prediction frame: %w", err)
	}
	if err := training.Require("training", append(e.Features(), e.cfg.Target)...); err != nil {
		return err
	}
	if err := prediction.Require("prediction", e.features...); err != nil {
		return err
	}

	e.filledTraining = training.FillMissing()
	e.filledPrediction = prediction.FillMissing()
	if e.filledPrediction > 0 {
		e.logger.Warn("zero-filled missing values in prediction frame", "cells", e.filledPrediction)
	}

	e.training, e.prediction = training, prediction
	e.X = training.Matrix(e.features)
	e.y = slices.Clone(training.Float(e.cfg.Target))
	e.stage = StagePrepared
	e.logger.Info("prepared frames",
		"training_rows", training.Len(),
		"prediction_rows", prediction.Len(),
		"filled_training_cells", e.filledTraining,
	)
	return nil
}

// Train splits the training frame into holdout parts and fits the model on
// the training part. Gradient boosting additionally runs k-fold cross
// validation over the whole training frame and monitors the holdout part
// for early stopping.
func (e *Engine) Train(ctx context.Context) error {
	if err := e.advance(StagePrepared, StageTrained); err != nil {
		return err
	}
	holdout, err := TrainTestSplit(len(e.X), e.cfg.TestFraction, e.cfg.Seed)
	if err != nil {
		return err
	}
	monitored := e.cfg.Kind == types.ModelXGBoost

	if monitored {
		cv, err := e.crossValidate(ctx)
		if err != nil {
			return err
		}
		e.cv = &cv
		e.logger.Info("cross validation finished", "rmse_mean", cv.Mean, "rmse_std", cv.Std)
	}

	model, err := NewModel(e.cfg.Kind)
	if err != nil {
		return err
	}
	Xtrain, ytrain := selectRows(e.X, holdout.Train), selectValues(e.y, holdout.Train)
	var eval *EvalSet
	if monitored {
		eval = &EvalSet{X: selectRows(e.X, holdout.Test), Y: selectValues(e.y, holdout.Test)}
	}

	start := e.clock.Now()
	if err := model.Fit(ctx, Xtrain, ytrain, eval); err != nil {
		return fmt.Errorf("fit %s: %w", e.cfg.Kind, err)
	}
	e.trainDuration = e.clock.Now().Sub(start)

	e.holdout, e.model = holdout, model
	e.stage = StageTrained
	attrs := []any{"train_rows", len(holdout.Train), "test_rows", len(holdout.Test), "duration", e.trainDuration}
	if m, ok := model.(Monitored); ok {
		attrs = append(attrs, "best_iteration", m.BestIteration())
	}
	e.logger.Info("model trained", attrs...)
	return nil
}

func (e *Engine) crossValidate(ctx context.Context) (CrossValidation, error) {
	folds, err := KFold(len(e.X), e.cfg.Folds, e.cfg.Seed)
	if err != nil {
		return CrossValidation{}, err
	}
	rmse := make([]float64, 0, len(folds))
	for i, fold := range folds {
		model, err := NewModel(e.cfg.Kind)
		if err != nil {
			return CrossValidation{}, err
		}
		Xtest, ytest := selectRows(e.X, fold.Test), selectValues(e.y, fold.Test)
		eval := &EvalSet{X: Xtest, Y: ytest}
		if err := model.Fit(ctx, selectRows(e.X, fold.Train), selectValues(e.y, fold.Train), eval); err != nil {
			return CrossValidation{}, fmt.Errorf("fold %d: %w", i, err)
		}
		score := RMSE(ytest, model.Predict(Xtest))
		e.logger.Debug("fold scored", "fold", i, "rmse", score)
		rmse = append(rmse, score)
	}
	return summarizeFolds(rmse), nil
}

// Evaluate scores the clipped holdout predictions.
func (e *Engine) Evaluate() (types.EvaluationMetrics, error) {
	if err := e.advance(StageTrained, StageEvaluated); err != nil {
		return types.EvaluationMetrics{}, err
	}
	Xtest := selectRows(e.X, e.holdout.Test)
	e.actual = selectValues(e.y, e.holdout.Test)
	e.predicted = e.model.Predict(Xtest)
	ClipNonNegative(e.predicted)

	m := Score(e.actual, e.predicted)
	m.TrainRows = len(e.holdout.Train)
	m.TestRows = len(e.holdout.Test)
	if e.cv != nil {
		mean, std := e.cv.Mean, e.cv.Std
		m.CVRMSEMean, m.CVRMSEStd = &mean, &std
	}
	if mon, ok := e.model.(Monitored); ok {
		best := mon.BestIteration()
		m.BestIteration = &best
	}
	e.metrics = m
	e.stage = StageEvaluated
	e.logger.Info("holdout evaluated", "mse", m.MSE, "rmse", m.RMSE, "mae", m.MAE, "r2", m.R2)
	return m, nil
}

// Apply predicts the target for every prediction row, clips it at zero and
// stores it in the prediction frame's target column.
func (e *Engine) Apply() (*dataset.Frame, error) {
	if err := e.advance(StageEvaluated, StageApplied); err != nil {
		return nil, err
	}
	pred := e.model.Predict(e.prediction.Matrix(e.features))
	e.clipped = ClipNonNegative(pred)
	if err := e.prediction.SetFloat(e.cfg.Target, pred); err != nil {
		return nil, err
	}
	e.stage = StageApplied
	e.logger.Info("model applied", "rows", len(pred), "clipped", e.clipped)
	return e.prediction, nil
}

// Run performs every stage in order and returns the report.
func (e *Engine) Run(ctx context.Context, training, prediction *dataset.Frame) (*Report, error) {
	if err := e.Prepare(training, prediction); err != nil {
		return nil, err
	}
	if err := e.Train(ctx); err != nil {
		return nil, err
	}
	if _, err := e.Evaluate(); err != nil {
		return nil, err
	}
	if _, err := e.Apply(); err != nil {
		return nil, err
	}
	return e.Report()
}

// TrainDuration returns how long the final fit took.
func (e *Engine) TrainDuration() time.Duration { return e.trainDuration }
