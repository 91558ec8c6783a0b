// Package regression fits capacity-factor models on enriched plant records
// and applies them to enriched area records.
package regression

import (
	"context"
	"fmt"

	"capfactor/internal/types"
)

// DefaultSeed seeds every random choice the engine and its models make.
const DefaultSeed uint64 = 42

// Random streams drawn from the same seed.
const (
	streamSplit uint64 = iota
	streamFolds
	streamBoosting
	streamMLP
	streamForest // tree i of a forest uses streamForest+i
)

// EvalSet is a labelled set a model scores itself against while fitting.
type EvalSet struct {
	X [][]float64
	Y []float64
}

// Model is a regression model over row-major feature matrices.
type Model interface {
	// Fit trains the model. eval is optional and only used by models that
	// monitor a validation set.
	Fit(ctx context.Context, X [][]float64, y []float64, eval *EvalSet) error
	// Predict returns one raw (unclipped) prediction per row.
	Predict(X [][]float64) []float64
}

// Monitored is implemented by models that record per-round training and
// validation error.
type Monitored interface {
	History() EvalHistory
	BestIteration() int
}

// LossTracked is implemented by models that record their training loss per
// epoch.
type LossTracked interface {
	LossCurve() []float64
}

// EvalHistory holds the training curves of a model: RMSE per boosting round
// (Validation is empty without an eval set) or loss per epoch.
type EvalHistory struct {
	Train      []float64 `json:"train_rmse,omitempty"`
	Validation []float64 `json:"validation_rmse,omitempty"`
	Loss       []float64 `json:"loss,omitempty"`
}

// NewModel constructs a model of the given family with its fixed
// hyperparameters.
func NewModel(kind types.ModelKind) (Model, error) {
	switch kind {
	case types.ModelLinearRegression:
		return NewLinearRegression(), nil
	case types.ModelRandomForest:
		return NewRandomForest(), nil
	case types.ModelXGBoost:
		return NewGradientBoosting(), nil
	case types.ModelMLP:
		return NewMLP(), nil
	default:
		return nil, types.NewAppError(types.ErrCodeConfigInvalidModel, fmt.Sprintf("unknown model %q", kind), nil)
	}
}

// checkTrainingData rejects empty, ragged or mismatched inputs and returns
// the feature count.
func checkTrainingData(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, types.NewAppError(types.ErrCodeValidationInsufficientData, "no training rows", nil)
	}
	if len(X) != len(y) {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("feature rows (%d) and targets (%d) differ", len(X), len(y)), nil)
	}
	p := len(X[0])
	if p == 0 {
		return 0, types.NewAppError(types.ErrCodeConfigFeatureMismatch, "no feature columns", nil)
	}
	for i, row := range X {
		if len(row) != p {
			return 0, types.NewAppErrorWithDetails(types.ErrCodeConfigFeatureMismatch,
				"ragged feature matrix", nil, map[string]any{"row": i, "width": len(row), "expected": p})
		}
	}
	return p, nil
}
