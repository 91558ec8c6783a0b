package regression

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"capfactor/internal/types"
)

// ClipNonNegative replaces negative predictions with zero in place and
// returns how many were clipped.
func ClipNonNegative(pred []float64) int {
	clipped := 0
	for i, v := range pred {
		if v < 0 {
			pred[i] = 0
			clipped++
		}
	}
	return clipped
}

// Score computes MSE, RMSE, MAE and R². When y is constant R² is 1 for a
// perfect prediction and 0 otherwise.
func Score(y, pred []float64) types.EvaluationMetrics {
	n := float64(len(y))
	if n == 0 {
		return types.EvaluationMetrics{}
	}
	var sse, sae float64
	for i := range y {
		d := y[i] - pred[i]
		sse += d * d
		sae += math.Abs(d)
	}
	mean := stat.Mean(y, nil)
	var sst float64
	for _, v := range y {
		sst += (v - mean) * (v - mean)
	}

	var r2 float64
	switch {
	case sst > 0:
		r2 = 1 - sse/sst
	case sse == 0:
		r2 = 1
	}

	mse := sse / n
	return types.EvaluationMetrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  sae / n,
		R2:   r2,
	}
}

// RMSE returns the root mean squared error of pred against y.
func RMSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sse float64
	for i := range y {
		d := y[i] - pred[i]
		sse += d * d
	}
	return math.Sqrt(sse / float64(len(y)))
}

// CrossValidation summarizes per-fold RMSE.
type CrossValidation struct {
	FoldRMSE []float64 `json:"fold_rmse"`
	Mean     float64   `json:"mean"`
	Std      float64   `json:"std"`
}

func summarizeFolds(rmse []float64) CrossValidation {
	mean, std := stat.PopMeanStdDev(rmse, nil)
	return CrossValidation{FoldRMSE: rmse, Mean: mean, Std: std}
}
