package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	m := Score([]float64{1, 2, 3}, []float64{1, 2, 4})
	assert.InDelta(t, 1.0/3, m.MSE, 1e-12)
	assert.InDelta(t, math.Sqrt(1.0/3), m.RMSE, 1e-12)
	assert.InDelta(t, 1.0/3, m.MAE, 1e-12)
	assert.InDelta(t, 0.5, m.R2, 1e-12)

	perfect := Score([]float64{0.1, 0.5, 0.9}, []float64{0.1, 0.5, 0.9})
	assert.Zero(t, perfect.MSE)
	assert.Equal(t, 1.0, perfect.R2)
}

func TestScore_ConstantTarget(t *testing.T) {
	assert.Equal(t, 1.0, Score([]float64{2, 2}, []float64{2, 2}).R2)
	assert.Equal(t, 0.0, Score([]float64{2, 2}, []float64{1, 3}).R2)
}

func TestScore_Empty(t *testing.T) {
	assert.Zero(t, Score(nil, nil))
	assert.Zero(t, RMSE(nil, nil))
}

func TestClipNonNegative(t *testing.T) {
	pred := []float64{-0.5, 0, 0.3, -1e-9}
	assert.Equal(t, 2, ClipNonNegative(pred))
	assert.Equal(t, []float64{0, 0, 0.3, 0}, pred)
}

func TestSummarizeFolds(t *testing.T) {
	cv := summarizeFolds([]float64{1, 3})
	assert.InDelta(t, 2, cv.Mean, 1e-12)
	assert.InDelta(t, 1, cv.Std, 1e-12, "population standard deviation")
	assert.Equal(t, []float64{1, 3}, cv.FoldRMSE)
}

func nan() float64 { return math.NaN() }
