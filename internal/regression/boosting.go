package regression

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"
)

// GradientBoosting is a squared-error gradient boosted tree ensemble with
// L1/L2 regularized leaves and histogram splits.
type GradientBoosting struct {
	Rounds        int
	LearningRate  float64
	MaxDepth      int
	Subsample     float64
	Lambda        float64
	Alpha         float64
	EarlyStopping int // rounds without validation improvement; 0 disables
	Seed          uint64

	base    float64
	trees   []*regressionTree
	history EvalHistory
	best    int
}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{
		Rounds:        1000,
		LearningRate:  0.1,
		MaxDepth:      10,
		Subsample:     0.9,
		Lambda:        2,
		Alpha:         1,
		EarlyStopping: 50,
		Seed:          DefaultSeed,
	}
}

// Fit adds one tree per round. With an eval set the ensemble is cut back to
// the round with the lowest validation RMSE once EarlyStopping rounds pass
// without a strictly lower one.
func (m *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []float64, eval *EvalSet) error {
	if _, err := checkTrainingData(X, y); err != nil {
		return err
	}
	n := len(X)
	cuts, bins := binFeatures(X)
	rng := newRand(m.Seed, streamBoosting)
	params := treeParams{maxDepth: m.MaxDepth, minSplit: 2, lambda: m.Lambda, alpha: m.Alpha}

	m.base = stat.Mean(y, nil)
	m.trees = m.trees[:0]
	m.history = EvalHistory{}
	m.best = -1

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.base
	}
	var evalPred []float64
	if eval != nil {
		evalPred = make([]float64, len(eval.X))
		for i := range evalPred {
			evalPred[i] = m.base
		}
	}

	resid := make([]float64, n)
	idx := make([]int, 0, n)
	bestScore := math.Inf(1)
	stale := 0
	for round := 0; round < m.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		idx = idx[:0]
		for i := 0; i < n; i++ {
			if rng.Float64() < m.Subsample {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			idx = append(idx, rng.IntN(n))
		}

		b := &treeBuilder{params: params, cuts: cuts, bins: bins, resid: resid}
		tree := b.build(idx)
		tree.scale(m.LearningRate)
		m.trees = append(m.trees, tree)

		for i, row := range X {
			pred[i] += tree.predict(row)
		}
		m.history.Train = append(m.history.Train, RMSE(y, pred))

		if eval == nil {
			continue
		}
		for i, row := range eval.X {
			evalPred[i] += tree.predict(row)
		}
		score := RMSE(eval.Y, evalPred)
		m.history.Validation = append(m.history.Validation, score)
		if score < bestScore {
			bestScore, m.best, stale = score, round, 0
			continue
		}
		stale++
		if m.EarlyStopping > 0 && stale >= m.EarlyStopping {
			break
		}
	}

	if eval != nil && m.best >= 0 {
		m.trees = m.trees[:m.best+1]
	} else {
		m.best = len(m.trees) - 1
	}
	return nil
}

func (m *GradientBoosting) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		v := m.base
		for _, t := range m.trees {
			v += t.predict(row)
		}
		out[i] = v
	}
	return out
}

// History returns the per-round RMSE recorded during the last Fit.
func (m *GradientBoosting) History() EvalHistory { return m.history }

// BestIteration returns the zero-based round the ensemble was cut back to.
func (m *GradientBoosting) BestIteration() int { return m.best }
