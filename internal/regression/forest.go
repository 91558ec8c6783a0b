package regression

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages bootstrap-sampled regression trees.
type RandomForest struct {
	Trees    int
	MaxDepth int // 0 grows until leaves are pure or too small to split
	MinSplit int
	Seed     uint64

	trees []*regressionTree
}

func NewRandomForest() *RandomForest {
	return &RandomForest{
		Trees:    100,
		MinSplit: 2,
		Seed:     DefaultSeed,
	}
}

// Fit grows the trees concurrently. Tree i draws its bootstrap sample from
// its own stream so the result does not depend on scheduling.
func (m *RandomForest) Fit(ctx context.Context, X [][]float64, y []float64, _ *EvalSet) error {
	if _, err := checkTrainingData(X, y); err != nil {
		return err
	}
	n := len(X)
	cuts, bins := binFeatures(X)
	params := treeParams{maxDepth: m.MaxDepth, minSplit: m.MinSplit}

	trees := make([]*regressionTree, m.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range m.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := newRand(m.Seed, streamForest+uint64(t))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.IntN(n)
			}
			b := &treeBuilder{params: params, cuts: cuts, bins: bins, resid: y}
			trees[t] = b.build(idx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.trees = trees
	return nil
}

func (m *RandomForest) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(m.trees) == 0 {
		return out
	}
	for i, row := range X {
		var sum float64
		for _, t := range m.trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(m.trees))
	}
	return out
}
