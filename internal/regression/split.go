package regression

import (
	"fmt"
	"math"
	"math/rand/v2"

	"capfactor/internal/types"
)

// newRand returns the deterministic generator used for splits, bootstraps
// and weight initialization. stream separates independent sequences drawn
// from the same seed.
func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Holdout is a disjoint train/test partition of row indices.
type Holdout struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles 0..n-1 with seed and puts the first
// ceil(testFraction·n) indices in the test part.
func TrainTestSplit(n int, testFraction float64, seed uint64) (Holdout, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return Holdout{}, types.NewAppError(types.ErrCodeValidationInsufficientData,
			fmt.Sprintf("test fraction %v must be in (0, 1)", testFraction), nil)
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return Holdout{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInsufficientData,
			"not enough rows for a holdout split", nil, map[string]any{"rows": n})
	}
	perm := newRand(seed, streamSplit).Perm(n)
	return Holdout{Train: perm[nTest:], Test: perm[:nTest]}, nil
}

// KFold shuffles 0..n-1 with seed and partitions it into k folds. The first
// n%k folds hold one extra row. Each returned Holdout tests on one fold and
// trains on the rest.
func KFold(n, k int, seed uint64) ([]Holdout, error) {
	if k < 2 || n < k {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInsufficientData,
			fmt.Sprintf("cannot build %d folds from %d rows", k, n), nil, map[string]any{"rows": n, "folds": k})
	}
	perm := newRand(seed, streamFolds).Perm(n)

	folds := make([]Holdout, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		test := perm[start : start+size]
		train := make([]int, 0, n-size)
		train = append(train, perm[:start]...)
		train = append(train, perm[start+size:]...)
		folds = append(folds, Holdout{Train: train, Test: test})
		start += size
	}
	return folds, nil
}

func selectRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func selectValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
