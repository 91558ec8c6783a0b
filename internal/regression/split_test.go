package regression

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capfactor/internal/types"
)

func TestTrainTestSplit(t *testing.T) {
	tests := []struct {
		n        int
		wantTest int
	}{
		{n: 10, wantTest: 2},
		{n: 11, wantTest: 3},
		{n: 101, wantTest: 21},
		{n: 2, wantTest: 1},
	}
	for _, tt := range tests {
		h, err := TrainTestSplit(tt.n, 0.2, DefaultSeed)
		require.NoError(t, err)
		assert.Len(t, h.Test, tt.wantTest, "n=%d", tt.n)
		assert.Len(t, h.Train, tt.n-tt.wantTest, "n=%d", tt.n)

		all := append(slices.Clone(h.Train), h.Test...)
		slices.Sort(all)
		for i, v := range all {
			require.Equal(t, i, v, "split must partition 0..n-1")
		}
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	a, err := TrainTestSplit(50, 0.2, DefaultSeed)
	require.NoError(t, err)
	b, err := TrainTestSplit(50, 0.2, DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := TrainTestSplit(50, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a.Test, c.Test)
}

func TestTrainTestSplit_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := TrainTestSplit(n, 0.2, DefaultSeed)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationInsufficientData, appErr.Code)
	}

	_, err := TrainTestSplit(10, 1.5, DefaultSeed)
	assert.Error(t, err)
}

func TestKFold(t *testing.T) {
	folds, err := KFold(11, 5, DefaultSeed)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	var sizes []int
	var tested []int
	for _, f := range folds {
		sizes = append(sizes, len(f.Test))
		assert.Len(t, f.Train, 11-len(f.Test))
		for _, i := range f.Test {
			assert.NotContains(t, f.Train, i)
		}
		tested = append(tested, f.Test...)
	}
	assert.Equal(t, []int{3, 2, 2, 2, 2}, sizes)

	slices.Sort(tested)
	for i, v := range tested {
		require.Equal(t, i, v, "every row is tested exactly once")
	}
}

func TestKFold_InsufficientData(t *testing.T) {
	_, err := KFold(3, 5, DefaultSeed)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInsufficientData, appErr.Code)

	_, err = KFold(10, 1, DefaultSeed)
	assert.Error(t, err)
}
