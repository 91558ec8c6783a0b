package regression

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"capfactor/internal/types"
)

// linearRcond is the relative singular value below which a direction is
// treated as degenerate.
const linearRcond = 1e-12

// LinearRegression is ordinary least squares with an intercept. Collinear
// columns get the minimum-norm solution.
type LinearRegression struct {
	coef      []float64
	intercept float64
}

func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit solves the centered least-squares problem through a thin SVD.
func (m *LinearRegression) Fit(ctx context.Context, X [][]float64, y []float64, _ *EvalSet) error {
	p, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, p)
	for _, row := range X {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}
	ymean := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v-means[j])
		}
		b.SetVec(i, y[i]-ymean)
	}

	m.coef = make([]float64, p)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "least squares factorization failed", nil)
	}
	if rank := svd.Rank(linearRcond); rank > 0 {
		var x mat.VecDense
		svd.SolveVecTo(&x, b, rank)
		for j := range m.coef {
			m.coef[j] = x.AtVec(j)
		}
	}

	m.intercept = ymean
	for j, c := range m.coef {
		m.intercept -= c * means[j]
	}
	return nil
}

func (m *LinearRegression) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		v := m.intercept
		for j, c := range m.coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out
}

// Coefficients returns the fitted slope per feature and the intercept.
func (m *LinearRegression) Coefficients() ([]float64, float64) {
	return append([]float64(nil), m.coef...), m.intercept
}
