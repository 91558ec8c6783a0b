package regression

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MLP is a one-hidden-layer ReLU network trained with Adam on squared
// error. Inputs are standardized with the training mean and standard
// deviation; the target is used as is.
type MLP struct {
	Hidden       int
	LearningRate float64
	BatchSize    int
	Alpha        float64 // L2 penalty
	MaxEpochs    int
	Patience     int
	Tol          float64
	Seed         uint64

	mean, scale []float64
	net         mlpLayout
	params      []float64
	loss        []float64
}

func NewMLP() *MLP {
	return &MLP{
		Hidden:       100,
		LearningRate: 1e-3,
		BatchSize:    200,
		Alpha:        1e-4,
		MaxEpochs:    200,
		Patience:     10,
		Tol:          1e-4,
		Seed:         DefaultSeed,
	}
}

// mlpLayout indexes the flat parameter vector laid out as
// [W1 (p×h, row-major) | b1 (h) | w2 (h) | b2].
type mlpLayout struct {
	p, h int
}

func (l mlpLayout) size() int { return l.p*l.h + 2*l.h + 1 }
func (l mlpLayout) w1(v []float64) []float64 { return v[:l.p*l.h] }
func (l mlpLayout) b1(v []float64) []float64 { return v[l.p*l.h : l.p*l.h+l.h] }
func (l mlpLayout) w2(v []float64) []float64 { return v[l.p*l.h+l.h : l.p*l.h+2*l.h] }
func (l mlpLayout) b2(v []float64) *float64 { return &v[l.p*l.h+2*l.h] }

// Fit runs minibatch Adam over shuffled epochs. Training stops early when
// the epoch loss fails to drop by Tol for more than Patience epochs in a
// row.
func (m *MLP) Fit(ctx context.Context, X [][]float64, y []float64, _ *EvalSet) error {
	p, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	m.standardize(X, p)
	Z := m.transform(X)

	m.net = mlpLayout{p: p, h: m.Hidden}
	rng := newRand(m.Seed, streamMLP)
	m.params = make([]float64, m.net.size())
	m.initLayer(rng.Float64, m.net.w1(m.params), m.net.b1(m.params), p, m.Hidden)
	m.initLayer(rng.Float64, m.net.w2(m.params), m.params[m.net.size()-1:], m.Hidden, 1)

	opt := newAdam(len(m.params), m.LearningRate)
	grad := make([]float64, len(m.params))
	batch := min(m.BatchSize, n)
	hidden := make([]float64, m.Hidden)
	pre := make([]float64, m.Hidden)

	m.loss = m.loss[:0]
	best := math.Inf(1)
	stale := 0
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < m.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		var total float64
		for start := 0; start < n; start += batch {
			end := min(start+batch, n)
			total += m.step(Z, y, order[start:end], grad, pre, hidden, opt) * float64(end-start)
		}
		loss := total / float64(n)
		m.loss = append(m.loss, loss)

		if loss > best-m.Tol {
			stale++
		} else {
			stale = 0
		}
		if loss < best {
			best = loss
		}
		if stale > m.Patience {
			break
		}
	}
	return nil
}

// step applies one Adam update for the rows in rows and returns the batch
// loss, including the L2 penalty.
func (m *MLP) step(Z [][]float64, y []float64, rows []int, grad, pre, hidden []float64, opt *adam) float64 {
	l := m.net
	w1, b1, w2 := l.w1(m.params), l.b1(m.params), l.w2(m.params)
	b2 := *l.b2(m.params)
	g1, gb1, g2, gb2 := l.w1(grad), l.b1(grad), l.w2(grad), l.b2(grad)
	clear(grad)

	bs := float64(len(rows))
	var sse float64
	for _, r := range rows {
		x := Z[r]
		out := m.forward(x, w1, b1, w2, b2, pre, hidden)
		delta := (out - y[r]) / bs
		sse += (out - y[r]) * (out - y[r])

		*gb2 += delta
		for k := range hidden {
			g2[k] += delta * hidden[k]
			if pre[k] <= 0 {
				continue
			}
			dk := delta * w2[k]
			gb1[k] += dk
			for j, xj := range x {
				g1[j*l.h+k] += xj * dk
			}
		}
	}

	var sq float64
	for i, w := range w1 {
		sq += w * w
		g1[i] += m.Alpha * w / bs
	}
	for k, w := range w2 {
		sq += w * w
		g2[k] += m.Alpha * w / bs
	}

	opt.update(m.params, grad)
	return sse/(2*bs) + 0.5*m.Alpha*sq/bs
}

func (m *MLP) forward(x, w1, b1, w2 []float64, b2 float64, pre, hidden []float64) float64 {
	h := m.net.h
	copy(pre, b1)
	for j, xj := range x {
		row := w1[j*h : (j+1)*h]
		for k, w := range row {
			pre[k] += xj * w
		}
	}
	out := b2
	for k, z := range pre {
		hidden[k] = max(z, 0)
		out += hidden[k] * w2[k]
	}
	return out
}

// initLayer draws weights and biases uniformly from
// ±sqrt(6/(fanIn+fanOut)).
func (m *MLP) initLayer(uniform func() float64, w, b []float64, fanIn, fanOut int) {
	bound := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = (2*uniform() - 1) * bound
	}
	for i := range b {
		b[i] = (2*uniform() - 1) * bound
	}
}

func (m *MLP) standardize(X [][]float64, p int) {
	m.mean = make([]float64, p)
	m.scale = make([]float64, p)
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		m.mean[j], m.scale[j] = mean, std
	}
}

func (m *MLP) transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - m.mean[j]) / m.scale[j]
		}
		out[i] = z
	}
	return out
}

func (m *MLP) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if m.params == nil {
		return out
	}
	l := m.net
	pre := make([]float64, l.h)
	hidden := make([]float64, l.h)
	for i, x := range m.transform(X) {
		out[i] = m.forward(x, l.w1(m.params), l.b1(m.params), l.w2(m.params), *l.b2(m.params), pre, hidden)
	}
	return out
}

// LossCurve returns the training loss per completed epoch.
func (m *MLP) LossCurve() []float64 { return m.loss }

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  []float64
}

func newAdam(n int, lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

func (a *adam) update(params, grad []float64) {
	a.t++
	lr := a.lr * math.Sqrt(1-math.Pow(a.beta2, float64(a.t))) / (1 - math.Pow(a.beta1, float64(a.t)))
	for i, g := range grad {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		params[i] -= lr * a.m[i] / (math.Sqrt(a.v[i]) + a.eps)
	}
}
