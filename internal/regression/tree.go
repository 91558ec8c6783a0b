package regression

import (
	"math"
	"slices"
	"sort"
)

// maxBins bounds the histogram resolution of every feature. Bin indices fit
// in a uint8.
const maxBins = 256

// minSplitGain is the smallest loss reduction accepted for a split.
const minSplitGain = 1e-12

// binFeatures quantizes every column of X. cuts[f] holds ascending
// thresholds and bins[f][i] is the index of the first threshold >= X[i][f],
// so X[i][f] <= cuts[f][b] exactly when bins[f][i] <= b.
func binFeatures(X [][]float64) (cuts [][]float64, bins [][]uint8) {
	p := len(X[0])
	cuts = make([][]float64, p)
	bins = make([][]uint8, p)
	col := make([]float64, len(X))
	for f := 0; f < p; f++ {
		for i, row := range X {
			col[i] = row[f]
		}
		cuts[f] = featureCuts(col)
		b := make([]uint8, len(X))
		for i, v := range col {
			b[i] = uint8(sort.SearchFloat64s(cuts[f], v))
		}
		bins[f] = b
	}
	return cuts, bins
}

// featureCuts returns midpoints between consecutive distinct values when
// there are few enough of them, and quantile thresholds otherwise.
func featureCuts(col []float64) []float64 {
	sorted := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	slices.Sort(sorted)
	uniq := slices.Compact(slices.Clone(sorted))

	if len(uniq) <= maxBins {
		cuts := make([]float64, 0, max(len(uniq)-1, 0))
		for i := 1; i < len(uniq); i++ {
			cuts = append(cuts, uniq[i-1]+(uniq[i]-uniq[i-1])/2)
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		v := sorted[k*len(sorted)/maxBins]
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	return cuts
}

type treeNode struct {
	feature   int
	threshold float64
	left      int32
	right     int32
	leaf      bool
	value     float64
}

// regressionTree is a binary tree stored as a node slice rooted at 0. A row
// goes left when its feature value is <= the node threshold.
type regressionTree struct {
	nodes []treeNode
}

func (t *regressionTree) predict(x []float64) float64 {
	n := &t.nodes[0]
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n.value
}

func (t *regressionTree) scale(factor float64) {
	for i := range t.nodes {
		t.nodes[i].value *= factor
	}
}

type treeParams struct {
	maxDepth int // 0 means unlimited
	minSplit int
	lambda   float64
	alpha    float64
}

// treeBuilder grows a squared-error tree over residuals. With lambda and
// alpha both zero the leaf value is the residual mean and the split gain is
// the reduction in squared error.
type treeBuilder struct {
	params treeParams
	cuts   [][]float64
	bins   [][]uint8
	resid  []float64
	nodes  []treeNode
}

type split struct {
	feature int
	bin     uint8
	gain    float64
}

// build grows a tree on the rows in idx. idx may repeat rows and is
// reordered in place.
func (b *treeBuilder) build(idx []int) *regressionTree {
	b.nodes = nil
	b.grow(idx, 0)
	return &regressionTree{nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int32 {
	var sum float64
	for _, i := range idx {
		sum += b.resid[i]
	}
	n := float64(len(idx))

	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, treeNode{leaf: true, value: b.weight(sum, n)})
	if len(idx) < b.params.minSplit || (b.params.maxDepth > 0 && depth >= b.params.maxDepth) {
		return id
	}

	s, ok := b.bestSplit(idx, sum, n)
	if !ok {
		return id
	}
	mid := partition(idx, b.bins[s.feature], s.bin)
	left := b.grow(idx[:mid], depth+1)
	right := b.grow(idx[mid:], depth+1)
	b.nodes[id] = treeNode{
		feature:   s.feature,
		threshold: b.cuts[s.feature][s.bin],
		left:      left,
		right:     right,
	}
	return id
}

func (b *treeBuilder) bestSplit(idx []int, sum, n float64) (split, bool) {
	parent := b.score(sum, n)
	best := split{gain: minSplitGain}
	found := false

	var hsum, hcount [maxBins]float64
	for f, col := range b.bins {
		nb := len(b.cuts[f]) + 1
		if nb < 2 {
			continue
		}
		clear(hsum[:nb])
		clear(hcount[:nb])
		for _, i := range idx {
			bin := col[i]
			hsum[bin] += b.resid[i]
			hcount[bin]++
		}

		var lsum, lcount float64
		for bin := 0; bin < nb-1; bin++ {
			lsum += hsum[bin]
			lcount += hcount[bin]
			if lcount == 0 {
				continue
			}
			rcount := n - lcount
			if rcount == 0 {
				break
			}
			gain := b.score(lsum, lcount) + b.score(sum-lsum, rcount) - parent
			if gain > best.gain {
				best = split{feature: f, bin: uint8(bin), gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (b *treeBuilder) score(sum, n float64) float64 {
	den := n + b.params.lambda
	if den == 0 {
		return 0
	}
	t := softThreshold(sum, b.params.alpha)
	return t * t / den
}

func (b *treeBuilder) weight(sum, n float64) float64 {
	den := n + b.params.lambda
	if den == 0 {
		return 0
	}
	return softThreshold(sum, b.params.alpha) / den
}

func softThreshold(v, alpha float64) float64 {
	switch {
	case v > alpha:
		return v - alpha
	case v < -alpha:
		return v + alpha
	default:
		return 0
	}
}

// partition moves rows whose bin is <= bin to the front of idx and returns
// how many there are.
func partition(idx []int, col []uint8, bin uint8) int {
	i, j := 0, len(idx)-1
	for i <= j {
		if col[idx[i]] <= bin {
			i++
			continue
		}
		idx[i], idx[j] = idx[j], idx[i]
		j--
	}
	return i
}
