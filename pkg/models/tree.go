package models

import (
	"math"
	"slices"
	"sort"
)

// binner maps raw feature values onto a small number of ordered bins so that
// split search scans histograms instead of sorted rows.
type binner struct {
	// edges[j] are the ascending split thresholds of feature j. A value x
	// falls in the first bin b with x <= edges[j][b], or in bin len(edges[j])
	// when it exceeds every edge.
	edges [][]float64
}

// missingBin marks a NaN feature value.
const missingBin = -1

func newBinner(X [][]float64, maxBins int) *binner {
	width := len(X[0])
	b := &binner{edges: make([][]float64, width)}
	values := make([]float64, 0, len(X))
	for j := range width {
		values = values[:0]
		for _, row := range X {
			if v := row[j]; !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		b.edges[j] = featureEdges(values, maxBins)
	}
	return b
}

// featureEdges returns at most maxBins-1 thresholds. When a feature has few
// distinct values every value but the largest becomes a threshold; otherwise
// thresholds are taken at evenly spaced ranks of the distinct values.
func featureEdges(values []float64, maxBins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	unique := slices.Compact(sorted)

	if len(unique) <= maxBins {
		return slices.Clone(unique[:len(unique)-1])
	}
	edges := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		edges = append(edges, unique[k*len(unique)/maxBins])
	}
	return slices.Compact(edges)
}

func (b *binner) bin(j int, v float64) int {
	if math.IsNaN(v) {
		return missingBin
	}
	return sort.SearchFloat64s(b.edges[j], v)
}

func (b *binner) numBins(j int) int {
	return len(b.edges[j]) + 1
}

// transform bins every value of X, stored column-major.
func (b *binner) transform(X [][]float64) [][]int {
	cols := make([][]int, len(b.edges))
	for j := range cols {
		col := make([]int, len(X))
		for i, row := range X {
			col[i] = b.bin(j, row[j])
		}
		cols[j] = col
	}
	return cols
}

// node is one vertex of a regression tree. Leaves have feature -1.
type node struct {
	feature     int
	threshold   float64
	defaultLeft bool
	left, right int
	value       float64
}

// tree is a regression tree stored as a flat slice, root at index 0.
type tree struct {
	nodes []node
}

func (t *tree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		v := row[n.feature]
		switch {
		case math.IsNaN(v):
			if n.defaultLeft {
				i = n.left
			} else {
				i = n.right
			}
		case v <= n.threshold:
			i = n.left
		default:
			i = n.right
		}
	}
}

// treeParams are the growth limits shared by every tree of an ensemble.
type treeParams struct {
	maxDepth       int
	lambda         float64
	minChildWeight float64
	learningRate   float64
}

// split is the best partition found for a node.
type split struct {
	feature     int
	bin         int
	defaultLeft bool
	gain        float64
}

// grower builds one tree from gradient statistics over binned features.
type grower struct {
	params treeParams
	binner *binner
	bins   [][]int
	grad   []float64
	hess   []float64

	// gains and counts accumulate split gain per feature across trees.
	gains  []float64
	counts []int

	// histogram scratch space, reused per feature
	histG []float64
	histH []float64
}

func (g *grower) grow(rows []int) *tree {
	t := &tree{}
	g.build(t, rows, 0)
	return t
}

func (g *grower) build(t *tree, rows []int, depth int) int {
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{feature: -1})

	var G, H float64
	for _, r := range rows {
		G += g.grad[r]
		H += g.hess[r]
	}

	best := split{feature: -1}
	if depth < g.params.maxDepth && len(rows) > 1 {
		best = g.findSplit(rows, G, H)
	}
	if best.feature < 0 {
		t.nodes[id].value = -G / (H + g.params.lambda) * g.params.learningRate
		return id
	}

	g.gains[best.feature] += best.gain
	g.counts[best.feature]++

	var left, right []int
	col := g.bins[best.feature]
	for _, r := range rows {
		b := col[r]
		if b == missingBin {
			if best.defaultLeft {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
			continue
		}
		if b <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	threshold := math.Inf(1)
	if edges := g.binner.edges[best.feature]; best.bin < len(edges) {
		threshold = edges[best.bin]
	}

	l := g.build(t, left, depth+1)
	r := g.build(t, right, depth+1)
	t.nodes[id] = node{
		feature:     best.feature,
		threshold:   threshold,
		defaultLeft: best.defaultLeft,
		left:        l,
		right:       r,
	}
	return id
}

// findSplit scans every feature histogram for the partition with the
// largest positive gain
//
//	½·[G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ)]
//
// trying missing values on each side.
func (g *grower) findSplit(rows []int, G, H float64) split {
	lambda := g.params.lambda
	minW := g.params.minChildWeight
	parent := G * G / (H + lambda)
	best := split{feature: -1}

	for j, col := range g.bins {
		nb := g.binner.numBins(j)
		histG := g.histG[:nb]
		histH := g.histH[:nb]
		clear(histG)
		clear(histH)
		var missG, missH float64
		for _, r := range rows {
			b := col[r]
			if b == missingBin {
				missG += g.grad[r]
				missH += g.hess[r]
				continue
			}
			histG[b] += g.grad[r]
			histH[b] += g.hess[r]
		}

		// The last bin sends every present value left, which only splits
		// when some values are missing.
		var GL, HL float64
		for b := range nb {
			GL += histG[b]
			HL += histH[b]
			for _, missLeft := range [2]bool{true, false} {
				gl, hl := GL, HL
				if missLeft {
					gl += missG
					hl += missH
				}
				gr, hr := G-gl, H-hl
				if hl < minW || hr < minW || hl == 0 || hr == 0 {
					continue
				}
				gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent)
				if gain > best.gain {
					best = split{feature: j, bin: b, defaultLeft: missLeft, gain: gain}
				}
			}
		}
	}
	return best
}
