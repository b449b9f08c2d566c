package models

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GBMConfig holds the boosting hyperparameters.
type GBMConfig struct {
	// Estimators is the number of trees.
	Estimators int

	// LearningRate shrinks every leaf value.
	LearningRate float64

	// MaxDepth limits the depth of each tree. The root is depth 0.
	MaxDepth int

	// Lambda is the L2 regularization on leaf weights.
	Lambda float64

	// MinChildWeight is the smallest hessian sum allowed in a child.
	MinChildWeight float64

	// MaxBins caps the histogram resolution of each feature.
	MaxBins int
}

// DefaultGBMConfig returns the standard boosting settings.
func DefaultGBMConfig() GBMConfig {
	return GBMConfig{
		Estimators:     100,
		LearningRate:   0.3,
		MaxDepth:       6,
		Lambda:         1,
		MinChildWeight: 1,
		MaxBins:        256,
	}
}

// Validate reports settings that cannot train a model.
func (c GBMConfig) Validate() error {
	switch {
	case c.Estimators < 1:
		return fmt.Errorf("gbm: estimators must be at least 1, got %d", c.Estimators)
	case !(c.LearningRate > 0):
		return fmt.Errorf("gbm: learning rate must be positive, got %v", c.LearningRate)
	case c.MaxDepth < 1:
		return fmt.Errorf("gbm: max depth must be at least 1, got %d", c.MaxDepth)
	case c.Lambda < 0:
		return fmt.Errorf("gbm: lambda must not be negative, got %v", c.Lambda)
	case c.MinChildWeight < 0:
		return fmt.Errorf("gbm: min child weight must not be negative, got %v", c.MinChildWeight)
	case c.MaxBins < 2:
		return fmt.Errorf("gbm: max bins must be at least 2, got %d", c.MaxBins)
	}
	return nil
}

// GradientBoostingModel is an ensemble of histogram-based regression trees
// fitted to the squared error.
//
// Algorithm:
//  1. Start every prediction at the mean target (the base score)
//  2. For each round, compute gradients g = ŷ - y and hessians h = 1
//  3. Grow a depth-limited tree on binned features, choosing splits that
//     maximize the regularized gain; rows with a missing feature value go to
//     the side that scored better during the search
//  4. Add the tree's shrunken leaf values to the running predictions
//
// Training is deterministic for a given input.
type GradientBoostingModel struct {
	cfg GBMConfig

	base   float64
	trees  []*tree
	width  int
	gains  []float64
	counts []int
}

// NewGradientBoostingModel creates an untrained model.
func NewGradientBoostingModel(cfg GBMConfig) *GradientBoostingModel {
	return &GradientBoostingModel{cfg: cfg}
}

// Name returns the model identifier.
func (m *GradientBoostingModel) Name() string {
	return "gbm"
}

// Config returns the hyperparameters the model was created with.
func (m *GradientBoostingModel) Config() GBMConfig {
	return m.cfg
}

// Fit trains the ensemble. Cancellation is checked between trees.
func (m *GradientBoostingModel) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	width, err := checkMatrix(X, y)
	if err != nil {
		return fmt.Errorf("gbm: %w", err)
	}

	b := newBinner(X, m.cfg.MaxBins)
	maxBins := 0
	for j := range width {
		maxBins = max(maxBins, b.numBins(j))
	}

	n := len(y)
	g := &grower{
		params: treeParams{
			maxDepth:       m.cfg.MaxDepth,
			lambda:         m.cfg.Lambda,
			minChildWeight: m.cfg.MinChildWeight,
			learningRate:   m.cfg.LearningRate,
		},
		binner: b,
		bins:   b.transform(X),
		grad:   make([]float64, n),
		hess:   make([]float64, n),
		gains:  make([]float64, width),
		counts: make([]int, width),
		histG:  make([]float64, maxBins),
		histH:  make([]float64, maxBins),
	}

	base := stat.Mean(y, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	trees := make([]*tree, 0, m.cfg.Estimators)
	for range m.cfg.Estimators {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range n {
			g.grad[i] = pred[i] - y[i]
			g.hess[i] = 1
		}
		t := g.grow(rows)
		for i, row := range X {
			pred[i] += t.predict(row)
		}
		trees = append(trees, t)
	}

	m.base = base
	m.trees = trees
	m.width = width
	m.gains = g.gains
	m.counts = g.counts
	return nil
}

// Predict sums the base score and every tree's contribution for each row.
func (m *GradientBoostingModel) Predict(ctx context.Context, X [][]float64) ([]float64, error) {
	if m.trees == nil {
		return nil, ErrNotTrained
	}
	width, err := checkMatrix(X, nil)
	if err != nil {
		return nil, fmt.Errorf("gbm: %w", err)
	}
	if width != m.width {
		return nil, fmt.Errorf("gbm: rows have %d features, model was trained on %d", width, m.width)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, row := range X {
		v := m.base
		for _, t := range m.trees {
			v += t.predict(row)
		}
		out[i] = v
	}
	return out, nil
}

// FeatureImportances returns the average split gain of each feature,
// normalized to sum to 1. Features never used in a split score 0.
func (m *GradientBoostingModel) FeatureImportances() []float64 {
	if m.trees == nil {
		return nil
	}
	imp := make([]float64, m.width)
	for j := range imp {
		if m.counts[j] > 0 {
			imp[j] = m.gains[j] / float64(m.counts[j])
		}
	}
	if total := floats.Sum(imp); total > 0 && !math.IsInf(total, 0) {
		floats.Scale(1/total, imp)
	}
	return imp
}

// NumTrees returns the number of fitted trees.
func (m *GradientBoostingModel) NumTrees() int {
	return len(m.trees)
}
