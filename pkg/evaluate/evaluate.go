// Package evaluate scores forecasts against held-out observations and ranks
// the features a model relied on.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrLengthMismatch is returned when predictions and observations differ in
// length.
var ErrLengthMismatch = errors.New("evaluate: length mismatch")

// ErrEmpty is returned when there is nothing to score.
var ErrEmpty = errors.New("evaluate: no observations")

// Metrics are the error measures reported for a model.
type Metrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	N    int     `json:"n"`
}

// Score computes the mean squared error, its root and the mean absolute
// error of yPred against yTrue.
func Score(yTrue, yPred []float64) (Metrics, error) {
	if len(yTrue) != len(yPred) {
		return Metrics{}, fmt.Errorf("%w: %d observations, %d predictions", ErrLengthMismatch, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Metrics{}, ErrEmpty
	}
	if floats.HasNaN(yTrue) || floats.HasNaN(yPred) {
		return Metrics{}, errors.New("evaluate: observations or predictions contain NaN")
	}

	residuals := make([]float64, len(yTrue))
	floats.SubTo(residuals, yPred, yTrue)

	squared := make([]float64, len(residuals))
	floats.MulTo(squared, residuals, residuals)
	mse := stat.Mean(squared, nil)

	for i, r := range residuals {
		residuals[i] = math.Abs(r)
	}
	mae := stat.Mean(residuals, nil)

	return Metrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  mae,
		N:    len(yTrue),
	}, nil
}

// Importance pairs a feature with its score.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"importance"`
}

// RankImportances returns the k highest scoring features in descending
// order, breaking ties by name. A k outside [1, len(names)] returns every
// feature.
func RankImportances(names []string, scores []float64, k int) ([]Importance, error) {
	if len(names) != len(scores) {
		return nil, fmt.Errorf("%w: %d names, %d scores", ErrLengthMismatch, len(names), len(scores))
	}

	ranked := make([]Importance, len(names))
	for i, name := range names {
		ranked[i] = Importance{Feature: name, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Feature < ranked[j].Feature
	})

	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}
