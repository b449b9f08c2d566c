// Package models provides the forecasting models trained by the pipeline.
//
// Two families are supported. A SeriesModel learns from the target series
// alone and forecasts forward from the end of its training data. A Regressor
// learns a mapping from an engineered feature matrix to the target and
// predicts one value per row.
package models

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// ErrNotTrained is returned when a model is used before it has been fitted.
var ErrNotTrained = errors.New("model not trained")

// SeriesModel forecasts a univariate series from its own history.
type SeriesModel interface {
	// Name returns the model identifier used in logs and reports.
	Name() string

	// Train fits the model to an ordered history.
	Train(ctx context.Context, history []float64) error

	// Forecast returns the next steps values following the training history.
	Forecast(ctx context.Context, steps int) ([]float64, error)
}

// Regressor maps rows of features to a target value.
type Regressor interface {
	Name() string

	// Fit trains on X (one row per observation) and the aligned targets y.
	Fit(ctx context.Context, X [][]float64, y []float64) error

	// Predict returns one prediction per row of X.
	Predict(ctx context.Context, X [][]float64) ([]float64, error)

	// FeatureImportances returns one non-negative score per feature column,
	// summing to 1 when any split was made.
	FeatureImportances() []float64
}

// checkSeries rejects histories the series models cannot learn from.
func checkSeries(history []float64, minLen int) error {
	if len(history) < minLen {
		return fmt.Errorf("%w: need %d observations, have %d", frame.ErrInsufficientHistory, minLen, len(history))
	}
	for i, v := range history {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: history has a missing value at position %d", frame.ErrMissingValue, i)
		}
	}
	return nil
}

// checkMatrix validates that X is rectangular, non-empty and, when y is not
// nil, aligned with y. It returns the number of columns.
func checkMatrix(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("%w: feature matrix is empty", frame.ErrInsufficientHistory)
	}
	if y != nil && len(X) != len(y) {
		return 0, fmt.Errorf("feature matrix has %d rows but target has %d", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, errors.New("feature matrix has no columns")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}
	for i, v := range y {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: target is missing at row %d", frame.ErrMissingValue, i)
		}
	}
	return width, nil
}
