package models

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultARLags is the autoregressive order used when none is configured:
// one day of hourly observations.
const DefaultARLags = 24

// rankTolerance is the relative singular value cutoff below which lag
// columns are treated as linearly dependent.
const rankTolerance = 1e-10

// AutoRegModel is an autoregressive model of order p:
//
//	y_t = c + φ_1·y_{t-1} + ... + φ_p·y_{t-p}
//
// Coefficients are fitted by ordinary least squares over every full window of
// the training series. The solve goes through a thin SVD so that collinear
// lag columns (a linear trend, a pure sinusoid) yield the minimum-norm
// solution instead of failing.
//
// Forecasts are recursive: each predicted value is appended to the window
// used for the next step. The model is never refitted during forecasting.
type AutoRegModel struct {
	lags int

	// coef holds the intercept followed by φ_1..φ_p.
	coef []float64

	// tail is the last lags observations of the training series, oldest first.
	tail []float64
}

// NewAutoRegModel creates an autoregressive model with the given number of
// lags. Non-positive values fall back to DefaultARLags.
func NewAutoRegModel(lags int) *AutoRegModel {
	if lags <= 0 {
		lags = DefaultARLags
	}
	return &AutoRegModel{lags: lags}
}

// Name returns the model identifier.
func (m *AutoRegModel) Name() string {
	return "autoreg"
}

// Lags returns the autoregressive order.
func (m *AutoRegModel) Lags() int {
	return m.lags
}

// Train fits the intercept and lag coefficients. The history must contain at
// least 2p+1 observations so the system has as many equations as unknowns.
func (m *AutoRegModel) Train(ctx context.Context, history []float64) error {
	p := m.lags
	if err := checkSeries(history, 2*p+1); err != nil {
		return fmt.Errorf("autoreg(%d): %w", p, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := len(history) - p
	x := mat.NewDense(rows, p+1, nil)
	y := mat.NewVecDense(rows, nil)
	for r := range rows {
		t := r + p
		x.Set(r, 0, 1)
		for i := 1; i <= p; i++ {
			x.Set(r, i, history[t-i])
		}
		y.SetVec(r, history[t])
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return errors.New("autoreg: singular value decomposition failed")
	}
	rank := svd.Rank(rankTolerance)
	if rank < 1 {
		return errors.New("autoreg: design matrix has rank zero")
	}

	var beta mat.VecDense
	svd.SolveVecTo(&beta, y, rank)

	coef := make([]float64, p+1)
	for i := range coef {
		c := beta.AtVec(i)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("autoreg: coefficient %d is not finite", i)
		}
		coef[i] = c
	}

	m.coef = coef
	m.tail = append([]float64(nil), history[len(history)-p:]...)
	return nil
}

// Forecast predicts steps values after the end of the training series.
func (m *AutoRegModel) Forecast(ctx context.Context, steps int) ([]float64, error) {
	if m.coef == nil {
		return nil, ErrNotTrained
	}
	if steps <= 0 {
		return nil, fmt.Errorf("autoreg: steps must be positive, got %d", steps)
	}

	p := m.lags
	window := make([]float64, 0, p+steps)
	window = append(window, m.tail...)
	out := make([]float64, steps)
	for s := range steps {
		if s%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n := len(window)
		yhat := m.coef[0]
		for i := 1; i <= p; i++ {
			yhat += m.coef[i] * window[n-i]
		}
		out[s] = yhat
		window = append(window, yhat)
	}
	return out, nil
}

// Coefficients returns a copy of the fitted parameters, intercept first.
func (m *AutoRegModel) Coefficients() []float64 {
	return append([]float64(nil), m.coef...)
}
