package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// Shift returns values moved forward by lag positions. The first lag entries
// are NaN.
func Shift(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < lag {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-lag]
	}
	return out
}

// RollingMean returns the mean of the trailing window ending at each row,
// current row included. Rows before a full window, and windows containing a
// NaN, yield NaN.
func RollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		return stat.Mean(w, nil)
	})
}

// RollingStd returns the sample standard deviation of the trailing window
// ending at each row, with the same missing-value rules as RollingMean.
func RollingStd(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		return stat.StdDev(w, nil)
	})
}

func rolling(values []float64, window int, agg func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		w := values[i-window+1 : i+1]
		if floats.HasNaN(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(w)
	}
	return out
}

// ZScore standardizes values with the sample mean and standard deviation of
// the non-missing entries. Missing entries stay missing.
func ZScore(values []float64) ([]float64, error) {
	present := dropNaN(values)
	if len(present) < 2 {
		return nil, fmt.Errorf("%w: %d non-missing values", frame.ErrDegenerateVariance, len(present))
	}
	mean, std := stat.MeanStdDev(present, nil)
	if std == 0 || math.IsNaN(std) {
		return nil, fmt.Errorf("%w: standard deviation is zero", frame.ErrDegenerateVariance)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out, nil
}

// Cyclical encodes a periodic value as the sine and cosine of its angle on
// the unit circle.
func Cyclical(values []float64, period float64) (sin, cos []float64) {
	sin = make([]float64, len(values))
	cos = make([]float64, len(values))
	for i, v := range values {
		angle := 2 * math.Pi * v / period
		sin[i] = math.Sin(angle)
		cos[i] = math.Cos(angle)
	}
	return sin, cos
}

// Indicator coerces values to 0/1: any non-zero value becomes 1. Missing
// values stay missing.
func Indicator(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v != 0:
			out[i] = 1
		}
	}
	return out
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func maxInt(values []int) int {
	m := 0
	for _, v := range values {
		m = max(m, v)
	}
	return m
}

// requireHistory checks that a table spans the longest lag or window. Leading
// rows left NaN by the lags are expected.
func requireHistory(t *frame.Table, lags, windows []int) error {
	need := max(maxInt(lags), maxInt(windows))
	if t.Len() < need {
		return fmt.Errorf("%w: %d rows, need at least %d", frame.ErrInsufficientHistory, t.Len(), need)
	}
	return nil
}
