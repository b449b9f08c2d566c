package features

import (
	"math"
	"testing"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	tbl := frame.New(hourlyIndex(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 4))
	tbl, _ = tbl.With("a", []float64{1, 2, 3, 4})
	tbl, _ = tbl.With("constant", []float64{7, 7, 7, 7})
	tbl, _ = tbl.With("untouched", []float64{10, 20, 30, 40})

	scaler := NewStandardScaler()
	out, err := scaler.FitTransform(tbl, []string{"a", "constant"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	a, _ := out.Column("a")
	var mean, ss float64
	for _, v := range a {
		mean += v
	}
	mean /= 4
	for _, v := range a {
		ss += (v - mean) * (v - mean)
	}
	if math.Abs(mean) > 1e-12 {
		t.Errorf("mean = %v, want 0", mean)
	}
	// population std
	if std := math.Sqrt(ss / 4); math.Abs(std-1) > 1e-12 {
		t.Errorf("std = %v, want 1", std)
	}

	c, _ := out.Column("constant")
	for i, v := range c {
		if v != 0 {
			t.Errorf("constant[%d] = %v, want 0", i, v)
		}
	}

	if out.At("untouched", 2) != 30 {
		t.Error("unfitted column was changed")
	}
	if tbl.At("a", 0) != 1 {
		t.Error("FitTransform() mutated the source table")
	}

	m, s, ok := scaler.Params("a")
	if !ok || m != 2.5 || math.Abs(s-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Params(a) = %v, %v, %v", m, s, ok)
	}
}

func TestStandardScaler_AppliesFittedParams(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	train := frame.New(hourlyIndex(start, 2))
	train, _ = train.With("x", []float64{0, 2})
	other := frame.New(hourlyIndex(start, 1))
	other, _ = other.With("x", []float64{3})

	scaler := NewStandardScaler()
	if err := scaler.Fit(train, []string{"x"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	out, err := scaler.Transform(other)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out.At("x", 0) != 2 {
		t.Errorf("x = %v, want 2", out.At("x", 0))
	}
}

func TestStandardScaler_IgnoresMissing(t *testing.T) {
	tbl := frame.New(hourlyIndex(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3))
	tbl, _ = tbl.With("x", []float64{math.NaN(), 1, 3})

	out, err := NewStandardScaler().FitTransform(tbl, []string{"x"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	if !math.IsNaN(out.At("x", 0)) {
		t.Error("missing value was filled")
	}
	if out.At("x", 1) != -1 || out.At("x", 2) != 1 {
		t.Errorf("x = [%v %v], want [-1 1]", out.At("x", 1), out.At("x", 2))
	}
}
