package split

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

func table(n int) *frame.Table {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	demand := make([]float64, n)
	temp := make([]float64, n)
	for i := range n {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
		demand[i] = float64(i)
		temp[i] = float64(i) * 10
	}
	tbl := frame.New(idx)
	tbl, _ = tbl.With("nat_demand", demand)
	tbl, _ = tbl.With("T2M_toc", temp)
	return tbl
}

func TestChronological_EightyTwenty(t *testing.T) {
	ds, err := Chronological(table(100), "nat_demand", DefaultTestFraction)
	if err != nil {
		t.Fatalf("Chronological() error = %v", err)
	}

	if ds.TrainRows() != 80 || ds.TestRows() != 20 {
		t.Fatalf("rows = %d/%d, want 80/20", ds.TrainRows(), ds.TestRows())
	}
	if ds.YTrain[0] != 0 || ds.YTrain[79] != 79 {
		t.Errorf("train covers %v..%v, want 0..79", ds.YTrain[0], ds.YTrain[79])
	}
	if ds.YTest[0] != 80 || ds.YTest[19] != 99 {
		t.Errorf("test covers %v..%v, want 80..99", ds.YTest[0], ds.YTest[19])
	}
	if len(ds.Features) != 1 || ds.Features[0] != "T2M_toc" {
		t.Errorf("Features = %v, want [T2M_toc]", ds.Features)
	}
	if ds.XTest[0][0] != 800 {
		t.Errorf("XTest[0] = %v, want [800]", ds.XTest[0])
	}
}

func TestChronological_SortsFirst(t *testing.T) {
	base := table(50)
	idx := base.Index()
	// reverse the row order
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
	reversed := frame.New(idx)
	for _, name := range base.Names() {
		values, _ := base.Column(name)
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
		reversed, _ = reversed.With(name, values)
	}

	ds, err := Chronological(reversed, "nat_demand", 0.2)
	if err != nil {
		t.Fatalf("Chronological() error = %v", err)
	}
	for i, v := range ds.YTrain {
		if v != float64(i) {
			t.Fatalf("YTrain[%d] = %v, want %d", i, v, i)
		}
	}
}

func TestChronological_TrainPrecedesTest(t *testing.T) {
	for _, f := range []float64{0.01, 0.1, 0.2, 0.33, 0.5, 0.75, 0.99} {
		ds, err := Chronological(table(200), "nat_demand", f)
		if err != nil {
			t.Fatalf("f=%v: Chronological() error = %v", f, err)
		}
		maxTrain := ds.TrainIndex[0]
		for _, ts := range ds.TrainIndex {
			if ts.After(maxTrain) {
				maxTrain = ts
			}
		}
		minTest := ds.TestIndex[0]
		for _, ts := range ds.TestIndex {
			if ts.Before(minTest) {
				minTest = ts
			}
		}
		if !maxTrain.Before(minTest) {
			t.Errorf("f=%v: max train %v not before min test %v", f, maxTrain, minTest)
		}
	}
}

func TestChronological_Errors(t *testing.T) {
	dup := table(10)
	idx := dup.Index()
	idx[8] = idx[7] // duplicate timestamp straddling the 8/2 split
	dupTbl := frame.New(idx)
	for _, name := range dup.Names() {
		values, _ := dup.Column(name)
		dupTbl, _ = dupTbl.With(name, values)
	}

	nanTbl := table(10)
	demand, _ := nanTbl.Column("nat_demand")
	demand[3] = math.NaN()
	nanTbl, _ = nanTbl.With("nat_demand", demand)

	tests := []struct {
		name     string
		tbl      *frame.Table
		target   string
		fraction float64
		want     error
	}{
		{"missing target", table(10), "DEMAND", 0.2, frame.ErrMissingColumn},
		{"too few rows", table(1), "nat_demand", 0.2, frame.ErrInsufficientHistory},
		{"duplicate timestamp across split", dupTbl, "nat_demand", 0.2, frame.ErrChronologicalOrder},
		{"missing target value", nanTbl, "nat_demand", 0.2, frame.ErrMissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Chronological(tt.tbl, tt.target, tt.fraction)
			if !errors.Is(err, tt.want) {
				t.Errorf("Chronological() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChronological_InvalidFraction(t *testing.T) {
	for _, f := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		if _, err := Chronological(table(10), "nat_demand", f); err == nil {
			t.Errorf("fraction %v: expected error", f)
		}
	}
}
