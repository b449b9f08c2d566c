package frame

import (
	"errors"
	"math"
	"testing"
	"time"
)

func hourly(n int) []time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	for i := range n {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

func TestTable_WithAndColumn(t *testing.T) {
	tbl := New(hourly(3))

	tbl2, err := tbl.With("demand", []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	if tbl.Has("demand") {
		t.Error("With() mutated the source table")
	}
	if !tbl2.Has("demand") {
		t.Fatal("With() did not add the column")
	}

	col, err := tbl2.Column("demand")
	if err != nil {
		t.Fatalf("Column() error = %v", err)
	}
	col[0] = 99
	if tbl2.At("demand", 0) != 1 {
		t.Error("Column() returned a slice aliasing table storage")
	}
}

func TestTable_WithReplacesInPlace(t *testing.T) {
	tbl := New(hourly(2))
	tbl, _ = tbl.With("a", []float64{1, 2})
	tbl, _ = tbl.With("b", []float64{3, 4})
	tbl, _ = tbl.With("a", []float64{5, 6})

	names := tbl.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
	if tbl.At("a", 1) != 6 {
		t.Errorf("a[1] = %v, want 6", tbl.At("a", 1))
	}
}

func TestTable_WithLengthMismatch(t *testing.T) {
	tbl := New(hourly(3))
	if _, err := tbl.With("x", []float64{1}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestTable_MissingColumn(t *testing.T) {
	tbl := New(hourly(1))

	if _, err := tbl.Column("nope"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Column() error = %v, want ErrMissingColumn", err)
	}
	if err := tbl.Require("nope"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Require() error = %v, want ErrMissingColumn", err)
	}
	if _, err := tbl.Select("nope"); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Select() error = %v, want ErrMissingColumn", err)
	}
}

func TestTable_Drop(t *testing.T) {
	tbl := New(hourly(1))
	tbl, _ = tbl.With("a", []float64{1})
	tbl, _ = tbl.With("b", []float64{2})

	dropped := tbl.Drop("a", "missing")
	if dropped.Has("a") {
		t.Error("Drop() kept column a")
	}
	if !tbl.Has("a") {
		t.Error("Drop() mutated the source table")
	}
	if names := dropped.Names(); len(names) != 1 || names[0] != "b" {
		t.Errorf("Names() = %v, want [b]", names)
	}
}

func TestTable_SortByTime(t *testing.T) {
	idx := hourly(4)
	shuffled := []time.Time{idx[2], idx[0], idx[3], idx[1]}
	tbl := New(shuffled)
	tbl, _ = tbl.With("v", []float64{2, 0, 3, 1})

	if tbl.IsSorted() {
		t.Fatal("IsSorted() = true for shuffled rows")
	}
	if err := tbl.RequireSorted(); !errors.Is(err, ErrChronologicalOrder) {
		t.Errorf("RequireSorted() error = %v, want ErrChronologicalOrder", err)
	}

	sorted := tbl.SortByTime()
	if !sorted.IsSorted() {
		t.Fatal("SortByTime() result not sorted")
	}
	for i := range 4 {
		if sorted.At("v", i) != float64(i) {
			t.Errorf("v[%d] = %v, want %d", i, sorted.At("v", i), i)
		}
	}
	if tbl.At("v", 0) != 2 {
		t.Error("SortByTime() mutated the source table")
	}
}

func TestTable_Slice(t *testing.T) {
	tbl := New(hourly(5))
	tbl, _ = tbl.With("v", []float64{0, 1, 2, 3, 4})

	s := tbl.Slice(1, 3)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.At("v", 0) != 1 || s.At("v", 1) != 2 {
		t.Errorf("slice values = [%v %v], want [1 2]", s.At("v", 0), s.At("v", 1))
	}
}

func TestTable_NumericColumns(t *testing.T) {
	tbl := New(hourly(2))
	tbl, _ = tbl.With("empty", []float64{math.NaN(), math.NaN()})
	tbl, _ = tbl.With("partial", []float64{math.NaN(), 1})

	names := tbl.NumericColumns()
	if len(names) != 1 || names[0] != "partial" {
		t.Errorf("NumericColumns() = %v, want [partial]", names)
	}
}

func TestSheets_Order(t *testing.T) {
	s := NewSheets()
	s.Add("week 2", New(hourly(1)))
	s.Add("week 1", New(hourly(1)))
	s.Add("week 2", New(hourly(2)))

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.Names[0] != "week 2" || s.Names[1] != "week 1" {
		t.Errorf("Names = %v, want insertion order", s.Names)
	}
	if s.Tables["week 2"].Len() != 2 {
		t.Error("Add() did not replace the existing sheet")
	}
}
