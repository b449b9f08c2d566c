// Package frame provides the timestamp-keyed columnar table that every
// pipeline stage consumes and produces.
//
// A Table is immutable from the caller's point of view: every transform
// returns a new Table, and Column returns a copy of the stored values.
// Unchanged columns may be shared between a table and the tables derived
// from it, which is safe because nothing in this package writes to a column
// after it has been stored.
//
// Missing values are represented as NaN.
package frame

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

// Table is a set of named float64 columns aligned on a timestamp row key.
type Table struct {
	index []time.Time
	names []string
	cols  map[string][]float64
}

// New creates a table with the given row timestamps and no columns.
func New(index []time.Time) *Table {
	return &Table{
		index: slices.Clone(index),
		cols:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.index)
}

// Index returns a copy of the row timestamps.
func (t *Table) Index() []time.Time {
	return slices.Clone(t.index)
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Require returns ErrMissingColumn naming the first absent column.
func (t *Table) Require(names ...string) error {
	for _, name := range names {
		if !t.Has(name) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return slices.Clone(col), nil
}

// At returns a single cell. It panics if the column does not exist or the row
// is out of range.
func (t *Table) At(name string, row int) float64 {
	col, ok := t.cols[name]
	if !ok {
		panic(fmt.Sprintf("frame: no column %q", name))
	}
	return col[row]
}

// With returns a new table with the column added, or replaced in place if a
// column of the same name exists.
func (t *Table) With(name string, values []float64) (*Table, error) {
	if len(values) != len(t.index) {
		return nil, fmt.Errorf("frame: column %q has %d values, table has %d rows", name, len(values), len(t.index))
	}
	out := t.shallow()
	if _, exists := out.cols[name]; !exists {
		out.names = append(out.names, name)
	}
	out.cols[name] = slices.Clone(values)
	return out, nil
}

// Drop returns a new table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	out := t.shallow()
	for _, name := range names {
		if _, ok := out.cols[name]; !ok {
			continue
		}
		delete(out.cols, name)
		out.names = slices.DeleteFunc(out.names, func(n string) bool { return n == name })
	}
	return out
}

// Select returns a new table holding only the named columns, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	if err := t.Require(names...); err != nil {
		return nil, err
	}
	out := New(t.index)
	for _, name := range names {
		out.names = append(out.names, name)
		out.cols[name] = t.cols[name]
	}
	return out, nil
}

// IsSorted reports whether the row timestamps are non-decreasing.
func (t *Table) IsSorted() bool {
	return slices.IsSortedFunc(t.index, func(a, b time.Time) int { return a.Compare(b) })
}

// RequireSorted returns ErrChronologicalOrder naming the first row that
// precedes its predecessor.
func (t *Table) RequireSorted() error {
	for i := 1; i < len(t.index); i++ {
		if t.index[i].Before(t.index[i-1]) {
			return fmt.Errorf("%w: row %d (%s) precedes row %d (%s)",
				ErrChronologicalOrder, i, t.index[i].Format(time.RFC3339), i-1, t.index[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

// SortByTime returns a new table with rows ordered by timestamp. Rows with
// equal timestamps keep their relative order.
func (t *Table) SortByTime() *Table {
	order := make([]int, len(t.index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.index[order[a]].Before(t.index[order[b]])
	})

	out := &Table{
		index: make([]time.Time, len(order)),
		names: slices.Clone(t.names),
		cols:  make(map[string][]float64, len(t.cols)),
	}
	for i, src := range order {
		out.index[i] = t.index[src]
	}
	for name, col := range t.cols {
		sorted := make([]float64, len(order))
		for i, src := range order {
			sorted[i] = col[src]
		}
		out.cols[name] = sorted
	}
	return out
}

// Slice returns rows [i, j) as a new table.
func (t *Table) Slice(i, j int) *Table {
	out := &Table{
		index: slices.Clone(t.index[i:j]),
		names: slices.Clone(t.names),
		cols:  make(map[string][]float64, len(t.cols)),
	}
	for name, col := range t.cols {
		out.cols[name] = slices.Clone(col[i:j])
	}
	return out
}

// NumericColumns returns the names of columns that hold at least one
// non-missing value.
func (t *Table) NumericColumns() []string {
	var names []string
	for _, name := range t.names {
		if slices.ContainsFunc(t.cols[name], func(v float64) bool { return !math.IsNaN(v) }) {
			names = append(names, name)
		}
	}
	return names
}

func (t *Table) shallow() *Table {
	out := &Table{
		index: t.index,
		names: slices.Clone(t.names),
		cols:  make(map[string][]float64, len(t.cols)+1),
	}
	for name, col := range t.cols {
		out.cols[name] = col
	}
	return out
}

// Sheets is an ordered collection of independently processed tables, such as
// the sheets of a workbook.
type Sheets struct {
	Names  []string
	Tables map[string]*Table
}

// NewSheets creates an empty collection.
func NewSheets() *Sheets {
	return &Sheets{Tables: make(map[string]*Table)}
}

// Add appends a sheet, replacing any existing sheet of the same name.
func (s *Sheets) Add(name string, t *Table) {
	if _, exists := s.Tables[name]; !exists {
		s.Names = append(s.Names, name)
	}
	s.Tables[name] = t
}

// Len returns the number of sheets.
func (s *Sheets) Len() int {
	return len(s.Names)
}
