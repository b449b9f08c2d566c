// Package split partitions a feature table into time-ordered training and
// test sets.
//
// The split is never random: rows are sorted by timestamp and every training
// row strictly precedes every test row. The check is enforced rather than
// assumed, so a table whose timestamps would let a test observation share an
// instant with a training observation is rejected.
package split

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// DefaultTestFraction is the share of rows held out for testing.
const DefaultTestFraction = 0.2

// Dataset holds the feature matrices and target vectors on each side of a
// chronological split. Rows of XTrain/YTrain align with TrainIndex and rows
// of XTest/YTest align with TestIndex.
type Dataset struct {
	Target     string
	Features   []string
	XTrain     [][]float64
	XTest      [][]float64
	YTrain     []float64
	YTest      []float64
	TrainIndex []time.Time
	TestIndex  []time.Time
}

// Chronological sorts t by timestamp and splits it at ⌊n·(1-testFraction)⌋.
// The target column is removed from the features. testFraction must lie in
// (0, 1).
func Chronological(t *frame.Table, target string, testFraction float64) (*Dataset, error) {
	if !(testFraction > 0 && testFraction < 1) {
		return nil, fmt.Errorf("split: test fraction %v must be in (0, 1)", testFraction)
	}
	if err := t.Require(target); err != nil {
		return nil, err
	}

	sorted := t.SortByTime()
	n := sorted.Len()
	point := int(math.Floor(float64(n) * (1 - testFraction)))
	if point == 0 || point == n {
		return nil, fmt.Errorf("%w: %d rows cannot be split with test fraction %v",
			frame.ErrInsufficientHistory, n, testFraction)
	}

	y, _ := sorted.Column(target)
	for i, v := range y {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: target %q is missing at row %d", frame.ErrMissingValue, target, i)
		}
	}

	features := sorted.Drop(target)
	names := features.Names()
	cols := make([][]float64, len(names))
	for j, name := range names {
		cols[j], _ = features.Column(name)
	}
	x := make([][]float64, n)
	for i := range x {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		x[i] = row
	}

	index := sorted.Index()
	ds := &Dataset{
		Target:     target,
		Features:   names,
		XTrain:     x[:point],
		XTest:      x[point:],
		YTrain:     y[:point],
		YTest:      y[point:],
		TrainIndex: index[:point],
		TestIndex:  index[point:],
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ErrShapeMismatch is returned by Validate when matrix and vector lengths
// disagree.
var ErrShapeMismatch = errors.New("split: shape mismatch")

// Validate checks that every training row strictly precedes every test row
// and that the matrices, targets and indexes line up.
func (d *Dataset) Validate() error {
	if len(d.XTrain) != len(d.YTrain) || len(d.XTrain) != len(d.TrainIndex) {
		return fmt.Errorf("%w: train has %d rows, %d targets, %d timestamps",
			ErrShapeMismatch, len(d.XTrain), len(d.YTrain), len(d.TrainIndex))
	}
	if len(d.XTest) != len(d.YTest) || len(d.XTest) != len(d.TestIndex) {
		return fmt.Errorf("%w: test has %d rows, %d targets, %d timestamps",
			ErrShapeMismatch, len(d.XTest), len(d.YTest), len(d.TestIndex))
	}
	if len(d.TrainIndex) == 0 || len(d.TestIndex) == 0 {
		return fmt.Errorf("%w: empty train or test set", frame.ErrInsufficientHistory)
	}

	lastTrain := d.TrainIndex[0]
	for _, ts := range d.TrainIndex[1:] {
		if ts.After(lastTrain) {
			lastTrain = ts
		}
	}
	firstTest := d.TestIndex[0]
	for _, ts := range d.TestIndex[1:] {
		if ts.Before(firstTest) {
			firstTest = ts
		}
	}
	if !lastTrain.Before(firstTest) {
		return fmt.Errorf("%w: last training row %s is not before first test row %s",
			frame.ErrChronologicalOrder, lastTrain.Format(time.RFC3339), firstTest.Format(time.RFC3339))
	}
	return nil
}

// TrainRows returns the number of training rows.
func (d *Dataset) TrainRows() int { return len(d.YTrain) }

// TestRows returns the number of test rows.
func (d *Dataset) TestRows() int { return len(d.YTest) }
