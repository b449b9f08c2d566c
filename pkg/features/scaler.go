package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// StandardScaler centers columns on their mean and scales them to unit
// population standard deviation. Statistics are learned by Fit and applied by
// Transform, so a scaler fitted on one table can be applied to another.
//
// Missing values are ignored when fitting and stay missing when
// transforming. A column with zero variance is only centered.
type StandardScaler struct {
	columns []string
	mean    map[string]float64
	scale   map[string]float64
}

// NewStandardScaler creates an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{
		mean:  make(map[string]float64),
		scale: make(map[string]float64),
	}
}

// Fit learns the mean and scale of each named column.
func (s *StandardScaler) Fit(t *frame.Table, columns []string) error {
	s.columns = s.columns[:0]
	for _, name := range columns {
		values, err := t.Column(name)
		if err != nil {
			return err
		}
		present := dropNaN(values)
		if len(present) == 0 {
			return fmt.Errorf("%w: column %q has no values to fit", frame.ErrMissingValue, name)
		}
		mean, std := stat.PopMeanStdDev(present, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.columns = append(s.columns, name)
		s.mean[name] = mean
		s.scale[name] = std
	}
	return nil
}

// Transform returns a new table with the fitted columns standardized.
func (s *StandardScaler) Transform(t *frame.Table) (*frame.Table, error) {
	if len(s.columns) == 0 {
		return t, nil
	}
	out := t
	for _, name := range s.columns {
		values, err := out.Column(name)
		if err != nil {
			return nil, err
		}
		mean, scale := s.mean[name], s.scale[name]
		for i, v := range values {
			values[i] = (v - mean) / scale
		}
		if out, err = out.With(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FitTransform fits the scaler on t and returns t transformed.
func (s *StandardScaler) FitTransform(t *frame.Table, columns []string) (*frame.Table, error) {
	if err := s.Fit(t, columns); err != nil {
		return nil, err
	}
	return s.Transform(t)
}

// Columns returns the fitted column names.
func (s *StandardScaler) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Params returns the fitted mean and scale for a column.
func (s *StandardScaler) Params(column string) (mean, scale float64, ok bool) {
	mean, ok = s.mean[column]
	if !ok {
		return 0, 0, false
	}
	return mean, s.scale[column], true
}
