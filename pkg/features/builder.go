// Package features turns raw demand and weather tables into model inputs:
// calendar and weather preprocessing, per-sheet lag and rolling features for
// the train/test workbooks, and the full feature set used for training.
package features

import (
	"fmt"
	"slices"
	"strings"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// Cycle names a periodic column and its period.
type Cycle struct {
	Column string
	Period float64
}

// Config controls which features the Builder derives.
type Config struct {
	// Target is the demand column.
	Target string
	// Lags are the target shift offsets, in rows.
	Lags []int
	// Windows are the trailing rolling window sizes, in rows.
	Windows []int
	// Cycles are encoded as <column>_sin and <column>_cos.
	Cycles []Cycle
	// Cities get a temperature x humidity interaction column each.
	Cities []string
	// Holiday is coerced to 0/1 as is_holiday.
	Holiday string
	// Columns starting with a protected prefix or named in ProtectedNames
	// are left out of the final normalization.
	ProtectedPrefixes []string
	ProtectedNames    []string
}

// DefaultConfig returns the feature set for the national demand dataset.
func DefaultConfig() Config {
	return Config{
		Target:  "nat_demand",
		Lags:    []int{24, 48, 168},
		Windows: []int{24, 168},
		Cycles: []Cycle{
			{Column: "hour", Period: 24},
			{Column: "month", Period: 12},
		},
		Cities:            DefaultCities,
		Holiday:           "holiday",
		ProtectedPrefixes: []string{"T2M_", "QV2M_", "TQL_", "W2M_"},
		ProtectedNames:    []string{"is_weekend", "is_holiday", "Holiday_ID", "school"},
	}
}

// Builder derives engineered feature tables from preprocessed observations.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new feature builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Config returns the builder configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// BuildFeatures adds cyclical, lag, rolling, interaction and holiday features
// to a preprocessed table. Rows must be time ordered and there must be
// enough rows to fill the largest lag and window at least once.
func (b *Builder) BuildFeatures(t *frame.Table) (*frame.Table, error) {
	cfg := b.cfg
	if err := t.Require(cfg.Target); err != nil {
		return nil, err
	}
	if err := t.RequireSorted(); err != nil {
		return nil, err
	}
	if err := requireHistory(t, cfg.Lags, cfg.Windows); err != nil {
		return nil, err
	}

	out := t
	var err error
	set := func(name string, values []float64) {
		if err == nil {
			out, err = out.With(name, values)
		}
	}

	for _, c := range cfg.Cycles {
		values, cerr := out.Column(c.Column)
		if cerr != nil {
			return nil, cerr
		}
		sin, cos := Cyclical(values, c.Period)
		set(c.Column+"_sin", sin)
		set(c.Column+"_cos", cos)
	}

	target, _ := out.Column(cfg.Target)
	for _, lag := range cfg.Lags {
		set(fmt.Sprintf("%s_lag_%d", cfg.Target, lag), Shift(target, lag))
	}
	for _, w := range cfg.Windows {
		set(fmt.Sprintf("%s_rolling_mean_%d", cfg.Target, w), RollingMean(target, w))
		set(fmt.Sprintf("%s_rolling_std_%d", cfg.Target, w), RollingStd(target, w))
	}

	for _, city := range cfg.Cities {
		temp, terr := out.Column("T2M_" + city)
		if terr != nil {
			return nil, terr
		}
		humidity, herr := out.Column("QV2M_" + city)
		if herr != nil {
			return nil, herr
		}
		cross := make([]float64, len(temp))
		for i := range temp {
			cross[i] = temp[i] * humidity[i]
		}
		set("temp_humidity_interaction_"+city, cross)
	}

	if cfg.Holiday != "" {
		holiday, herr := out.Column(cfg.Holiday)
		if herr != nil {
			return nil, herr
		}
		set("is_holiday", Indicator(holiday))
	}

	if err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize fits a StandardScaler on every unprotected numeric column of t
// and returns the transformed table with the fitted scaler.
func (b *Builder) Normalize(t *frame.Table) (*frame.Table, *StandardScaler, error) {
	scaler := NewStandardScaler()
	out, err := scaler.FitTransform(t, b.NormalizedColumns(t))
	if err != nil {
		return nil, nil, fmt.Errorf("normalize features: %w", err)
	}
	return out, scaler, nil
}

// Build runs BuildFeatures followed by Normalize.
func (b *Builder) Build(t *frame.Table) (*frame.Table, *StandardScaler, error) {
	engineered, err := b.BuildFeatures(t)
	if err != nil {
		return nil, nil, err
	}
	return b.Normalize(engineered)
}

// NormalizedColumns returns the numeric columns of t that Normalize rescales.
func (b *Builder) NormalizedColumns(t *frame.Table) []string {
	var cols []string
	for _, name := range t.NumericColumns() {
		if b.protected(name) {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

func (b *Builder) protected(name string) bool {
	if slices.Contains(b.cfg.ProtectedNames, name) {
		return true
	}
	for _, p := range b.cfg.ProtectedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
