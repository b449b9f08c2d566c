package models

import (
	"context"
	"fmt"
)

// DefaultSeasonPeriod is the daily cycle of hourly demand.
const DefaultSeasonPeriod = 24

// SeasonalNaiveModel is the reference forecaster the trained models are
// scored against.
//
// Algorithm:
//  1. Keep the last full season (period observations) of the history
//  2. Forecast step s repeats the observation one season earlier:
//     yhat_{T+s} = y_{T+s-period·k} for the smallest k ≥ 1
//  3. Optionally blend in the mean level of the season:
//     yhat = (1-levelWeight)·seasonal + levelWeight·mean
//
// With levelWeight 0 this is the textbook seasonal naive forecast.
type SeasonalNaiveModel struct {
	// period is the season length in observations.
	period int

	// levelWeight is the share of the season mean mixed into each forecast.
	levelWeight float64

	// season holds the last period observations, oldest first.
	season []float64
	level  float64
}

// NewSeasonalNaiveModel creates a seasonal naive model. Non-positive periods
// fall back to DefaultSeasonPeriod.
func NewSeasonalNaiveModel(period int) *SeasonalNaiveModel {
	if period <= 0 {
		period = DefaultSeasonPeriod
	}
	return &SeasonalNaiveModel{period: period}
}

// WithLevelWeight sets the blend between the repeated season and its mean.
// Weights outside [0, 1] are clamped.
func (m *SeasonalNaiveModel) WithLevelWeight(w float64) *SeasonalNaiveModel {
	m.levelWeight = min(max(w, 0), 1)
	return m
}

// LevelWeight returns the blend set by WithLevelWeight.
func (m *SeasonalNaiveModel) LevelWeight() float64 {
	return m.levelWeight
}

// Name returns the model identifier.
func (m *SeasonalNaiveModel) Name() string {
	return "seasonal_naive"
}

// Train captures the last season of history.
func (m *SeasonalNaiveModel) Train(ctx context.Context, history []float64) error {
	if err := checkSeries(history, m.period); err != nil {
		return fmt.Errorf("seasonal_naive(%d): %w", m.period, err)
	}

	m.season = append([]float64(nil), history[len(history)-m.period:]...)
	var sum float64
	for _, v := range m.season {
		sum += v
	}
	m.level = sum / float64(m.period)
	return nil
}

// Forecast repeats the captured season for steps values.
func (m *SeasonalNaiveModel) Forecast(ctx context.Context, steps int) ([]float64, error) {
	if m.season == nil {
		return nil, ErrNotTrained
	}
	if steps <= 0 {
		return nil, fmt.Errorf("seasonal_naive: steps must be positive, got %d", steps)
	}

	out := make([]float64, steps)
	for s := range steps {
		v := m.season[s%m.period]
		out[s] = (1-m.levelWeight)*v + m.levelWeight*m.level
	}
	return out, nil
}
