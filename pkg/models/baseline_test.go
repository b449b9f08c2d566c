package models

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/HatiCode/demandcast/pkg/frame"
)

func TestSeasonalNaiveModel_Name(t *testing.T) {
	model := NewSeasonalNaiveModel(24)
	if got := model.Name(); got != "seasonal_naive" {
		t.Errorf("Name() = %q, want %q", got, "seasonal_naive")
	}
}

func TestSeasonalNaiveModel_Forecast(t *testing.T) {
	tests := []struct {
		name        string
		period      int
		levelWeight float64
		history     []float64
		steps       int
		want        []float64
	}{
		{
			name:    "repeats last season",
			period:  3,
			history: []float64{9, 9, 9, 1, 2, 3},
			steps:   7,
			want:    []float64{1, 2, 3, 1, 2, 3, 1},
		},
		{
			name:    "history of exactly one season",
			period:  2,
			history: []float64{5, 7},
			steps:   3,
			want:    []float64{5, 7, 5},
		},
		{
			name:        "blends toward the season mean",
			period:      2,
			levelWeight: 0.5,
			history:     []float64{0, 10},
			steps:       2,
			want:        []float64{2.5, 7.5},
		},
		{
			name:        "weight above one is clamped",
			period:      2,
			levelWeight: 3,
			history:     []float64{0, 10},
			steps:       2,
			want:        []float64{5, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewSeasonalNaiveModel(tt.period).WithLevelWeight(tt.levelWeight)
			if err := model.Train(context.Background(), tt.history); err != nil {
				t.Fatalf("Train() error = %v", err)
			}
			got, err := model.Forecast(context.Background(), tt.steps)
			if err != nil {
				t.Fatalf("Forecast() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(Forecast()) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("value[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSeasonalNaiveModel_DailyCycle(t *testing.T) {
	history := syntheticSeasonal(24*7, DefaultSeasonPeriod, 1000, 200)
	model := NewSeasonalNaiveModel(0)
	if err := model.Train(context.Background(), history); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	got, err := model.Forecast(context.Background(), 48)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	for i, v := range got {
		if want := history[len(history)-24+i%24]; v != want {
			t.Fatalf("value[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestSeasonalNaiveModel_Errors(t *testing.T) {
	model := NewSeasonalNaiveModel(24)
	if _, err := model.Forecast(context.Background(), 1); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Forecast() before Train error = %v, want ErrNotTrained", err)
	}

	if err := model.Train(context.Background(), make([]float64, 23)); !errors.Is(err, frame.ErrInsufficientHistory) {
		t.Errorf("Train() short error = %v, want ErrInsufficientHistory", err)
	}

	gap := make([]float64, 24)
	gap[5] = math.NaN()
	if err := model.Train(context.Background(), gap); !errors.Is(err, frame.ErrMissingValue) {
		t.Errorf("Train() gap error = %v, want ErrMissingValue", err)
	}
}
