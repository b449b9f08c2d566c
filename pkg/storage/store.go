// Package storage persists the tables and evaluation reports a pipeline run
// produces.
//
// Tables are addressed by slash-separated names such as
// "processed/processed_continuous". Each backend maps the name onto its own
// layout: a CSV file per table, a workbook sheet per table, or a map entry.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/demandcast/pkg/evaluate"
	"github.com/HatiCode/demandcast/pkg/frame"
)

// ErrNotFound is returned when a table has not been stored.
var ErrNotFound = errors.New("table not found")

// Store is implemented by every output backend.
type Store interface {
	// PutTable writes t under name, replacing any previous table.
	PutTable(name string, t *frame.Table) error

	// GetTable reads back a table written by PutTable, possibly by an
	// earlier run against the same output location.
	GetTable(ctx context.Context, name string) (*frame.Table, error)

	// PutReport records the evaluation report of a run.
	PutReport(r Report) error
}

// Report summarizes one training run.
type Report struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Target      string        `json:"target"`
	Features    []string      `json:"features"`
	TrainRows   int           `json:"train_rows"`
	TestRows    int           `json:"test_rows"`
	TrainStart  time.Time     `json:"train_start"`
	TrainEnd    time.Time     `json:"train_end"`
	TestStart   time.Time     `json:"test_start"`
	TestEnd     time.Time     `json:"test_end"`
	Models      []ModelReport `json:"models"`
}

// ModelReport holds the scores of one model on the test set.
type ModelReport struct {
	Name         string                `json:"name"`
	Metrics      evaluate.Metrics      `json:"metrics"`
	TopFeatures  []evaluate.Importance `json:"top_features,omitempty"`
	TrainSeconds float64               `json:"train_seconds"`
}

// NewReport starts a report with a fresh run id.
func NewReport(target string, generatedAt time.Time) Report {
	return Report{
		RunID:       uuid.NewString(),
		GeneratedAt: generatedAt.UTC(),
		Target:      target,
	}
}

// Model returns the entry for the named model.
func (r Report) Model(name string) (ModelReport, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelReport{}, false
}
