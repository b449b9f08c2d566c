package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gota/gota/dataframe"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// CSVAdapter loads a comma-separated file with a header row.
//
// The timestamp column is parsed with [ParseTimestamp]. Numeric columns are
// kept, boolean columns become 1/0 and other text columns are dropped.
type CSVAdapter struct {
	// Path is the file to read.
	Path string
	// TimeColumn names the timestamp column (defaults to "datetime").
	TimeColumn string
	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// NewCSVAdapter returns an adapter reading path with the default timestamp
// column.
func NewCSVAdapter(path string, logger *slog.Logger) *CSVAdapter {
	return &CSVAdapter{Path: path, TimeColumn: DefaultTimeColumn, Logger: logger}
}

func (a *CSVAdapter) Name() string { return "csv" }

// Load implements Loader.
func (a *CSVAdapter) Load(ctx context.Context) (*frame.Table, error) {
	if a.Path == "" {
		return nil, errors.New("csv adapter: Path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeColumn := a.TimeColumn
	if timeColumn == "" {
		timeColumn = DefaultTimeColumn
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.Path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, loadOptions(timeColumn)...)
	t, err := tableFromDataFrame(df, timeColumn, logger.With("path", a.Path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", a.Path, err)
	}

	logger.Debug("loaded csv", "path", a.Path, "rows", t.Len(), "columns", len(t.Names()))
	return t, nil
}
