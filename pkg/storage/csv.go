package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/HatiCode/demandcast/pkg/adapters"
	"github.com/HatiCode/demandcast/pkg/frame"
)

// TimeLayout is the timestamp format written by the file stores.
const TimeLayout = "2006-01-02 15:04:05"

// CSVStore writes each table to <dir>/<name>.csv with the timestamp column
// first, and the report to <dir>/report.json.
type CSVStore struct {
	dir    string
	logger *slog.Logger
}

// NewCSVStore creates a store rooted at dir. The directory is created on
// first write.
func NewCSVStore(dir string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{dir: dir, logger: logger}
}

// Path returns the file a table name maps to.
func (s *CSVStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name)+".csv")
}

func (s *CSVStore) PutTable(name string, t *frame.Table) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := toDataFrame(t).WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.logger.Debug("wrote table", "path", path, "rows", t.Len())
	return nil
}

func (s *CSVStore) GetTable(ctx context.Context, name string) (*frame.Table, error) {
	path := s.Path(name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return adapters.NewCSVAdapter(path, s.logger).Load(ctx)
}

func (s *CSVStore) PutReport(r Report) error {
	return writeReportJSON(s.dir, r)
}

// toDataFrame lays t out as text columns so values keep full precision.
func toDataFrame(t *frame.Table) dataframe.DataFrame {
	index := t.Index()
	stamps := make([]string, len(index))
	for i, ts := range index {
		stamps[i] = ts.UTC().Format(TimeLayout)
	}

	cols := []series.Series{series.New(stamps, series.String, adapters.DefaultTimeColumn)}
	for _, name := range t.Names() {
		values, _ := t.Column(name)
		cols = append(cols, series.New(formatValues(values), series.String, name))
	}
	return dataframe.New(cols...)
}

func formatValues(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}
