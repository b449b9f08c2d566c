package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/HatiCode/demandcast/pkg/adapters"
	"github.com/HatiCode/demandcast/pkg/frame"
)

// maxSheetName is the longest sheet name, in characters, a workbook accepts.
const maxSheetName = 31

// WorkbookStore writes tables as sheets of .xlsx workbooks. A table named
// "group/table" becomes sheet "table" of <dir>/group.xlsx. Workbooks are
// buffered and written by Close; the report goes to <dir>/report.json and a
// summary workbook <dir>/report.xlsx.
type WorkbookStore struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*frame.Table
	groups  map[string][]string
}

// NewWorkbookStore creates a store rooted at dir.
func NewWorkbookStore(dir string, logger *slog.Logger) *WorkbookStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookStore{
		dir:     dir,
		logger:  logger,
		pending: make(map[string]*frame.Table),
		groups:  make(map[string][]string),
	}
}

// Path returns the workbook a table name maps to.
func (s *WorkbookStore) Path(name string) string {
	group, _ := splitName(name)
	return filepath.Join(s.dir, group+".xlsx")
}

func splitName(name string) (group, sheet string) {
	group, sheet = path.Split(path.Clean(name))
	group = path.Clean(group)
	if group == "." || group == "/" {
		group = "tables"
	}
	if r := []rune(sheet); len(r) > maxSheetName {
		sheet = string(r[:maxSheetName])
	}
	return group, sheet
}

func (s *WorkbookStore) PutTable(name string, t *frame.Table) error {
	if t == nil {
		return fmt.Errorf("put %s: nil table", name)
	}
	group, sheet := splitName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.groups[group] {
		if _, otherSheet := splitName(other); otherSheet == sheet && other != name {
			return fmt.Errorf("put %s: sheet name %q already used by %s", name, sheet, other)
		}
	}
	if _, ok := s.pending[name]; !ok {
		s.groups[group] = append(s.groups[group], name)
	}
	s.pending[name] = t
	return nil
}

// GetTable returns a buffered table, or reads the sheet from a workbook
// written earlier.
func (s *WorkbookStore) GetTable(ctx context.Context, name string) (*frame.Table, error) {
	s.mu.Lock()
	t, ok := s.pending[name]
	s.mu.Unlock()
	if ok {
		return t, nil
	}

	file := s.Path(name)
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
	}
	sheets, err := adapters.NewWorkbookAdapter(file, s.logger).LoadSheets(ctx)
	if err != nil {
		return nil, err
	}
	_, sheet := splitName(name)
	t, ok = sheets.Tables[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q in %s", ErrNotFound, sheet, file)
	}
	return t, nil
}

func (s *WorkbookStore) PutReport(r Report) error {
	if err := writeReportJSON(s.dir, r); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet("metrics"); err != nil {
		return err
	}
	rows := [][]any{{"model", "mse", "rmse", "mae", "n", "train_seconds"}}
	for _, m := range r.Models {
		rows = append(rows, []any{m.Name, m.Metrics.MSE, m.Metrics.RMSE, m.Metrics.MAE, m.Metrics.N, m.TrainSeconds})
	}
	if err := setRows(f, "metrics", rows); err != nil {
		return err
	}

	if _, err := f.NewSheet("importances"); err != nil {
		return err
	}
	rows = [][]any{{"model", "rank", "feature", "importance"}}
	for _, m := range r.Models {
		for i, imp := range m.TopFeatures {
			rows = append(rows, []any{m.Name, i + 1, imp.Feature, imp.Score})
		}
	}
	if err := setRows(f, "importances", rows); err != nil {
		return err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	out := filepath.Join(s.dir, "report.xlsx")
	if err := f.SaveAs(out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	return nil
}

// Close writes every buffered workbook.
func (s *WorkbookStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]string, 0, len(s.groups))
	for g := range s.groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	var errs []error
	for _, g := range groups {
		if err := s.writeGroup(g, s.groups[g]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *WorkbookStore) writeGroup(group string, names []string) error {
	file := filepath.Join(s.dir, group+".xlsx")
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	for _, name := range names {
		_, sheet := splitName(name)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, s.pending[name]); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := f.SaveAs(file); err != nil {
		return fmt.Errorf("save %s: %w", file, err)
	}
	s.logger.Debug("wrote workbook", "path", file, "sheets", len(names))
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *frame.Table) error {
	names := t.Names()
	header := make([]any, 0, len(names)+1)
	header = append(header, adapters.DefaultTimeColumn)
	for _, name := range names {
		header = append(header, name)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	cols := make([][]float64, len(names))
	for j, name := range names {
		cols[j], _ = t.Column(name)
	}
	index := t.Index()
	for i, ts := range index {
		row := make([]any, 0, len(names)+1)
		row = append(row, ts.UTC().Format(TimeLayout))
		for j := range names {
			if v := cols[j][i]; !math.IsNaN(v) {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
