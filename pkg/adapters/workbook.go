package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/tealeg/xlsx"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// WorkbookAdapter loads every sheet of an .xlsx workbook as an independent
// table. The first row of each sheet is the header. Timestamp cells may hold
// text or Excel serial dates.
type WorkbookAdapter struct {
	// Path is the workbook to read.
	Path string
	// TimeColumn names the timestamp column (defaults to "datetime").
	TimeColumn string
	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// NewWorkbookAdapter returns an adapter reading path with the default
// timestamp column.
func NewWorkbookAdapter(path string, logger *slog.Logger) *WorkbookAdapter {
	return &WorkbookAdapter{Path: path, TimeColumn: DefaultTimeColumn, Logger: logger}
}

func (a *WorkbookAdapter) Name() string { return "workbook" }

// LoadSheets implements SheetLoader. Sheets without data rows are skipped; a
// workbook with no usable sheet is an error.
func (a *WorkbookAdapter) LoadSheets(ctx context.Context) (*frame.Sheets, error) {
	if a.Path == "" {
		return nil, errors.New("workbook adapter: Path is required")
	}
	timeColumn := a.TimeColumn
	if timeColumn == "" {
		timeColumn = DefaultTimeColumn
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	xlFile, err := xlsx.OpenFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", a.Path, err)
	}

	sheets := frame.NewSheets()
	for _, sheet := range xlFile.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := sheetRecords(sheet, timeColumn, xlFile.Date1904)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
		if len(records) < 2 {
			logger.Debug("skipping empty sheet", "path", a.Path, "sheet", sheet.Name)
			continue
		}

		t, err := tableFromDataFrame(dataframe.LoadRecords(records, loadOptions(timeColumn)...), timeColumn,
			logger.With("path", a.Path, "sheet", sheet.Name))
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
		sheets.Add(sheet.Name, t)
	}

	if sheets.Len() == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets with data", a.Path)
	}
	logger.Debug("loaded workbook", "path", a.Path, "sheets", sheets.Len())
	return sheets, nil
}

// sheetRecords flattens a sheet into rectangular text records. Short rows
// are padded, blank rows dropped, and serial dates in the timestamp column
// rewritten as text.
func sheetRecords(sheet *xlsx.Sheet, timeColumn string, date1904 bool) ([][]string, error) {
	if len(sheet.Rows) == 0 || sheet.Rows[0] == nil {
		return nil, nil
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	timeIdx := -1
	for i, h := range headers {
		if h == timeColumn {
			timeIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("%w: %q", frame.ErrMissingColumn, timeColumn)
	}

	records := [][]string{headers}
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		blank := true
		for i, cell := range row.Cells {
			if i >= len(headers) || cell == nil {
				continue
			}
			record[i] = cell.Value
			if strings.TrimSpace(cell.Value) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if serial, err := strconv.ParseFloat(strings.TrimSpace(record[timeIdx]), 64); err == nil {
			record[timeIdx] = xlsx.TimeFromExcelTime(serial, date1904).Round(time.Second).Format("2006-01-02 15:04:05")
		}
		records = append(records, record)
	}
	return records, nil
}
