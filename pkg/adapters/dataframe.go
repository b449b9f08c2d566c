package adapters

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// nanValues are the cell spellings read as missing.
var nanValues = []string{"", "NA", "NaN", "nan", "<nil>"}

// loadOptions keeps the timestamp column as text and type-detects the rest.
func loadOptions(timeColumn string) []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(map[string]series.Type{timeColumn: series.String}),
	}
}

// tableFromDataFrame converts df into a table keyed by timeColumn. Numeric
// and boolean columns are kept; text columns are skipped.
func tableFromDataFrame(df dataframe.DataFrame, timeColumn string, logger *slog.Logger) (*frame.Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	names := df.Names()
	if !slices.Contains(names, timeColumn) {
		return nil, fmt.Errorf("%w: %q", frame.ErrMissingColumn, timeColumn)
	}

	stamps := df.Col(timeColumn).Records()
	index := make([]time.Time, len(stamps))
	for i, s := range stamps {
		ts, err := ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		index[i] = ts
	}

	t := frame.New(index)
	for _, name := range names {
		if name == timeColumn {
			continue
		}
		values, ok := seriesValues(df.Col(name))
		if !ok {
			logger.Debug("skipping non-numeric column", "column", name)
			continue
		}
		var err error
		if t, err = t.With(name, values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func seriesValues(s series.Series) ([]float64, bool) {
	switch s.Type() {
	case series.Float, series.Int, series.Bool:
		return s.Float(), true
	}
	// text columns may still hold capitalized booleans
	records := s.Records()
	out := make([]float64, len(records))
	for i, r := range records {
		v, ok := parseCell(r)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
