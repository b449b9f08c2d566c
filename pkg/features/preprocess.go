package features

import (
	"fmt"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// Weather variables recorded per station. Columns are named
// <variable>_<city>, e.g. T2M_toc.
var WeatherVariables = []string{"T2M", "QV2M", "TQL", "W2M"}

// DefaultCities are the weather station suffixes in the national dataset.
var DefaultCities = []string{"toc", "san", "dav"}

// WeatherColumns returns the weather column names for the given cities,
// grouped by city.
func WeatherColumns(cities []string) []string {
	cols := make([]string, 0, len(cities)*len(WeatherVariables))
	for _, city := range cities {
		for _, v := range WeatherVariables {
			cols = append(cols, v+"_"+city)
		}
	}
	return cols
}

// AddCalendar returns a table with hour, day_of_week (Monday=0), month, year
// and is_weekend derived from the row timestamps.
func AddCalendar(t *frame.Table) (*frame.Table, error) {
	n := t.Len()
	hour := make([]float64, n)
	dow := make([]float64, n)
	month := make([]float64, n)
	year := make([]float64, n)
	weekend := make([]float64, n)

	for i, ts := range t.Index() {
		d := dayOfWeek(ts)
		hour[i] = float64(ts.Hour())
		dow[i] = float64(d)
		month[i] = float64(ts.Month())
		year[i] = float64(ts.Year())
		if d >= 5 {
			weekend[i] = 1
		}
	}

	out := t
	var err error
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{"hour", hour},
		{"day_of_week", dow},
		{"month", month},
		{"year", year},
		{"is_weekend", weekend},
	} {
		if out, err = out.With(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// dayOfWeek maps time.Weekday (Sunday=0) to Monday=0..Sunday=6.
func dayOfWeek(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

// PreprocessContinuous adds calendar columns and replaces each weather column
// with its z-score over the whole column.
func PreprocessContinuous(t *frame.Table, cities []string) (*frame.Table, error) {
	out, err := AddCalendar(t)
	if err != nil {
		return nil, err
	}
	return normalizeColumns(out, WeatherColumns(cities))
}

// PreprocessForecast adds calendar columns to a pre-dispatch forecast table.
func PreprocessForecast(t *frame.Table) (*frame.Table, error) {
	return AddCalendar(t)
}

func normalizeColumns(t *frame.Table, columns []string) (*frame.Table, error) {
	if err := t.Require(columns...); err != nil {
		return nil, err
	}
	out := t
	for _, name := range columns {
		values, _ := out.Column(name)
		z, err := ZScore(values)
		if err != nil {
			return nil, fmt.Errorf("normalize %q: %w", name, err)
		}
		if out, err = out.With(name, z); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SheetConfig describes how each train/test workbook sheet is preprocessed.
type SheetConfig struct {
	// Target is the demand column lag and rolling features are derived from.
	Target string
	// FeaturePrefix names derived columns, e.g. demand_lag_24.
	FeaturePrefix string
	Lags          []int
	Windows       []int
	// Normalize lists the columns replaced by their z-score.
	Normalize []string
	// Weekend is the boolean-like column coerced to 0/1.
	Weekend string
}

// DefaultSheetConfig returns the layout of the national train/test workbooks.
func DefaultSheetConfig() SheetConfig {
	return SheetConfig{
		Target:        "DEMAND",
		FeaturePrefix: "demand",
		Lags:          []int{24, 48, 168},
		Windows:       []int{24, 168},
		Normalize:     []string{"week_X-2", "week_X-3", "week_X-4", "MA_X-4", "T2M_toc"},
		Weekend:       "weekend",
	}
}

// PreprocessSheet adds lag and rolling mean features, normalizes the
// configured columns and coerces the weekend flag of a single sheet. It only
// reads from the sheet it is given.
func PreprocessSheet(t *frame.Table, cfg SheetConfig) (*frame.Table, error) {
	required := append([]string{cfg.Target, cfg.Weekend}, cfg.Normalize...)
	if err := t.Require(required...); err != nil {
		return nil, err
	}
	if err := t.RequireSorted(); err != nil {
		return nil, err
	}
	if err := requireHistory(t, cfg.Lags, cfg.Windows); err != nil {
		return nil, err
	}

	target, _ := t.Column(cfg.Target)
	out := t
	var err error

	for _, lag := range cfg.Lags {
		name := fmt.Sprintf("%s_lag_%d", cfg.FeaturePrefix, lag)
		if out, err = out.With(name, Shift(target, lag)); err != nil {
			return nil, err
		}
	}
	for _, w := range cfg.Windows {
		name := fmt.Sprintf("%s_rolling_mean_%d", cfg.FeaturePrefix, w)
		if out, err = out.With(name, RollingMean(target, w)); err != nil {
			return nil, err
		}
	}

	if out, err = normalizeColumns(out, cfg.Normalize); err != nil {
		return nil, err
	}

	weekend, _ := out.Column(cfg.Weekend)
	return out.With(cfg.Weekend, Indicator(weekend))
}

// PreprocessSheets applies PreprocessSheet to every sheet independently and
// returns the processed collection in the original sheet order.
func PreprocessSheets(sheets *frame.Sheets, cfg SheetConfig) (*frame.Sheets, error) {
	out := frame.NewSheets()
	for _, name := range sheets.Names {
		processed, err := PreprocessSheet(sheets.Tables[name], cfg)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		out.Add(name, processed)
	}
	return out, nil
}
