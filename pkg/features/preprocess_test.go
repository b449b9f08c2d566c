package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

func hourlyIndex(start time.Time, n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range n {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

// syntheticContinuous builds n hourly rows shaped like the national dataset:
// demand with a daily cycle plus per-city weather readings.
func syntheticContinuous(n int) *frame.Table {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC) // Friday
	tbl := frame.New(hourlyIndex(start, n))

	demand := make([]float64, n)
	holiday := make([]float64, n)
	for i := range n {
		demand[i] = 1000 + 200*math.Sin(2*math.Pi*float64(i)/24) + float64(i%7)
		if i/24 == 3 {
			holiday[i] = 1
		}
	}
	tbl, _ = tbl.With("nat_demand", demand)
	tbl, _ = tbl.With("holiday", holiday)

	for c, city := range DefaultCities {
		for v, variable := range WeatherVariables {
			values := make([]float64, n)
			for i := range n {
				values[i] = 20 + float64(c) + float64(v)*0.5 + 5*math.Cos(2*math.Pi*float64(i+c)/24)
			}
			tbl, _ = tbl.With(variable+"_"+city, values)
		}
	}
	return tbl
}

func TestAddCalendar(t *testing.T) {
	// 2024-01-06 is a Saturday
	start := time.Date(2024, 1, 6, 22, 0, 0, 0, time.UTC)
	tbl := frame.New(hourlyIndex(start, 3))

	out, err := AddCalendar(tbl)
	if err != nil {
		t.Fatalf("AddCalendar() error = %v", err)
	}

	tests := []struct {
		row                int
		hour, dow, weekend float64
		month, year        float64
	}{
		{0, 22, 5, 1, 1, 2024},
		{1, 23, 5, 1, 1, 2024},
		{2, 0, 6, 1, 1, 2024},
	}
	for _, tt := range tests {
		if got := out.At("hour", tt.row); got != tt.hour {
			t.Errorf("row %d hour = %v, want %v", tt.row, got, tt.hour)
		}
		if got := out.At("day_of_week", tt.row); got != tt.dow {
			t.Errorf("row %d day_of_week = %v, want %v", tt.row, got, tt.dow)
		}
		if got := out.At("is_weekend", tt.row); got != tt.weekend {
			t.Errorf("row %d is_weekend = %v, want %v", tt.row, got, tt.weekend)
		}
		if got := out.At("month", tt.row); got != tt.month {
			t.Errorf("row %d month = %v, want %v", tt.row, got, tt.month)
		}
		if got := out.At("year", tt.row); got != tt.year {
			t.Errorf("row %d year = %v, want %v", tt.row, got, tt.year)
		}
	}
}

func TestDayOfWeek_MondayIsZero(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 7 {
		if got := dayOfWeek(monday.AddDate(0, 0, i)); got != i {
			t.Errorf("dayOfWeek(+%d) = %d, want %d", i, got, i)
		}
	}
}

func TestPreprocessContinuous(t *testing.T) {
	tbl := syntheticContinuous(72)

	out, err := PreprocessContinuous(tbl, DefaultCities)
	if err != nil {
		t.Fatalf("PreprocessContinuous() error = %v", err)
	}

	for _, col := range WeatherColumns(DefaultCities) {
		values, _ := out.Column(col)
		var mean float64
		for _, v := range values {
			mean += v
		}
		mean /= float64(len(values))
		if math.Abs(mean) > 1e-9 {
			t.Errorf("%s mean = %v, want 0", col, mean)
		}
	}

	if !out.Has("is_weekend") || !out.Has("hour") {
		t.Error("calendar columns missing")
	}
	if out.At("nat_demand", 5) != tbl.At("nat_demand", 5) {
		t.Error("demand column was changed")
	}
}

func TestPreprocessContinuous_MissingWeather(t *testing.T) {
	tbl := syntheticContinuous(48).Drop("TQL_san")

	_, err := PreprocessContinuous(tbl, DefaultCities)
	if !errors.Is(err, frame.ErrMissingColumn) {
		t.Errorf("error = %v, want ErrMissingColumn", err)
	}
}

func TestPreprocessContinuous_ZeroVariance(t *testing.T) {
	tbl := syntheticContinuous(48)
	tbl, _ = tbl.With("W2M_dav", make([]float64, 48))

	_, err := PreprocessContinuous(tbl, DefaultCities)
	if !errors.Is(err, frame.ErrDegenerateVariance) {
		t.Errorf("error = %v, want ErrDegenerateVariance", err)
	}
}

func TestPreprocessForecast(t *testing.T) {
	tbl := frame.New(hourlyIndex(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 5))
	tbl, _ = tbl.With("load_forecast", []float64{1, 2, 3, 4, 5})

	out, err := PreprocessForecast(tbl)
	if err != nil {
		t.Fatalf("PreprocessForecast() error = %v", err)
	}
	if out.At("load_forecast", 4) != 5 {
		t.Error("forecast values changed")
	}
	if out.At("month", 0) != 3 {
		t.Errorf("month = %v, want 3", out.At("month", 0))
	}
	for _, name := range out.Names() {
		if name == "load_forecast_lag_24" {
			t.Error("forecast table must not get lag features")
		}
	}
}

func syntheticSheet(start time.Time, n int, offset float64) *frame.Table {
	tbl := frame.New(hourlyIndex(start, n))
	demand := indexSeries(n)
	for i := range demand {
		demand[i] += offset
	}
	tbl, _ = tbl.With("DEMAND", demand)

	weekend := make([]float64, n)
	for i := range n {
		if (i/24)%7 >= 5 {
			weekend[i] = 1
		}
	}
	tbl, _ = tbl.With("weekend", weekend)

	for k, col := range DefaultSheetConfig().Normalize {
		values := make([]float64, n)
		for i := range n {
			values[i] = float64(k+1)*100 + math.Sin(float64(i)/5)*float64(k+1)
		}
		tbl, _ = tbl.With(col, values)
	}
	return tbl
}

func TestPreprocessSheet(t *testing.T) {
	cfg := DefaultSheetConfig()
	sheet := syntheticSheet(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 200, 0)

	out, err := PreprocessSheet(sheet, cfg)
	if err != nil {
		t.Fatalf("PreprocessSheet() error = %v", err)
	}

	lag24, _ := out.Column("demand_lag_24")
	for i := range 24 {
		if !math.IsNaN(lag24[i]) {
			t.Errorf("demand_lag_24[%d] = %v, want NaN", i, lag24[i])
		}
	}
	if lag24[24] != 0 {
		t.Errorf("demand_lag_24[24] = %v, want 0", lag24[24])
	}
	if lag24[199] != 175 {
		t.Errorf("demand_lag_24[199] = %v, want 175", lag24[199])
	}

	mean168, _ := out.Column("demand_rolling_mean_168")
	if !math.IsNaN(mean168[166]) {
		t.Errorf("rolling_mean_168[166] = %v, want NaN", mean168[166])
	}
	// mean of 0..167
	if mean168[167] != 83.5 {
		t.Errorf("rolling_mean_168[167] = %v, want 83.5", mean168[167])
	}

	for _, name := range []string{"demand_lag_48", "demand_lag_168", "demand_rolling_mean_24"} {
		if !out.Has(name) {
			t.Errorf("missing column %s", name)
		}
	}

	week, _ := out.Column("week_X-2")
	var sum float64
	for _, v := range week {
		sum += v
	}
	if math.Abs(sum/float64(len(week))) > 1e-9 {
		t.Errorf("week_X-2 mean = %v, want 0", sum/float64(len(week)))
	}
}

func TestPreprocessSheets_Independent(t *testing.T) {
	cfg := DefaultSheetConfig()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	sheets := frame.NewSheets()
	sheets.Add("Week 1", syntheticSheet(start, 200, 0))
	sheets.Add("Week 2", syntheticSheet(start.Add(200*time.Hour), 200, 10000))

	out, err := PreprocessSheets(sheets, cfg)
	if err != nil {
		t.Fatalf("PreprocessSheets() error = %v", err)
	}

	if out.Names[0] != "Week 1" || out.Names[1] != "Week 2" {
		t.Errorf("Names = %v, want original order", out.Names)
	}

	second, _ := out.Tables["Week 2"].Column("demand_lag_24")
	for i := range 24 {
		if !math.IsNaN(second[i]) {
			t.Fatalf("Week 2 lag[%d] = %v leaked data from another sheet", i, second[i])
		}
	}
	if second[24] != 10000 {
		t.Errorf("Week 2 lag[24] = %v, want 10000", second[24])
	}
}

func TestPreprocessSheet_Errors(t *testing.T) {
	cfg := DefaultSheetConfig()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	short := syntheticSheet(start, 100, 0)
	if _, err := PreprocessSheet(short, cfg); !errors.Is(err, frame.ErrInsufficientHistory) {
		t.Errorf("short sheet error = %v, want ErrInsufficientHistory", err)
	}

	missing := syntheticSheet(start, 200, 0).Drop("MA_X-4")
	if _, err := PreprocessSheet(missing, cfg); !errors.Is(err, frame.ErrMissingColumn) {
		t.Errorf("missing column error = %v, want ErrMissingColumn", err)
	}

	unsorted := syntheticSheet(start, 200, 0)
	idx := unsorted.Index()
	idx[10], idx[11] = idx[11], idx[10]
	shuffled := frame.New(idx)
	for _, name := range unsorted.Names() {
		values, _ := unsorted.Column(name)
		shuffled, _ = shuffled.With(name, values)
	}
	if _, err := PreprocessSheet(shuffled, cfg); !errors.Is(err, frame.ErrChronologicalOrder) {
		t.Errorf("unsorted sheet error = %v, want ErrChronologicalOrder", err)
	}
}

func TestPreprocessSheet_HistoryBoundary(t *testing.T) {
	cfg := DefaultSheetConfig()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		rows    int
		wantErr error
	}{
		{rows: 168},
		{rows: 167, wantErr: frame.ErrInsufficientHistory},
	}
	for _, tt := range tests {
		out, err := PreprocessSheet(syntheticSheet(start, tt.rows, 0), cfg)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%d rows: error = %v, want %v", tt.rows, err, tt.wantErr)
		}
		if err != nil {
			continue
		}
		if out.Len() != tt.rows {
			t.Errorf("%d rows: Len() = %d", tt.rows, out.Len())
		}
		mean168, _ := out.Column("demand_rolling_mean_168")
		if mean168[167] != 83.5 {
			t.Errorf("rolling_mean_168[167] = %v, want 83.5", mean168[167])
		}
		lag168, _ := out.Column("demand_lag_168")
		for i, v := range lag168 {
			if !math.IsNaN(v) {
				t.Fatalf("demand_lag_168[%d] = %v, want NaN", i, v)
			}
		}
	}
}

func TestPreprocessSheet_WeekendCoerced(t *testing.T) {
	cfg := DefaultSheetConfig()
	sheet := syntheticSheet(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 200, 0)
	weekend, _ := sheet.Column("weekend")
	for i := range weekend {
		weekend[i] *= 5
	}
	sheet, _ = sheet.With("weekend", weekend)

	out, err := PreprocessSheet(sheet, cfg)
	if err != nil {
		t.Fatalf("PreprocessSheet() error = %v", err)
	}
	for i, v := range mustColumn(t, out, "weekend") {
		if v != 0 && v != 1 {
			t.Fatalf("weekend[%d] = %v, want 0 or 1", i, v)
		}
	}
}

func mustColumn(t *testing.T, tbl *frame.Table, name string) []float64 {
	t.Helper()
	values, err := tbl.Column(name)
	if err != nil {
		t.Fatalf("Column(%q) error = %v", name, err)
	}
	return values
}
