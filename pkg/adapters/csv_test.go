package adapters

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCSVAdapter_Load(t *testing.T) {
	path := writeFile(t, "continuous.csv", `datetime,nat_demand,T2M_toc,Holiday_ID,holiday,school,note
2020-01-01 00:00:00,970.345,25.865,1,True,0,new year
2020-01-01 01:00:00,912.1755,25.8992,1,True,0,
2020-01-01 02:00:00,,25.9372,1,False,0,x
`)

	tbl, err := NewCSVAdapter(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	want := time.Date(2020, 1, 1, 1, 0, 0, 0, time.UTC)
	if got := tbl.Index()[1]; !got.Equal(want) {
		t.Errorf("Index()[1] = %v, want %v", got, want)
	}
	if got := tbl.At("nat_demand", 1); got != 912.1755 {
		t.Errorf("nat_demand[1] = %v, want 912.1755", got)
	}
	if !math.IsNaN(tbl.At("nat_demand", 2)) {
		t.Errorf("nat_demand[2] = %v, want NaN", tbl.At("nat_demand", 2))
	}
	if tbl.At("holiday", 0) != 1 || tbl.At("holiday", 2) != 0 {
		t.Errorf("holiday = [%v .. %v], want [1 .. 0]", tbl.At("holiday", 0), tbl.At("holiday", 2))
	}
	if tbl.At("Holiday_ID", 0) != 1 {
		t.Errorf("Holiday_ID[0] = %v, want 1", tbl.At("Holiday_ID", 0))
	}
	if tbl.Has("note") {
		t.Error("text column was loaded")
	}
	if tbl.Has("datetime") {
		t.Error("timestamp column loaded as a value column")
	}
}

func TestCSVAdapter_TimestampLayouts(t *testing.T) {
	path := writeFile(t, "layouts.csv", `datetime,load_forecast
2021-03-01T00:00:00Z,1
2021-03-01 01:00,2
2021-03-02,3
`)

	tbl, err := NewCSVAdapter(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []time.Time{
		time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 1, 1, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	for i, ts := range tbl.Index() {
		if !ts.Equal(want[i]) {
			t.Errorf("Index()[%d] = %v, want %v", i, ts, want[i])
		}
	}
}

func TestCSVAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"missing timestamp column", "time,nat_demand\n2020-01-01,1\n", frame.ErrMissingColumn},
		{"bad timestamp", "datetime,nat_demand\nyesterday,1\n", nil},
		{"header only", "datetime,nat_demand\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tt.content)
			_, err := NewCSVAdapter(path, nil).Load(context.Background())
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewCSVAdapter(filepath.Join(t.TempDir(), "absent.csv"), nil).Load(context.Background()); err == nil {
		t.Error("Load() on a missing file error = nil, want error")
	}
	if _, err := (&CSVAdapter{}).Load(context.Background()); err == nil {
		t.Error("Load() without a path error = nil, want error")
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1.5", 1.5, true},
		{" 42 ", 42, true},
		{"True", 1, true},
		{"FALSE", 0, true},
		{"", math.NaN(), true},
		{"NaN", math.NaN(), true},
		{"holiday", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseCell(tt.in)
		if ok != tt.wantOK {
			t.Errorf("parseCell(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if math.IsNaN(tt.want) != math.IsNaN(got) || (!math.IsNaN(got) && got != tt.want) {
			t.Errorf("parseCell(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAlignTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 13, 47, 12, 0, time.UTC)
	if got := AlignTimestamp(ts, 3600); !got.Equal(time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("AlignTimestamp() = %v", got)
	}
}
