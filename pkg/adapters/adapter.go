package adapters

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// DefaultTimeColumn is the header of the timestamp column in every input.
const DefaultTimeColumn = "datetime"

// Loader is implemented by sources that yield a single time-indexed table.
//
// Loaders are responsible for fetching raw data from a file or an external
// system and shaping it into a [frame.Table] for preprocessing. The Load call
// is synchronous and should respect context cancellation.
type Loader interface {
	// Load reads the source and returns its rows keyed by timestamp.
	Load(ctx context.Context) (*frame.Table, error)

	// Name returns a short identifier for logs, e.g. "csv" or "prometheus".
	Name() string
}

// SheetLoader is implemented by sources holding several independent tables,
// such as the sheets of a workbook.
type SheetLoader interface {
	// LoadSheets returns every table in source order.
	LoadSheets(ctx context.Context) (*frame.Sheets, error)

	Name() string
}

// timeLayouts are tried in order when parsing a timestamp cell.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a timestamp in any of the accepted layouts. Values
// without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// AlignTimestamp truncates ts to a multiple of stepSec seconds.
func AlignTimestamp(ts time.Time, stepSec int) time.Time {
	return ts.Truncate(time.Duration(stepSec) * time.Second)
}

// parseCell converts a raw cell to a float. Empty and NaN cells are missing,
// booleans become 1 or 0. ok is false for any other text.
func parseCell(s string) (v float64, ok bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "<nil>":
		return math.NaN(), true
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
