// Package adapters provides the data source connectors of the pipeline. They
// retrieve raw observations from files or external systems and normalize
// them into [frame.Table] values.
//
// Available adapters:
//   - CSVAdapter        reads a delimited file keyed by a timestamp column
//   - WorkbookAdapter   reads every sheet of an .xlsx workbook
//   - PrometheusAdapter fetches a demand series via the Prometheus HTTP API
//
// Adapters focus on pulling raw data and leave all preprocessing, feature
// building and modeling to the upper layers.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// DefaultDemandColumn is the column the Prometheus series is loaded into.
const DefaultDemandColumn = "nat_demand"

// PrometheusAdapter loads a demand series from the Prometheus HTTP API.
// It issues a /api/v1/query_range call and returns a table with a single
// column (Column, default "nat_demand").
//
// If multiple series are returned, values with the same timestamp are SUMMED.
type PrometheusAdapter struct {
	// ServerURL is the base URL to Prometheus, e.g. http://prometheus.monitoring.svc:9090
	ServerURL string
	// Query is the PromQL expression to evaluate.
	Query string
	// StepSeconds controls the resolution (defaults to 3600s if <= 0).
	StepSeconds int
	// WindowSeconds is how far back from End to query (defaults to 30 days).
	WindowSeconds int
	// End is the end of the range; zero means now.
	End time.Time
	// Column names the loaded series.
	Column string
	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (p *PrometheusAdapter) Name() string { return "prometheus" }

// Load implements Loader. It queries Prometheus for the configured window at
// StepSeconds resolution and returns the rows sorted by timestamp. It
// respects the provided context for cancellation and deadlines.
func (p *PrometheusAdapter) Load(ctx context.Context) (*frame.Table, error) {
	if p.ServerURL == "" || p.Query == "" {
		return nil, errors.New("prometheus adapter: ServerURL and Query are required")
	}
	step := p.StepSeconds
	if step <= 0 {
		step = 3600
	}
	window := p.WindowSeconds
	if window <= 0 {
		window = 30 * 24 * 3600
	}
	column := p.Column
	if column == "" {
		column = DefaultDemandColumn
	}
	end := p.End
	if end.IsZero() {
		end = time.Now()
	}
	end = AlignTimestamp(end.UTC(), step)
	start := end.Add(-time.Duration(window) * time.Second)

	u, err := url.Parse(p.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}
	u = u.JoinPath("api", "v1", "query_range")

	q := u.Query()
	q.Set("query", p.Query)
	q.Set("start", fmt.Sprintf("%d", start.Unix()))
	q.Set("end", fmt.Sprintf("%d", end.Unix()))
	q.Set("step", fmt.Sprintf("%d", step))
	u.RawQuery = q.Encode()

	cli := p.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prometheus: status %d", resp.StatusCode)
	}

	var pr prometheusRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode prometheus response: %w", err)
	}
	if pr.Status != "success" {
		return nil, fmt.Errorf("prometheus status: %s", pr.Status)
	}

	acc, err := aggregateRangeResult(pr.Data.Result)
	if err != nil {
		return nil, err
	}
	if len(acc) == 0 {
		return nil, fmt.Errorf("%w: query %q returned no samples", frame.ErrInsufficientHistory, p.Query)
	}

	stamps := make([]int64, 0, len(acc))
	for ts := range acc {
		stamps = append(stamps, ts)
	}
	slices.Sort(stamps)

	index := make([]time.Time, len(stamps))
	values := make([]float64, len(stamps))
	for i, ts := range stamps {
		index[i] = time.Unix(ts, 0).UTC()
		values[i] = acc[ts]
	}
	return frame.New(index).With(column, values)
}

type prometheusRangeResponse struct {
	Status string              `json:"status"`
	Data   prometheusRangeData `json:"data"`
}

type prometheusRangeData struct {
	ResultType string                 `json:"resultType"`
	Result     []prometheusRangeSerie `json:"result"`
}

type prometheusRangeSerie struct {
	Metric map[string]string `json:"metric"`
	// Values is an array of [ <unix_time_float>, "<value_string>" ]
	Values [][]any `json:"values"`
}

// aggregateRangeResult sums every series per unix second.
func aggregateRangeResult(series []prometheusRangeSerie) (map[int64]float64, error) {
	acc := make(map[int64]float64)
	for _, s := range series {
		for _, pair := range s.Values {
			if len(pair) != 2 {
				return nil, fmt.Errorf("invalid value pair length: %d", len(pair))
			}

			var tsSec int64
			switch v := pair[0].(type) {
			case float64:
				tsSec = int64(v)
			case json.Number:
				f, _ := v.Float64()
				tsSec = int64(f)
			default:
				return nil, fmt.Errorf("unexpected timestamp type %T", v)
			}

			var val float64
			switch vv := pair[1].(type) {
			case string:
				f, err := strconv.ParseFloat(vv, 64)
				if err != nil {
					return nil, fmt.Errorf("parse value: %w", err)
				}
				val = f
			case float64:
				val = vv
			case json.Number:
				f, _ := vv.Float64()
				val = f
			default:
				return nil, fmt.Errorf("unexpected value type %T", vv)
			}
			acc[tsSec] += val
		}
	}

	return acc, nil
}
