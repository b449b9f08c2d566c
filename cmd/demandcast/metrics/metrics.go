// Package metrics provides Prometheus instrumentation for demandcast runs.
//
// A run is a batch job, so metrics live on a dedicated registry that is
// flushed once on exit: written to a node-exporter textfile, pushed to a
// Pushgateway, or both.
//
// Metrics exposed:
//   - demandcast_stage_duration_seconds: Histogram of pipeline stage durations by stage
//   - demandcast_rows_processed_total: Counter of table rows processed by table
//   - demandcast_model_score: Gauge of test-set scores by model and metric (mse, rmse, mae)
//   - demandcast_model_train_seconds: Gauge of model training time by model
//   - demandcast_errors_total: Counter of errors by component and reason
//   - demandcast_last_success_timestamp_seconds: Gauge of the last successful run end time
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/HatiCode/demandcast/pkg/evaluate"
)

// Job is the Pushgateway job name of a run.
const Job = "demandcast"

type Metrics struct {
	registry *prometheus.Registry

	StageDuration     *prometheus.HistogramVec
	RowsProcessed     *prometheus.CounterVec
	ModelScore        *prometheus.GaugeVec
	ModelTrainSeconds *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	LastSuccess       prometheus.Gauge
}

// New creates the run metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "demandcast_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),

		RowsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandcast_rows_processed_total",
			Help: "Total number of table rows processed by table",
		}, []string{"table"}),

		ModelScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "demandcast_model_score",
			Help: "Test-set score of each model by metric",
		}, []string{"model", "metric"}),

		ModelTrainSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "demandcast_model_train_seconds",
			Help: "Time spent training each model",
		}, []string{"model"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "demandcast_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),

		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "demandcast_last_success_timestamp_seconds",
			Help: "Unix time the last successful run finished",
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) AddRows(table string, rows int) {
	m.RowsProcessed.WithLabelValues(table).Add(float64(rows))
}

// SetScore records the test-set metrics of a model.
func (m *Metrics) SetScore(model string, s evaluate.Metrics) {
	m.ModelScore.WithLabelValues(model, "mse").Set(s.MSE)
	m.ModelScore.WithLabelValues(model, "rmse").Set(s.RMSE)
	m.ModelScore.WithLabelValues(model, "mae").Set(s.MAE)
}

func (m *Metrics) SetTrainDuration(model string, d time.Duration) {
	m.ModelTrainSeconds.WithLabelValues(model).Set(d.Seconds())
}

func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func (m *Metrics) MarkSuccess(t time.Time) {
	m.LastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes the run metrics in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Push replaces the metrics of the demandcast job on a Pushgateway.
func (m *Metrics) Push(ctx context.Context, url string, client *http.Client) error {
	p := push.New(url, Job).Gatherer(m.registry)
	if client != nil {
		p = p.Client(client)
	}
	return p.PushContext(ctx)
}
