package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/demandcast/cmd/demandcast/config"
	"github.com/HatiCode/demandcast/cmd/demandcast/logger"
	"github.com/HatiCode/demandcast/cmd/demandcast/metrics"
	"github.com/HatiCode/demandcast/pkg/adapters"
	"github.com/HatiCode/demandcast/pkg/features"
	"github.com/HatiCode/demandcast/pkg/models"
	"github.com/HatiCode/demandcast/pkg/storage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "v0.1.0"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting demandcast",
		"version", version,
		"stage", cfg.Stage,
		"data_dir", cfg.DataDir,
		"out_dir", cfg.OutDir,
		"output_format", cfg.OutputFormat,
		"demand_source", cfg.DemandSource,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run wires the pipeline from cfg, executes the configured stage and then
// flushes the store and the run metrics, even when the stage failed.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()

	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}

	p := New(
		newInputs(cfg, logger),
		features.NewBuilder(builderConfig(cfg)),
		store,
		newTrainers(cfg),
		Options{
			Target:       cfg.Target,
			TestFraction: cfg.TestSize,
			TopFeatures:  cfg.TopFeatures,
			Cities:       features.DefaultCities,
			Sheets:       features.DefaultSheetConfig(),
		},
		m,
		logger,
	)

	report, runErr := p.Run(ctx, cfg.Stage)
	if runErr == nil && report != nil {
		logger.Info("report written", "run_id", report.RunID, "dir", cfg.OutDir)
	}

	var closeErr error
	if c, ok := store.(interface{ Close() error }); ok {
		if closeErr = c.Close(); closeErr != nil {
			closeErr = fmt.Errorf("close store: %w", closeErr)
		}
	}

	return errors.Join(runErr, closeErr, flushMetrics(cfg, m, logger))
}

func newStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.OutputFormat {
	case "csv":
		return storage.NewCSVStore(cfg.OutDir, logger), nil
	case "xlsx":
		return storage.NewWorkbookStore(cfg.OutDir, logger), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", cfg.OutputFormat)
	}
}

func newInputs(cfg *config.Config, logger *slog.Logger) Inputs {
	in := Inputs{
		Continuous: adapters.NewCSVAdapter(cfg.InputPath(cfg.Continuous), logger),
	}
	if cfg.DemandSource == "prometheus" {
		in.Demand = &adapters.PrometheusAdapter{
			ServerURL:     cfg.PromURL,
			Query:         cfg.PromQuery,
			StepSeconds:   int(cfg.PromStep.Seconds()),
			WindowSeconds: int(cfg.PromWindow.Seconds()),
			Column:        cfg.Target,
		}
	}
	if path := cfg.InputPath(cfg.Forecast); path != "" {
		in.Forecast = adapters.NewCSVAdapter(path, logger)
	}
	if path := cfg.InputPath(cfg.TrainWorkbook); path != "" {
		in.Train = adapters.NewWorkbookAdapter(path, logger)
	}
	if path := cfg.InputPath(cfg.TestWorkbook); path != "" {
		in.Test = adapters.NewWorkbookAdapter(path, logger)
	}
	return in
}

func builderConfig(cfg *config.Config) features.Config {
	fc := features.DefaultConfig()
	fc.Target = cfg.Target
	return fc
}

func newTrainers(cfg *config.Config) Trainers {
	gbm := models.DefaultGBMConfig()
	gbm.Estimators = cfg.GBMEstimators
	gbm.LearningRate = cfg.GBMLearningRate
	gbm.MaxDepth = cfg.GBMMaxDepth

	return Trainers{
		AutoReg:   models.NewAutoRegModel(cfg.ARLags),
		Boosted:   models.NewGradientBoostingModel(gbm),
		Reference: models.NewSeasonalNaiveModel(models.DefaultSeasonPeriod).WithLevelWeight(cfg.ReferenceLevelWeight),
	}
}

// flushMetrics writes the run metrics to the configured textfile and
// Pushgateway.
func flushMetrics(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) error {
	var errs []error
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		} else {
			logger.Debug("wrote metrics textfile", "path", cfg.MetricsFile)
		}
	}
	if cfg.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Push(ctx, cfg.PushgatewayURL, nil); err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		} else {
			logger.Debug("pushed metrics", "url", cfg.PushgatewayURL)
		}
	}
	return errors.Join(errs...)
}
