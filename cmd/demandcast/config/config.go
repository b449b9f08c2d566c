// Package config implements the demandcast command configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stages accepted by -stage.
const (
	StagePreprocess = "preprocess"
	StageEngineer   = "engineer"
	StageTrain      = "train"
	StageAll        = "all"
)

// Config holds all demandcast configuration.
type Config struct {
	Stage string

	// Inputs. Relative file names are resolved against DataDir; an empty
	// name skips that input.
	DataDir       string
	Continuous    string
	Forecast      string
	TrainWorkbook string
	TestWorkbook  string

	// Outputs
	OutDir       string
	OutputFormat string

	// Demand source
	DemandSource string
	PromURL      string
	PromQuery    string
	PromStep     time.Duration
	PromWindow   time.Duration

	// Training
	Target          string
	TestSize        float64
	ARLags          int
	GBMEstimators   int
	GBMLearningRate float64
	GBMMaxDepth     int
	TopFeatures     int

	// ReferenceLevelWeight blends the season mean into the seasonal naive
	// reference forecast.
	ReferenceLevelWeight float64

	// Run metrics
	MetricsFile    string
	PushgatewayURL string

	LogFormat string
	LogLevel  string
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
// The result is not validated; call Validate before using it.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Stage, "stage", getEnv("STAGE", StageAll), "Pipeline stage: preprocess, engineer, train or all")

	// Inputs
	flag.StringVar(&cfg.DataDir, "data-dir", getEnv("DATA_DIR", "data/raw"), "Directory holding the raw inputs")
	flag.StringVar(&cfg.Continuous, "continuous", getEnv("CONTINUOUS_FILE", "continuous-dataset.csv"), "Hourly demand and weather observations (CSV)")
	flag.StringVar(&cfg.Forecast, "forecast", getEnv("FORECAST_FILE", "weekly-pre-dispatch-forecast.csv"), "Weekly pre-dispatch forecast (CSV), empty to skip")
	flag.StringVar(&cfg.TrainWorkbook, "train-workbook", getEnv("TRAIN_WORKBOOK", "train_dataframes.xlsx"), "Training sheets workbook, empty to skip")
	flag.StringVar(&cfg.TestWorkbook, "test-workbook", getEnv("TEST_WORKBOOK", "test_dataframes.xlsx"), "Test sheets workbook, empty to skip")

	// Outputs
	flag.StringVar(&cfg.OutDir, "out-dir", getEnv("OUT_DIR", "data"), "Directory for processed tables and the report")
	flag.StringVar(&cfg.OutputFormat, "output-format", getEnv("OUTPUT_FORMAT", "csv"), "Output format: csv or xlsx")

	// Demand source
	flag.StringVar(&cfg.DemandSource, "demand-source", getEnv("DEMAND_SOURCE", "csv"), "Demand source: csv or prometheus")
	flag.StringVar(&cfg.PromURL, "prom-url", getEnv("PROM_URL", "http://localhost:9090"), "Prometheus URL")
	flag.StringVar(&cfg.PromQuery, "prom-query", getEnv("PROM_QUERY", ""), "Prometheus demand query (required with -demand-source=prometheus)")
	flag.DurationVar(&cfg.PromStep, "prom-step", getEnvDuration("PROM_STEP", time.Hour), "Prometheus query resolution")
	flag.DurationVar(&cfg.PromWindow, "prom-window", getEnvDuration("PROM_WINDOW", 30*24*time.Hour), "Prometheus lookback window")

	// Training
	flag.StringVar(&cfg.Target, "target", getEnv("TARGET", "nat_demand"), "Target column")
	flag.Float64Var(&cfg.TestSize, "test-size", getEnvFloat("TEST_SIZE", 0.2), "Fraction of rows held out for testing")
	flag.IntVar(&cfg.ARLags, "ar-lags", getEnvInt("AR_LAGS", 24), "Autoregressive order")
	flag.IntVar(&cfg.GBMEstimators, "gbm-estimators", getEnvInt("GBM_ESTIMATORS", 100), "Number of boosted trees")
	flag.Float64Var(&cfg.GBMLearningRate, "gbm-learning-rate", getEnvFloat("GBM_LEARNING_RATE", 0.3), "Boosting learning rate")
	flag.IntVar(&cfg.GBMMaxDepth, "gbm-max-depth", getEnvInt("GBM_MAX_DEPTH", 6), "Maximum tree depth")
	flag.IntVar(&cfg.TopFeatures, "top-features", getEnvInt("TOP_FEATURES", 10), "Number of ranked feature importances to report")
	flag.Float64Var(&cfg.ReferenceLevelWeight, "reference-level-weight", getEnvFloat("REFERENCE_LEVEL_WEIGHT", 0), "Share of the season mean blended into the reference forecast, in [0, 1]")

	// Run metrics
	flag.StringVar(&cfg.MetricsFile, "metrics-file", getEnv("METRICS_FILE", ""), "Write run metrics to this node-exporter textfile")
	flag.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getEnv("PUSHGATEWAY_URL", ""), "Push run metrics to this Pushgateway")

	// Logging
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Stage {
	case StagePreprocess, StageEngineer, StageTrain, StageAll:
	default:
		return fmt.Errorf("--stage must be one of preprocess, engineer, train, all (got %q)", c.Stage)
	}
	switch c.OutputFormat {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("--output-format must be csv or xlsx (got %q)", c.OutputFormat)
	}
	switch c.DemandSource {
	case "csv":
	case "prometheus":
		if c.PromQuery == "" {
			return errors.New("--prom-query is required with --demand-source=prometheus")
		}
		if c.PromStep < time.Second {
			return fmt.Errorf("--prom-step must be at least 1s (got %v)", c.PromStep)
		}
		if c.PromWindow < c.PromStep {
			return fmt.Errorf("--prom-window (%v) must cover at least one step (%v)", c.PromWindow, c.PromStep)
		}
	default:
		return fmt.Errorf("--demand-source must be csv or prometheus (got %q)", c.DemandSource)
	}
	if c.OutDir == "" {
		return errors.New("--out-dir is required")
	}
	if c.Stage == StagePreprocess || c.Stage == StageAll {
		if c.Continuous == "" {
			return errors.New("--continuous is required")
		}
	}
	if c.Target == "" {
		return errors.New("--target is required")
	}
	if !(c.TestSize > 0 && c.TestSize < 1) {
		return fmt.Errorf("--test-size must be in (0, 1) (got %v)", c.TestSize)
	}
	if c.ARLags < 1 {
		return fmt.Errorf("--ar-lags must be at least 1 (got %d)", c.ARLags)
	}
	if c.GBMEstimators < 1 {
		return fmt.Errorf("--gbm-estimators must be at least 1 (got %d)", c.GBMEstimators)
	}
	if !(c.GBMLearningRate > 0) {
		return fmt.Errorf("--gbm-learning-rate must be positive (got %v)", c.GBMLearningRate)
	}
	if c.GBMMaxDepth < 1 {
		return fmt.Errorf("--gbm-max-depth must be at least 1 (got %d)", c.GBMMaxDepth)
	}
	if c.TopFeatures < 0 {
		return fmt.Errorf("--top-features must not be negative (got %d)", c.TopFeatures)
	}
	if !(c.ReferenceLevelWeight >= 0 && c.ReferenceLevelWeight <= 1) {
		return fmt.Errorf("--reference-level-weight must be in [0, 1] (got %v)", c.ReferenceLevelWeight)
	}
	return nil
}

// InputPath resolves an input file name against DataDir. Empty names stay
// empty and absolute paths are returned unchanged.
func (c *Config) InputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
