// Package main implements the demandcast command.
// demandcast loads hourly demand and weather observations, preprocesses and
// engineers features, fits an autoregressive model and a gradient-boosted
// tree ensemble, and reports their test-set scores.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/HatiCode/demandcast/cmd/demandcast/config"
	"github.com/HatiCode/demandcast/cmd/demandcast/metrics"
	"github.com/HatiCode/demandcast/pkg/adapters"
	"github.com/HatiCode/demandcast/pkg/evaluate"
	"github.com/HatiCode/demandcast/pkg/features"
	"github.com/HatiCode/demandcast/pkg/frame"
	"github.com/HatiCode/demandcast/pkg/models"
	"github.com/HatiCode/demandcast/pkg/split"
	"github.com/HatiCode/demandcast/pkg/storage"
)

// Table names in the output store. Stages run on their own read their input
// back under these names.
const (
	tableContinuous = "processed/processed_continuous"
	tableForecast   = "processed/processed_forecast"
	tableEngineered = "engineered/engineered_features"
)

func sheetTable(kind, sheet string) string {
	return fmt.Sprintf("processed/processed_%s_%s", kind, sheet)
}

// Inputs are the raw data sources of a run. Only Continuous is required.
type Inputs struct {
	Continuous adapters.Loader

	// Demand, when set, replaces the target column of Continuous with the
	// series it loads, matched on timestamp.
	Demand adapters.Loader

	Forecast adapters.Loader
	Train    adapters.SheetLoader
	Test     adapters.SheetLoader
}

// Trainers are the models fitted by the train stage.
type Trainers struct {
	AutoReg   models.SeriesModel
	Boosted   models.Regressor
	Reference models.SeriesModel
}

// Options tune preprocessing and evaluation.
type Options struct {
	Target       string
	TestFraction float64
	TopFeatures  int
	Cities       []string
	Sheets       features.SheetConfig
}

// Pipeline orchestrates a run: load → preprocess → engineer → split → train → evaluate → report.
type Pipeline struct {
	inputs   Inputs
	builder  *features.Builder
	store    storage.Store
	trainers Trainers
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger

	now func() time.Time
}

// New creates a new Pipeline.
func New(
	inputs Inputs,
	builder *features.Builder,
	store storage.Store,
	trainers Trainers,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	return &Pipeline{
		inputs:   inputs,
		builder:  builder,
		store:    store,
		trainers: trainers,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one stage, or every stage in sequence for config.StageAll.
// Chained stages hand their tables over in memory; a single stage reads its
// input from the store.
func (p *Pipeline) Run(ctx context.Context, stage string) (*storage.Report, error) {
	start := p.now()
	p.logger.Debug("starting run", "stage", stage)

	var (
		report *storage.Report
		err    error
	)
	switch stage {
	case config.StagePreprocess:
		_, err = p.Preprocess(ctx)
	case config.StageEngineer:
		_, err = p.Engineer(ctx, nil)
	case config.StageTrain:
		report, err = p.Train(ctx, nil)
	case config.StageAll:
		report, err = p.all(ctx)
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}
	if err != nil {
		return nil, err
	}

	end := p.now()
	p.metrics.MarkSuccess(end)
	p.logger.Info("run complete",
		"stage", stage,
		"total_ms", end.Sub(start).Milliseconds(),
	)
	return report, nil
}

func (p *Pipeline) all(ctx context.Context) (*storage.Report, error) {
	processed, err := p.Preprocess(ctx)
	if err != nil {
		return nil, err
	}
	engineered, err := p.Engineer(ctx, processed)
	if err != nil {
		return nil, err
	}
	return p.Train(ctx, engineered)
}

// Preprocess loads every input, adds calendar and weather features to the
// continuous and forecast tables, derives per-sheet features for the train
// and test workbooks, and stores the results. It returns the processed
// continuous table.
func (p *Pipeline) Preprocess(ctx context.Context) (*frame.Table, error) {
	start := p.now()

	raw, loadDuration, err := p.load(ctx)
	if err != nil {
		p.metrics.RecordError("loader", "load_failed")
		return nil, fmt.Errorf("load: %w", err)
	}

	processed, err := features.PreprocessContinuous(raw, p.opts.Cities)
	if err != nil {
		p.metrics.RecordError("features", "preprocess_failed")
		return nil, fmt.Errorf("preprocess continuous: %w", err)
	}
	if err := p.put(tableContinuous, processed); err != nil {
		return nil, err
	}

	forecastRows := 0
	if p.inputs.Forecast != nil {
		forecast, err := p.inputs.Forecast.Load(ctx)
		if err != nil {
			p.metrics.RecordError("loader", "load_failed")
			return nil, fmt.Errorf("load forecast: %w", err)
		}
		forecast, err = features.PreprocessForecast(forecast)
		if err != nil {
			p.metrics.RecordError("features", "preprocess_failed")
			return nil, fmt.Errorf("preprocess forecast: %w", err)
		}
		if err := p.put(tableForecast, forecast); err != nil {
			return nil, err
		}
		forecastRows = forecast.Len()
	}

	sheets := 0
	for _, wb := range []struct {
		kind   string
		loader adapters.SheetLoader
	}{
		{"train", p.inputs.Train},
		{"test", p.inputs.Test},
	} {
		if wb.loader == nil {
			continue
		}
		n, err := p.preprocessWorkbook(ctx, wb.kind, wb.loader)
		if err != nil {
			return nil, err
		}
		sheets += n
	}

	duration := p.now().Sub(start)
	p.metrics.ObserveStage(config.StagePreprocess, duration)
	p.logger.Info("preprocess complete",
		"continuous_rows", processed.Len(),
		"forecast_rows", forecastRows,
		"sheets", sheets,
		"load_ms", loadDuration.Milliseconds(),
		"total_ms", duration.Milliseconds(),
	)
	return processed, nil
}

// load reads the continuous observations and, if configured, swaps in the
// demand series from the demand source.
func (p *Pipeline) load(ctx context.Context) (*frame.Table, time.Duration, error) {
	start := p.now()

	raw, err := p.inputs.Continuous.Load(ctx)
	if err != nil {
		return nil, 0, err
	}
	raw = raw.SortByTime()

	if p.inputs.Demand != nil {
		demand, err := p.inputs.Demand.Load(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", p.inputs.Demand.Name(), err)
		}
		raw, err = mergeDemand(raw, demand, p.opts.Target)
		if err != nil {
			return nil, 0, err
		}
	}

	duration := p.now().Sub(start)
	p.metrics.AddRows("continuous", raw.Len())
	p.logger.Debug("loaded observations",
		"adapter", p.inputs.Continuous.Name(),
		"rows", raw.Len(),
		"columns", len(raw.Names()),
		"duration_ms", duration.Milliseconds(),
	)
	return raw, duration, nil
}

// mergeDemand sets column of base to the demand value recorded at the same
// timestamp, or NaN where demand has no sample.
func mergeDemand(base, demand *frame.Table, column string) (*frame.Table, error) {
	names := demand.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: demand source returned no series", frame.ErrMissingColumn)
	}
	values, err := demand.Column(names[0])
	if err != nil {
		return nil, err
	}
	byTime := make(map[int64]float64, len(values))
	for i, ts := range demand.Index() {
		byTime[ts.Unix()] = values[i]
	}

	merged := make([]float64, base.Len())
	matched := 0
	for i, ts := range base.Index() {
		v, ok := byTime[ts.Unix()]
		if !ok {
			merged[i] = math.NaN()
			continue
		}
		merged[i] = v
		matched++
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: no demand samples align with the observations", frame.ErrInsufficientHistory)
	}
	return base.With(column, merged)
}

func (p *Pipeline) preprocessWorkbook(ctx context.Context, kind string, loader adapters.SheetLoader) (int, error) {
	sheets, err := loader.LoadSheets(ctx)
	if err != nil {
		p.metrics.RecordError("loader", "load_failed")
		return 0, fmt.Errorf("load %s workbook: %w", kind, err)
	}
	processed, err := features.PreprocessSheets(sheets, p.opts.Sheets)
	if err != nil {
		p.metrics.RecordError("features", "preprocess_failed")
		return 0, fmt.Errorf("preprocess %s workbook: %w", kind, err)
	}
	for _, name := range processed.Names {
		if err := p.put(sheetTable(kind, name), processed.Tables[name]); err != nil {
			return 0, err
		}
	}
	p.logger.Debug("preprocessed workbook", "kind", kind, "sheets", processed.Len())
	return processed.Len(), nil
}

// Engineer derives the full feature set from the processed continuous table
// and stores it. A nil table is read back from the store.
func (p *Pipeline) Engineer(ctx context.Context, processed *frame.Table) (*frame.Table, error) {
	start := p.now()

	if processed == nil {
		var err error
		if processed, err = p.get(ctx, tableContinuous); err != nil {
			return nil, err
		}
	}

	engineered, scaler, err := p.builder.Build(processed)
	if err != nil {
		p.metrics.RecordError("features", "build_failed")
		return nil, fmt.Errorf("build features: %w", err)
	}
	if err := p.put(tableEngineered, engineered); err != nil {
		return nil, err
	}

	duration := p.now().Sub(start)
	p.metrics.ObserveStage(config.StageEngineer, duration)
	p.logger.Info("engineer complete",
		"rows", engineered.Len(),
		"columns", len(engineered.Names()),
		"normalized", len(scaler.Columns()),
		"total_ms", duration.Milliseconds(),
	)
	return engineered, nil
}

// Train splits the engineered table chronologically, fits every model on the
// training rows, scores each on the test rows and stores the report. A nil
// table is read back from the store.
func (p *Pipeline) Train(ctx context.Context, engineered *frame.Table) (*storage.Report, error) {
	start := p.now()

	if engineered == nil {
		var err error
		if engineered, err = p.get(ctx, tableEngineered); err != nil {
			return nil, err
		}
	}

	ds, err := split.Chronological(engineered, p.opts.Target, p.opts.TestFraction)
	if err != nil {
		p.metrics.RecordError("split", "split_failed")
		return nil, fmt.Errorf("split: %w", err)
	}
	p.logger.Debug("split dataset",
		"train_rows", ds.TrainRows(),
		"test_rows", ds.TestRows(),
		"features", len(ds.Features),
	)

	report := storage.NewReport(p.opts.Target, p.now())
	report.Features = ds.Features
	report.TrainRows = ds.TrainRows()
	report.TestRows = ds.TestRows()
	report.TrainStart = ds.TrainIndex[0]
	report.TrainEnd = ds.TrainIndex[len(ds.TrainIndex)-1]
	report.TestStart = ds.TestIndex[0]
	report.TestEnd = ds.TestIndex[len(ds.TestIndex)-1]

	if p.trainers.AutoReg != nil {
		mr, err := p.scoreSeries(ctx, p.trainers.AutoReg, ds)
		if err != nil {
			return nil, err
		}
		report.Models = append(report.Models, mr)
	}
	if p.trainers.Boosted != nil {
		mr, err := p.scoreRegressor(ctx, p.trainers.Boosted, ds)
		if err != nil {
			return nil, err
		}
		report.Models = append(report.Models, mr)
	}
	if p.trainers.Reference != nil {
		mr, err := p.scoreSeries(ctx, p.trainers.Reference, ds)
		if err != nil {
			return nil, err
		}
		report.Models = append(report.Models, mr)
	}

	if err := p.store.PutReport(report); err != nil {
		p.metrics.RecordError("store", "put_failed")
		return nil, fmt.Errorf("store report: %w", err)
	}

	duration := p.now().Sub(start)
	p.metrics.ObserveStage(config.StageTrain, duration)
	p.logger.Info("train complete",
		"run_id", report.RunID,
		"train_rows", report.TrainRows,
		"test_rows", report.TestRows,
		"models", len(report.Models),
		"total_ms", duration.Milliseconds(),
	)
	return &report, nil
}

// scoreSeries trains a series model on the training targets and forecasts
// one value per test row.
func (p *Pipeline) scoreSeries(ctx context.Context, m models.SeriesModel, ds *split.Dataset) (storage.ModelReport, error) {
	start := p.now()
	if err := m.Train(ctx, ds.YTrain); err != nil {
		p.metrics.RecordError("model", "train_failed")
		return storage.ModelReport{}, fmt.Errorf("train %s: %w", m.Name(), err)
	}
	trainDuration := p.now().Sub(start)

	pred, err := m.Forecast(ctx, ds.TestRows())
	if err != nil {
		p.metrics.RecordError("model", "predict_failed")
		return storage.ModelReport{}, fmt.Errorf("forecast %s: %w", m.Name(), err)
	}
	return p.score(m.Name(), ds.YTest, pred, trainDuration, nil)
}

// scoreRegressor fits a regressor on the training rows, predicts the test
// rows and ranks its feature importances.
func (p *Pipeline) scoreRegressor(ctx context.Context, m models.Regressor, ds *split.Dataset) (storage.ModelReport, error) {
	start := p.now()
	if err := m.Fit(ctx, ds.XTrain, ds.YTrain); err != nil {
		p.metrics.RecordError("model", "train_failed")
		return storage.ModelReport{}, fmt.Errorf("fit %s: %w", m.Name(), err)
	}
	trainDuration := p.now().Sub(start)

	pred, err := m.Predict(ctx, ds.XTest)
	if err != nil {
		p.metrics.RecordError("model", "predict_failed")
		return storage.ModelReport{}, fmt.Errorf("predict %s: %w", m.Name(), err)
	}

	top, err := evaluate.RankImportances(ds.Features, m.FeatureImportances(), p.opts.TopFeatures)
	if err != nil {
		return storage.ModelReport{}, fmt.Errorf("rank %s importances: %w", m.Name(), err)
	}
	return p.score(m.Name(), ds.YTest, pred, trainDuration, top)
}

func (p *Pipeline) score(name string, yTrue, yPred []float64, trainDuration time.Duration, top []evaluate.Importance) (storage.ModelReport, error) {
	s, err := evaluate.Score(yTrue, yPred)
	if err != nil {
		p.metrics.RecordError("evaluate", "score_failed")
		return storage.ModelReport{}, fmt.Errorf("score %s: %w", name, err)
	}

	p.metrics.SetScore(name, s)
	p.metrics.SetTrainDuration(name, trainDuration)
	p.logger.Info("model scored",
		"model", name,
		"mse", s.MSE,
		"rmse", s.RMSE,
		"mae", s.MAE,
		"train_ms", trainDuration.Milliseconds(),
	)
	for i, imp := range top {
		p.logger.Debug("feature importance", "model", name, "rank", i+1, "feature", imp.Feature, "importance", imp.Score)
	}

	return storage.ModelReport{
		Name:         name,
		Metrics:      s,
		TopFeatures:  top,
		TrainSeconds: trainDuration.Seconds(),
	}, nil
}

func (p *Pipeline) put(name string, t *frame.Table) error {
	if err := p.store.PutTable(name, t); err != nil {
		p.metrics.RecordError("store", "put_failed")
		return fmt.Errorf("store %s: %w", name, err)
	}
	p.metrics.AddRows(name, t.Len())
	p.logger.Debug("stored table", "name", name, "rows", t.Len())
	return nil
}

func (p *Pipeline) get(ctx context.Context, name string) (*frame.Table, error) {
	t, err := p.store.GetTable(ctx, name)
	if err != nil {
		p.metrics.RecordError("store", "get_failed")
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	p.logger.Debug("read table", "name", name, "rows", t.Len())
	return t, nil
}
