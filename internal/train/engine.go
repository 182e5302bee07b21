// Package train implements the training engine: strategy dispatch,
// pretrain/finetune phase sequencing, the per-seed train/evaluate loop
// with early stopping and checkpointing, and metric aggregation into
// summary files.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/eamonbyrne/promoter-models/internal/metrics"
	"github.com/eamonbyrne/promoter-models/internal/model"
	"github.com/eamonbyrne/promoter-models/internal/state"
	"github.com/eamonbyrne/promoter-models/internal/summary"
)

// Params holds the optimization settings for one training phase.
type Params struct {
	LearningRate    float64
	WeightDecay     float64
	BatchSize       int
	MaxEpochs       int
	MetricToMonitor string
	MetricDirection string
	Patience        int
	SaveTopK        int
	// TrainMode picks the multi-task step count per epoch: min_size
	// stops at the shortest dataset, max_size_cycle cycles shorter
	// datasets until the longest is exhausted.
	TrainMode string
}

// Monitored metric for validation loss across all heads.
const MonitorOverallValLoss = "overall_val_loss"

const (
	TrainModeMinSize      = "min_size"
	TrainModeMaxSizeCycle = "max_size_cycle"
)

// Config holds engine configuration.
type Config struct {
	// RootDir is the artifacts directory (saved_models/, summaries/).
	RootDir string
	// DataDir is the root data directory, one subdirectory per dataset.
	DataDir string
	// StatePath is the path to the SQLite state database
	// (":memory:" when empty).
	StatePath string

	Strategy string
	Backbone string

	JointTasks    []string
	PretrainTasks []string
	FinetuneTasks []string
	SingleTask    string

	// NameSuffix is appended to run names (never to the shared
	// pretraining phase name).
	NameSuffix string
	// Seeds is the number of random seeds trained per configuration.
	Seeds int
	// UseExistingModels skips training when a run's done sentinel
	// exists and evaluates its best checkpoint instead.
	UseExistingModels bool
	ShrinkTestSet     bool
	// Workers is the gradient worker count (default GOMAXPROCS).
	Workers int

	// Train parametrizes finetune/joint/single-task training;
	// Pretrain parametrizes the pretraining phase.
	Train    Params
	Pretrain Params

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine orchestrates the multi-seed training lifecycle.
type Engine struct {
	cfg      Config
	strategy Strategy
	backbone model.Backbone
	logger   *slog.Logger
	store    *state.SQLiteStore
}

// Result reports the outcome of a Run.
type Result struct {
	// NameFormat is the seed-independent run name.
	NameFormat string
	// SummaryPath is the written summary JSON ("" when the run
	// produced no aggregated metrics, e.g. a pretrain-only phase).
	SummaryPath string
	// BestSeed is the seed with the highest overall Spearman rho.
	BestSeed int64
	// BestSeedMetric is that seed's Spearman rho.
	BestSeedMetric float64
}

// New validates the configuration and opens the state store.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	backbone, err := model.Get(cfg.Backbone)
	if err != nil {
		return nil, err
	}
	if cfg.Seeds <= 0 {
		cfg.Seeds = 1
	}

	switch {
	case strategy == Joint && len(cfg.JointTasks) == 0:
		return nil, fmt.Errorf("joint strategy requires joint tasks")
	case strategy.Pretrains() && (len(cfg.PretrainTasks) == 0 || len(cfg.FinetuneTasks) == 0):
		return nil, fmt.Errorf("strategy %s requires pretrain and finetune tasks", strategy)
	case strategy.Single() && cfg.SingleTask == "":
		return nil, fmt.Errorf("strategy %s requires a single task", strategy)
	}
	if strategy.Pretrains() {
		if err := model.CheckTasks(backbone.Name, phaseTasks(strategy, cfg, false)); err != nil {
			return nil, err
		}
	}
	if err := model.CheckTasks(backbone.Name, phaseTasks(strategy, cfg, true)); err != nil {
		return nil, err
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}
	store := state.NewSQLiteStore()
	if err := store.Open(statePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}

	logger.Debug("initializing engine",
		"strategy", string(strategy), "backbone", backbone.Name, "root_dir", cfg.RootDir)

	return &Engine{
		cfg:      cfg,
		strategy: strategy,
		backbone: backbone,
		logger:   logger,
		store:    store,
	}, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the run registry, e.g. for listing runs.
func (e *Engine) Store() *state.SQLiteStore { return e.store }

// phaseTasks resolves the task list for a phase. For pretraining
// strategies the finetune flag picks between the two task lists.
func phaseTasks(s Strategy, cfg Config, finetune bool) []string {
	switch {
	case s == Joint:
		return cfg.JointTasks
	case s.Pretrains() && finetune:
		return cfg.FinetuneTasks
	case s.Pretrains():
		return cfg.PretrainTasks
	default:
		return []string{cfg.SingleTask}
	}
}

// phase is one resolved training phase.
type phase struct {
	tasks    []string
	params   Params
	seeds    int
	finetune bool
	// evaluateOnly skips training and requires an existing model.
	evaluateOnly bool
}

// Run executes the configured strategy: the pretraining phase first when
// the strategy has one, then the per-seed training runs.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.strategy.Pretrains() {
		pre := phase{
			tasks:    phaseTasks(e.strategy, e.cfg, false),
			params:   e.cfg.Pretrain,
			seeds:    1,
			finetune: false,
		}
		if _, err := e.runPhase(ctx, pre); err != nil {
			return nil, fmt.Errorf("pretraining failed: %w", err)
		}
	}

	main := phase{
		tasks:    phaseTasks(e.strategy, e.cfg, true),
		params:   e.cfg.Train,
		seeds:    e.cfg.Seeds,
		finetune: e.strategy.Pretrains(),
	}
	return e.runPhase(ctx, main)
}

// Evaluate re-evaluates the best existing checkpoints without training.
// Every seed must have a completed run on disk.
func (e *Engine) Evaluate(ctx context.Context) (*Result, error) {
	main := phase{
		tasks:        phaseTasks(e.strategy, e.cfg, true),
		params:       e.cfg.Train,
		seeds:        e.cfg.Seeds,
		finetune:     e.strategy.Pretrains(),
		evaluateOnly: true,
	}
	return e.runPhase(ctx, main)
}

// runPhase trains (or reuses) one model per seed, aggregates test
// metrics across seeds, and writes the summary file.
func (e *Engine) runPhase(ctx context.Context, ph phase) (*Result, error) {
	format := nameFormat(e.strategy, e.backbone.Name,
		ph.tasks, e.cfg.PretrainTasks, e.cfg.NameSuffix, ph.finetune)
	multi := ph.seeds > 1

	result := &Result{NameFormat: format, BestSeed: -1}
	agg := metrics.NewAggregator()

	for seed := int64(0); seed < int64(ph.seeds); seed++ {
		name := seedName(format, seed, multi)
		e.logger.Info("starting run", "name", name, "seed", seed)

		run, err := e.store.CreateRun(name, string(e.strategy), e.backbone.Name,
			strings.Join(ph.tasks, ","), seed)
		if err != nil {
			return nil, err
		}

		status, err := e.runSeed(ctx, ph, name, seed, agg, result)
		if err != nil {
			if cerr := e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error()); cerr != nil {
				e.logger.Warn("failed to record run failure", "error", cerr)
			}
			return nil, fmt.Errorf("run %s: %w", name, err)
		}
		if err := e.recordMetrics(run.ID, agg, seed); err != nil {
			e.logger.Warn("failed to record run metrics", "error", err)
		}
		if err := e.store.CompleteRun(run.ID, status, ""); err != nil {
			e.logger.Warn("failed to record run completion", "error", err)
		}
	}

	// The pretraining phase feeds later runs; only evaluation phases
	// produce a summary.
	if !agg.Empty() {
		params := e.summaryParams(ph)
		path, err := summary.Write(filepath.Join(e.cfg.RootDir, "summaries"), format, params, agg)
		if err != nil {
			return nil, err
		}
		result.SummaryPath = path
		e.logger.Info("wrote summary", "path", path)
	}
	return result, nil
}

// recordMetrics stores the metrics the current seed appended to the
// aggregator series.
func (e *Engine) recordMetrics(runID string, agg *metrics.Aggregator, seed int64) error {
	for _, output := range agg.Outputs() {
		for _, metric := range []string{"R2", "PearsonR", "SpearmanR", "Accuracy", "Precision", "Recall", "F1"} {
			series := agg.Series(output, metric)
			// the latest entry belongs to this seed when present
			if int64(len(series)) == seed+1 {
				if err := e.store.RecordMetric(runID, output, metric, series[seed]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// summaryParams mirrors the run configuration into the summary file.
func (e *Engine) summaryParams(ph phase) map[string]any {
	return map[string]any{
		"modelling_strategy":  string(e.strategy),
		"model_name":          e.backbone.Name,
		"tasks":               strings.Join(ph.tasks, ","),
		"pretrain_tasks":      strings.Join(e.cfg.PretrainTasks, ","),
		"num_random_seeds":    ph.seeds,
		"lr":                  ph.params.LearningRate,
		"weight_decay":        ph.params.WeightDecay,
		"batch_size":          ph.params.BatchSize,
		"max_epochs":          ph.params.MaxEpochs,
		"metric_to_monitor":   ph.params.MetricToMonitor,
		"metric_direction":    ph.params.MetricDirection,
		"patience":            ph.params.Patience,
		"save_top_k":          ph.params.SaveTopK,
		"train_mode":          ph.params.TrainMode,
		"use_existing_models": e.cfg.UseExistingModels,
		"shrink_test_set":     e.cfg.ShrinkTestSet,
		"name_suffix":         e.cfg.NameSuffix,
	}
}
