package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eamonbyrne/promoter-models/internal/cli/config"
	"github.com/eamonbyrne/promoter-models/internal/summary"
	"github.com/eamonbyrne/promoter-models/internal/train"
)

// TrainOptions holds options for the train command.
type TrainOptions struct {
	Strategy      string
	ModelName     string
	JointTasks    string
	PretrainTasks string
	FinetuneTasks string
	SingleTask    string

	Seeds             int
	NameSuffix        string
	UseExistingModels bool
	ShrinkTestSet     bool
	Workers           int

	LR              float64
	WeightDecay     float64
	BatchSize       int
	MaxEpochs       int
	MetricToMonitor string
	MetricDirection string
	TrainMode       string

	PretrainLR              float64
	PretrainWeightDecay     float64
	PretrainBatchSize       int
	PretrainMaxEpochs       int
	PretrainMetricToMonitor string
	PretrainMetricDirection string
	PretrainTrainMode       string

	Patience int
	SaveTopK int
}

// NewTrainCommand creates the train command.
func NewTrainCommand() *cobra.Command {
	opts := &TrainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train models under a modelling strategy",
		Long: `Train one model per random seed under the chosen modelling strategy,
then evaluate each model on the test splits and aggregate the metrics
into a summary file.

Pretraining strategies first train a single shared model on the pretrain
tasks, then finetune per seed on the finetune tasks.`,
		Example: `  # Train on the fluorescence data with 5 random seeds
  promod train --modelling-strategy single_task \
    --single-task FluorescenceData --num-random-seeds 5

  # Pretrain on RNA-seq data, then finetune
  promod train --modelling-strategy pretrain+finetune \
    --pretrain-tasks RNASeq --finetune-tasks FluorescenceData

  # Joint training across datasets
  promod train --modelling-strategy joint --joint-tasks FluorescenceData,Malinois_MPRA`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts, false)
		},
	}

	addTrainFlags(cmd, opts)
	return cmd
}

func addTrainFlags(cmd *cobra.Command, opts *TrainOptions) {
	cmd.Flags().StringVar(&opts.Strategy, "modelling-strategy", "", "Modelling strategy ("+strategyList()+")")
	cmd.Flags().StringVar(&opts.ModelName, "model-name", "", "Backbone to train (default MTLucifer)")
	cmd.Flags().StringVar(&opts.JointTasks, "joint-tasks", "", "Comma-separated tasks for joint training")
	cmd.Flags().StringVar(&opts.PretrainTasks, "pretrain-tasks", "", "Comma-separated tasks for the pretraining phase")
	cmd.Flags().StringVar(&opts.FinetuneTasks, "finetune-tasks", "", "Comma-separated tasks for the finetuning phase")
	cmd.Flags().StringVar(&opts.SingleTask, "single-task", "", "Task for single-task strategies")

	cmd.Flags().IntVar(&opts.Seeds, "num-random-seeds", 1, "Number of random seeds to train with")
	cmd.Flags().StringVar(&opts.NameSuffix, "name-suffix", "", "Suffix appended to run names")
	cmd.Flags().BoolVar(&opts.UseExistingModels, "use-existing-models", false, "Reuse finished models instead of retraining")
	cmd.Flags().BoolVar(&opts.ShrinkTestSet, "shrink-test-set", false, "Truncate large test splits for faster evaluation")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Gradient worker count (default GOMAXPROCS)")

	cmd.Flags().Float64Var(&opts.LR, "lr", 1e-5, "Learning rate")
	cmd.Flags().Float64Var(&opts.WeightDecay, "weight-decay", 1e-4, "Weight decay")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 96, "Batch size")
	cmd.Flags().IntVar(&opts.MaxEpochs, "max-epochs", 50, "Maximum number of epochs to train for")
	cmd.Flags().StringVar(&opts.MetricToMonitor, "metric-to-monitor", "", "Metric monitored for checkpointing and early stopping (default overall_val_loss)")
	cmd.Flags().StringVar(&opts.MetricDirection, "metric-direction", "", "Whether the monitored metric is optimal at min or max")
	cmd.Flags().StringVar(&opts.TrainMode, "train-mode", train.TrainModeMinSize, "Multi-task iteration mode (min_size|max_size_cycle)")

	cmd.Flags().Float64Var(&opts.PretrainLR, "pretrain-lr", 1e-5, "Pretrain learning rate")
	cmd.Flags().Float64Var(&opts.PretrainWeightDecay, "pretrain-weight-decay", 1e-4, "Pretrain weight decay")
	cmd.Flags().IntVar(&opts.PretrainBatchSize, "pretrain-batch-size", 96, "Pretrain batch size")
	cmd.Flags().IntVar(&opts.PretrainMaxEpochs, "pretrain-max-epochs", 50, "Maximum number of epochs to pretrain for")
	cmd.Flags().StringVar(&opts.PretrainMetricToMonitor, "pretrain-metric-to-monitor", train.MonitorOverallValLoss, "Metric monitored during pretraining")
	cmd.Flags().StringVar(&opts.PretrainMetricDirection, "pretrain-metric-direction", "min", "Whether the pretrain metric is optimal at min or max")
	cmd.Flags().StringVar(&opts.PretrainTrainMode, "pretrain-train-mode", train.TrainModeMinSize, "Multi-task iteration mode during pretraining")

	cmd.Flags().IntVar(&opts.Patience, "patience", 5, "Patience for early stopping")
	cmd.Flags().IntVar(&opts.SaveTopK, "save-top-k", 1, "Number of top checkpoints to keep")

	_ = cmd.RegisterFlagCompletionFunc("modelling-strategy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, s := range train.Strategies() {
			names = append(names, string(s))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("train-mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{train.TrainModeMinSize, train.TrainModeMaxSizeCycle}, cobra.ShellCompDirectiveNoFileComp
	})
}

func strategyList() string {
	var names []string
	for _, s := range train.Strategies() {
		names = append(names, string(s))
	}
	return strings.Join(names, " | ")
}

// splitTasks splits a comma-separated task list, trimming whitespace.
func splitTasks(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// engineConfig assembles the engine configuration from the CLI config
// and flags.
func engineConfig(cfg *config.Config, opts *TrainOptions, cmd *cobra.Command) train.Config {
	return train.Config{
		RootDir:           cfg.RootDir,
		DataDir:           cfg.DataDir,
		StatePath:         cfg.StatePath,
		Strategy:          opts.Strategy,
		Backbone:          opts.ModelName,
		JointTasks:        splitTasks(opts.JointTasks),
		PretrainTasks:     splitTasks(opts.PretrainTasks),
		FinetuneTasks:     splitTasks(opts.FinetuneTasks),
		SingleTask:        opts.SingleTask,
		NameSuffix:        opts.NameSuffix,
		Seeds:             opts.Seeds,
		UseExistingModels: opts.UseExistingModels,
		ShrinkTestSet:     opts.ShrinkTestSet,
		Workers:           opts.Workers,
		Train: train.Params{
			LearningRate:    opts.LR,
			WeightDecay:     opts.WeightDecay,
			BatchSize:       opts.BatchSize,
			MaxEpochs:       opts.MaxEpochs,
			MetricToMonitor: opts.MetricToMonitor,
			MetricDirection: opts.MetricDirection,
			Patience:        opts.Patience,
			SaveTopK:        opts.SaveTopK,
			TrainMode:       opts.TrainMode,
		},
		Pretrain: train.Params{
			LearningRate:    opts.PretrainLR,
			WeightDecay:     opts.PretrainWeightDecay,
			BatchSize:       opts.PretrainBatchSize,
			MaxEpochs:       opts.PretrainMaxEpochs,
			MetricToMonitor: opts.PretrainMetricToMonitor,
			MetricDirection: opts.PretrainMetricDirection,
			Patience:        opts.Patience,
			SaveTopK:        opts.SaveTopK,
			TrainMode:       opts.PretrainTrainMode,
		},
		Logger: config.GetLogger(cmd.Context()),
	}
}

func runTrain(cmd *cobra.Command, opts *TrainOptions, evaluateOnly bool) error {
	cfg := getConfig()
	if err := cfg.ValidateDataDir(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if err := ensureStateDir(cfg.StatePath); err != nil {
		return err
	}

	eng, err := train.New(engineConfig(cfg, opts, cmd))
	if err != nil {
		return err
	}
	defer eng.Close()

	start := time.Now()
	var result *train.Result
	if evaluateOnly {
		result, err = eng.Evaluate(cmd.Context())
	} else {
		result, err = eng.Run(cmd.Context())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run: %s\n", result.NameFormat)
	if result.BestSeed >= 0 {
		fmt.Fprintf(out, "Best seed: %d (SpearmanR %.4f)\n", result.BestSeed, result.BestSeedMetric)
	}
	fmt.Fprintf(out, "Completed in %s\n", time.Since(start).Round(time.Millisecond))

	if result.SummaryPath != "" {
		doc, err := summary.Read(result.SummaryPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		summary.Render(out, doc)
		fmt.Fprintf(out, "\nSummary written to %s\n", result.SummaryPath)
	}
	return nil
}
