package train

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/eamonbyrne/promoter-models/internal/checkpoint"
	"github.com/eamonbyrne/promoter-models/internal/dataset"
	"github.com/eamonbyrne/promoter-models/internal/metrics"
	"github.com/eamonbyrne/promoter-models/internal/nn"
	"github.com/eamonbyrne/promoter-models/internal/state"
)

// runSeed trains or reuses the model for one seed and evaluates it.
func (e *Engine) runSeed(ctx context.Context, ph phase, name string, seed int64, agg *metrics.Aggregator, result *Result) (state.RunStatus, error) {
	opts := dataset.Options{
		DataDir:        e.cfg.DataDir,
		CommonCacheDir: filepath.Join(e.cfg.DataDir, "common"),
		Seed:           seed,
		ModelName:      e.backbone.Name,
		UseConstruct:   e.simpleRegressionPhase(ph),
		ShrinkTestSet:  e.cfg.ShrinkTestSet,
		Logger:         e.logger,
	}
	loaders, err := dataset.BuildAll(ph.tasks, opts)
	if err != nil {
		return "", err
	}

	splits := make([]*dataset.Splits, len(loaders))
	for i, l := range loaders {
		s, err := l.Load(ctx)
		if err != nil {
			return "", err
		}
		if len(s.Train) == 0 {
			return "", fmt.Errorf("dataset %s has an empty train split", l.Name())
		}
		splits[i] = s
	}
	inputs := len(splits[0].Train[0].Input)

	runDir := filepath.Join(e.cfg.RootDir, "saved_models", name, "default")
	ckptDir := filepath.Join(runDir, "checkpoints")
	monitorName, direction, err := resolveMonitor(ph.params, loaders)
	if err != nil {
		return "", err
	}

	status := state.RunStatusCompleted
	var net *nn.Network

	switch {
	case (e.cfg.UseExistingModels || ph.evaluateOnly) && checkpoint.IsDone(runDir):
		bestPath, best, err := checkpoint.FindBest(ckptDir, direction)
		if err != nil {
			return "", err
		}
		e.logger.Info("using existing model", "checkpoint", bestPath, "value", best)
		net, err = nn.Load(bestPath)
		if err != nil {
			return "", err
		}
		status = state.RunStatusSkipped
	case ph.evaluateOnly:
		return "", fmt.Errorf("no completed model found in %s", runDir)
	default:
		net, err = e.trainSeed(ctx, ph, seed, loaders, splits, inputs, runDir, ckptDir, monitorName, direction)
		if err != nil {
			return "", err
		}
	}

	// The pretraining phase only exists to produce a trunk.
	if !e.strategy.Pretrains() || ph.finetune {
		if err := e.evaluate(loaders, splits, net, agg, result, seed); err != nil {
			return "", err
		}
	}
	return status, nil
}

// simpleRegressionPhase reports whether this phase fits heads by least
// squares on frozen trunk embeddings. The pretraining phase of
// pretrain+simple_regression still gradient-trains the trunk on the
// original sequences; only the finetune phase does the linear fit on
// the full constructs.
func (e *Engine) simpleRegressionPhase(ph phase) bool {
	return e.strategy.SimpleRegression() && (!e.strategy.Pretrains() || ph.finetune)
}

// trainSeed builds the network, runs the optimization, and returns the
// best checkpointed model.
func (e *Engine) trainSeed(ctx context.Context, ph phase, seed int64,
	loaders []dataset.Loader, splits []*dataset.Splits, inputs int,
	runDir, ckptDir, monitorName string, direction checkpoint.Direction) (*nn.Network, error) {

	net, err := e.backbone.Build(inputs, loaders, seed)
	if err != nil {
		return nil, err
	}

	if e.strategy.Pretrains() && ph.finetune {
		if err := e.loadPretrainedTrunk(net); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(ckptDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	if e.simpleRegressionPhase(ph) {
		mse, err := e.fitSimpleRegression(net, splits)
		if err != nil {
			return nil, err
		}
		path := checkpoint.UniquePath(ckptDir, checkpoint.Filename(0, "train_loss", mse))
		if err := net.Save(path); err != nil {
			return nil, err
		}
		if err := checkpoint.WriteDone(runDir); err != nil {
			return nil, err
		}
		e.logger.Info("fitted simple regression", "train_loss", mse)
		return net, nil
	}

	trainer := nn.NewTrainer(net, nn.Config{
		LearningRate: ph.params.LearningRate,
		WeightDecay:  ph.params.WeightDecay,
		Workers:      e.cfg.Workers,
		FreezeTrunk:  e.strategy.LinearProbing() && ph.finetune,
	})

	batchSize := ph.params.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	best := direction.Worst()
	improved := false
	sinceImproved := 0
	rnd := rand.New(rand.NewSource(seed))

	for epoch := 0; epoch < ph.params.MaxEpochs; epoch++ {
		if err := e.trainEpoch(ctx, trainer, splits, rnd, batchSize, ph.params.TrainMode); err != nil {
			return nil, err
		}

		value, err := monitorValue(ctx, trainer, loaders, splits, monitorName)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("epoch finished", "epoch", epoch, monitorName, value)

		if !improved || direction.Better(value, best) {
			best = value
			improved = true
			sinceImproved = 0
			path := checkpoint.UniquePath(ckptDir, checkpoint.Filename(epoch, monitorName, value))
			if err := net.Save(path); err != nil {
				return nil, err
			}
			if err := checkpoint.Prune(ckptDir, direction, ph.params.SaveTopK); err != nil {
				return nil, err
			}
			e.logger.Info("checkpoint saved", "epoch", epoch, monitorName, value)
		} else {
			sinceImproved++
			if ph.params.Patience > 0 && sinceImproved >= ph.params.Patience {
				e.logger.Info("early stopping", "epoch", epoch, "patience", ph.params.Patience)
				break
			}
		}
	}

	if err := checkpoint.WriteDone(runDir); err != nil {
		return nil, err
	}

	bestPath, _, err := checkpoint.FindBest(ckptDir, direction)
	if err != nil {
		return nil, err
	}
	return nn.Load(bestPath)
}

// trainEpoch runs one pass of interleaved per-head minibatch updates.
func (e *Engine) trainEpoch(ctx context.Context, trainer *nn.Trainer,
	splits []*dataset.Splits, rnd *rand.Rand, batchSize int, mode string) error {

	batches := make([][][]nn.Sample, len(splits))
	steps := 0
	for i, s := range splits {
		batches[i] = shuffledBatches(rnd, s.Train, batchSize)
		n := len(batches[i])
		switch {
		case i == 0:
			steps = n
		case mode == TrainModeMaxSizeCycle && n > steps:
			steps = n
		case mode != TrainModeMaxSizeCycle && n < steps:
			steps = n
		}
	}

	for step := 0; step < steps; step++ {
		for head := range batches {
			batch := batches[head][step%len(batches[head])]
			if err := trainer.TrainBatch(ctx, head, batch); err != nil {
				return err
			}
		}
	}
	return nil
}

func shuffledBatches(rnd *rand.Rand, train []nn.Sample, batchSize int) [][]nn.Sample {
	perm := rnd.Perm(len(train))
	shuffled := make([]nn.Sample, len(train))
	for i, p := range perm {
		shuffled[i] = train[p]
	}
	var out [][]nn.Sample
	for start := 0; start < len(shuffled); start += batchSize {
		end := start + batchSize
		if end > len(shuffled) {
			end = len(shuffled)
		}
		out = append(out, shuffled[start:end])
	}
	return out
}

// loadPretrainedTrunk locates the best pretraining checkpoint and copies
// its trunk into net.
func (e *Engine) loadPretrainedTrunk(net *nn.Network) error {
	preName := nameFormat(e.strategy, e.backbone.Name,
		e.cfg.PretrainTasks, e.cfg.PretrainTasks, "", false)
	preDir := filepath.Join(e.cfg.RootDir, "saved_models", preName, "default", "checkpoints")

	direction, err := checkpoint.ParseDirection(defaultDirection(e.cfg.Pretrain))
	if err != nil {
		return err
	}
	bestPath, best, err := checkpoint.FindBest(preDir, direction)
	if err != nil {
		return fmt.Errorf("no pretrained model for %s: %w", preName, err)
	}
	e.logger.Info("loading pretrained trunk", "checkpoint", bestPath, "value", best)

	pre, err := nn.Load(bestPath)
	if err != nil {
		return err
	}
	return net.CopyTrunkFrom(pre)
}

// defaultDirection fills the metric direction when unset: validation
// loss is minimized, correlation monitors are maximized.
func defaultDirection(p Params) string {
	if p.MetricDirection != "" {
		return p.MetricDirection
	}
	if p.MetricToMonitor == "" || p.MetricToMonitor == MonitorOverallValLoss {
		return string(checkpoint.Min)
	}
	return string(checkpoint.Max)
}
