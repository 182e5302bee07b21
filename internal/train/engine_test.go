package train

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eamonbyrne/promoter-models/internal/checkpoint"
	"github.com/eamonbyrne/promoter-models/internal/state"
	"github.com/eamonbyrne/promoter-models/internal/summary"
	"github.com/eamonbyrne/promoter-models/internal/testutil"
)

func randSeq(rnd *rand.Rand, n int) string {
	const bases = "ACGT"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(bases[rnd.Intn(4)])
	}
	return b.String()
}

func gcContent(seq string) float64 {
	var gc float64
	for i := 0; i < len(seq); i++ {
		if seq[i] == 'G' || seq[i] == 'C' {
			gc++
		}
	}
	return gc / float64(len(seq))
}

// writeExpressionFixture writes an LL100-style expression file where the
// target tracks GC content, so even short training runs produce
// well-defined metrics.
func writeExpressionFixture(t *testing.T, dataDir string, rows int) {
	t.Helper()
	rnd := rand.New(rand.NewSource(11))
	var b strings.Builder
	b.WriteString("sequence\tsplit\tHL60\n")
	for i := 0; i < rows; i++ {
		split := "train"
		switch {
		case i%10 == 8:
			split = "val"
		case i%10 == 9:
			split = "test"
		}
		seq := randSeq(rnd, 12)
		fmt.Fprintf(&b, "%s\t%s\t%.4f\n", seq, split, gcContent(seq)+rnd.Float64()*0.01)
	}
	dir := filepath.Join(dataDir, "LL100")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "expression.tsv"), []byte(b.String()), 0o644))
}

// writeFluorescenceFixture writes a measurements file whose per-cell
// log2(P4/P7) labels also track GC content.
func writeFluorescenceFixture(t *testing.T, dataDir string, rows int) {
	t.Helper()
	rnd := rand.New(rand.NewSource(13))
	var b strings.Builder
	b.WriteString("sequence\tconstruct_sequence\tJ1_P4\tJ1_P7\tJ2_P4\tJ2_P7\tK1_P4\tK1_P7\tK2_P4\tK2_P7\tT1_P4\tT1_P7\tT2_P4\tT2_P7\n")
	for i := 0; i < rows; i++ {
		seq := randSeq(rnd, 12)
		construct := "TT" + seq + "AA"
		// ratio P4/P7 = 2^(gc + noise)
		cols := make([]string, 0, 12)
		for rep := 0; rep < 6; rep++ {
			p4 := 1 + gcContent(seq) + rnd.Float64()*0.05
			cols = append(cols, fmt.Sprintf("%.5f\t1", p4))
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\n", seq, construct, strings.Join(cols, "\t"))
	}
	dir := filepath.Join(dataDir, "FluorescenceData")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "measurements.tsv"), []byte(b.String()), 0o644))
}

func testParams() Params {
	return Params{
		LearningRate: 0.01,
		WeightDecay:  0.001,
		BatchSize:    8,
		MaxEpochs:    2,
		Patience:     3,
		SaveTopK:     2,
		TrainMode:    TrainModeMinSize,
	}
}

func TestNameFormat(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		backbone string
		tasks    []string
		pretrain []string
		suffix   string
		finetune bool
		want     string
	}{
		{"joint", Joint, "MTLucifer", []string{"LL100", "CCLE"}, nil, "", false,
			"joint_train_on_LL100+CCLE"},
		{"single", SingleTask, "MTLucifer", []string{"FluorescenceData"}, nil, "", false,
			"individual_training_on_FluorescenceData"},
		{"single simple regression", SingleTaskSimpleRegres, "MTLucifer", []string{"FluorescenceData"}, nil, "", false,
			"simple_regression_on_FluorescenceData"},
		{"pretrain phase", PretrainFinetune, "MTLucifer", []string{"LL100", "CCLE"}, []string{"LL100", "CCLE"}, "", false,
			"pretrain_on_LL100+CCLE"},
		{"finetune phase", PretrainFinetune, "MTLucifer", []string{"FluorescenceData"}, []string{"LL100", "CCLE"}, "", true,
			"finetune_on_FluorescenceData_pretrained_on_LL100+CCLE"},
		{"linear probing", PretrainLinearProbing, "MTLucifer", []string{"FluorescenceData"}, []string{"RNASeq"}, "", true,
			"linear_probing_on_FluorescenceData_pretrained_on_RNASeq"},
		{"pretrained simple regression", PretrainSimpleRegress, "MTLucifer", []string{"FluorescenceData"}, []string{"RNASeq"}, "", true,
			"simple_regression_on_FluorescenceData_pretrained_on_RNASeq"},
		{"non-default backbone prefix", Joint, "MTLuciferDeep", []string{"LL100"}, nil, "", false,
			"MTLuciferDeep_joint_train_on_LL100"},
		{"suffix applied", Joint, "MTLucifer", []string{"LL100"}, nil, "v2", false,
			"joint_train_on_LL100_v2"},
		{"suffix withheld from pretrain phase", PretrainFinetune, "MTLucifer", []string{"LL100"}, []string{"LL100"}, "v2", false,
			"pretrain_on_LL100"},
		{"suffix applied to finetune phase", PretrainFinetune, "MTLucifer", []string{"FluorescenceData"}, []string{"LL100"}, "v2", true,
			"finetune_on_FluorescenceData_pretrained_on_LL100_v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nameFormat(tt.strategy, tt.backbone, tt.tasks, tt.pretrain, tt.suffix, tt.finetune)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeedName(t *testing.T) {
	assert.Equal(t, "joint_train_on_LL100", seedName("joint_train_on_LL100", 0, false))
	assert.Equal(t, "joint_train_on_LL100_dl_seed_3", seedName("joint_train_on_LL100", 3, true))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("pretrain+linear_probing")
	require.NoError(t, err)
	assert.True(t, s.Pretrains())
	assert.True(t, s.LinearProbing())
	assert.False(t, s.SimpleRegression())

	s, err = ParseStrategy("single_task_simple_regression")
	require.NoError(t, err)
	assert.True(t, s.Single())
	assert.True(t, s.SimpleRegression())
	assert.False(t, s.Pretrains())

	_, err = ParseStrategy("self_supervised")
	assert.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	base := Config{RootDir: t.TempDir(), DataDir: t.TempDir()}

	cfg := base
	cfg.Strategy = "joint"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "joint tasks")

	cfg = base
	cfg.Strategy = "pretrain+finetune"
	cfg.PretrainTasks = []string{"LL100"}
	_, err = New(cfg)
	assert.ErrorContains(t, err, "finetune tasks")

	cfg = base
	cfg.Strategy = "single_task"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "single task")

	cfg = base
	cfg.Strategy = "single_task"
	cfg.SingleTask = "LL100"
	cfg.Backbone = "MotifBasedFCN"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "motif-based", "LL100 is not motif-compatible")

	cfg = base
	cfg.Strategy = "pretrain+finetune"
	cfg.PretrainTasks = []string{"LL100"}
	cfg.FinetuneTasks = []string{"FluorescenceData"}
	cfg.Backbone = "MotifBasedFCN"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "motif-based", "the pretrain task list is checked too")

	cfg = base
	cfg.Strategy = "joint"
	cfg.JointTasks = []string{"LL100"}
	cfg.Backbone = "NoSuchNet"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestSingleTaskEndToEnd(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeExpressionFixture(t, dataDir, 80)

	eng, err := New(Config{
		RootDir:    rootDir,
		DataDir:    dataDir,
		Strategy:   string(SingleTask),
		SingleTask: "LL100",
		Seeds:      2,
		Train:      testParams(),
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "individual_training_on_LL100", res.NameFormat)
	assert.GreaterOrEqual(t, res.BestSeed, int64(0))

	// per-seed run directories with checkpoints and done sentinels
	for seed := 0; seed < 2; seed++ {
		runDir := filepath.Join(rootDir, "saved_models",
			fmt.Sprintf("individual_training_on_LL100_dl_seed_%d", seed), "default")
		assert.True(t, checkpoint.IsDone(runDir))
		entries, err := os.ReadDir(filepath.Join(runDir, "checkpoints"))
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
		assert.LessOrEqual(t, len(entries), 2, "save-top-k is 2")
	}

	// summary with aggregated metrics over both seeds
	require.NotEmpty(t, res.SummaryPath)
	doc, err := summary.Read(res.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, "single_task", doc["modelling_strategy"])
	series, ok := doc["LL100_HL60_all_SpearmanR"].([]any)
	require.True(t, ok)
	assert.Len(t, series, 2)
	assert.Contains(t, doc, "LL100_HL60_avg_SpearmanR_disp")

	// both runs recorded as completed
	runs, err := eng.Store().ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, state.RunStatusCompleted, run.Status)
		assert.Equal(t, "single_task", run.Strategy)
	}
}

func TestUseExistingModels(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeExpressionFixture(t, dataDir, 80)

	cfg := Config{
		RootDir:    rootDir,
		DataDir:    dataDir,
		StatePath:  filepath.Join(rootDir, "state.db"),
		Strategy:   string(SingleTask),
		SingleTask: "LL100",
		Seeds:      1,
		Train:      testParams(),
	}

	eng, err := New(cfg)
	require.NoError(t, err)
	_, err = eng.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	cfg.UseExistingModels = true
	eng, err = New(cfg)
	require.NoError(t, err)
	defer eng.Close()
	_, err = eng.Run(context.Background())
	require.NoError(t, err)

	runs, err := eng.Store().ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	var skipped int
	for _, run := range runs {
		if run.Status == state.RunStatusSkipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped, "second run reuses the existing model")
}

func TestEvaluateRequiresExistingModel(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeExpressionFixture(t, dataDir, 80)

	eng, err := New(Config{
		RootDir:    rootDir,
		DataDir:    dataDir,
		Strategy:   string(SingleTask),
		SingleTask: "LL100",
		Seeds:      1,
		Train:      testParams(),
	})
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.Evaluate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completed model")

	_, err = eng.Run(context.Background())
	require.NoError(t, err)

	res, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.SummaryPath)
}

func TestPretrainFinetuneEndToEnd(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeExpressionFixture(t, dataDir, 80)
	writeFluorescenceFixture(t, dataDir, 80)

	eng, err := New(Config{
		RootDir:       rootDir,
		DataDir:       dataDir,
		Strategy:      string(PretrainFinetune),
		PretrainTasks: []string{"LL100"},
		FinetuneTasks: []string{"FluorescenceData"},
		Seeds:         2,
		Train:         testParams(),
		Pretrain:      testParams(),
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finetune_on_FluorescenceData_pretrained_on_LL100", res.NameFormat)

	// single shared pretraining run
	preDir := filepath.Join(rootDir, "saved_models", "pretrain_on_LL100", "default")
	assert.True(t, checkpoint.IsDone(preDir))

	doc, err := summary.Read(res.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, doc, "FluorescenceData_JURKAT_avg_SpearmanR_disp")
	assert.Contains(t, doc, "FluorescenceData_JURKAT_all_ReplicateConcordancePearsonR")

	// pretrain run + 2 finetune runs recorded
	runs, err := eng.Store().ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSimpleRegressionEndToEnd(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeFluorescenceFixture(t, dataDir, 200)

	eng, err := New(Config{
		RootDir:    rootDir,
		DataDir:    dataDir,
		Strategy:   string(SingleTaskSimpleRegres),
		SingleTask: "FluorescenceData",
		Seeds:      1,
		Train:      testParams(),
	})
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "simple_regression_on_FluorescenceData", res.NameFormat)

	runDir := filepath.Join(rootDir, "saved_models", "simple_regression_on_FluorescenceData", "default")
	assert.True(t, checkpoint.IsDone(runDir))

	doc, err := summary.Read(res.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, doc, "FluorescenceData_K562_avg_R2_disp")
}

func TestPretrainSimpleRegressionEndToEnd(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	// pretraining sequences must match the 16bp construct width the
	// regression fit sees during finetuning
	rnd := rand.New(rand.NewSource(17))
	var b strings.Builder
	b.WriteString("sequence\tsplit\tHL60\n")
	for i := 0; i < 80; i++ {
		split := "train"
		switch {
		case i%10 == 8:
			split = "val"
		case i%10 == 9:
			split = "test"
		}
		seq := randSeq(rnd, 16)
		fmt.Fprintf(&b, "%s\t%s\t%.4f\n", seq, split, gcContent(seq)+rnd.Float64()*0.01)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "LL100"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "LL100", "expression.tsv"), []byte(b.String()), 0o644))
	writeFluorescenceFixture(t, dataDir, 200)

	eng, err := New(Config{
		RootDir:       rootDir,
		DataDir:       dataDir,
		Strategy:      string(PretrainSimpleRegress),
		PretrainTasks: []string{"LL100"},
		FinetuneTasks: []string{"FluorescenceData"},
		Seeds:         1,
		Train:         testParams(),
		Pretrain:      testParams(),
	})
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "simple_regression_on_FluorescenceData_pretrained_on_LL100", res.NameFormat)

	// the pretraining phase gradient-trains the trunk even though the
	// pretrain split is far smaller than the embedding width, so its
	// checkpoints carry the monitored validation loss
	preEntries, err := os.ReadDir(filepath.Join(rootDir, "saved_models", "pretrain_on_LL100", "default", "checkpoints"))
	require.NoError(t, err)
	require.NotEmpty(t, preEntries)
	assert.Contains(t, preEntries[0].Name(), "overall_val_loss=")

	// the finetune phase fits least squares on the pretrained trunk
	fitEntries, err := os.ReadDir(filepath.Join(rootDir, "saved_models", res.NameFormat, "default", "checkpoints"))
	require.NoError(t, err)
	require.NotEmpty(t, fitEntries)
	assert.Contains(t, fitEntries[0].Name(), "train_loss=")

	doc, err := summary.Read(res.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, doc, "FluorescenceData_K562_avg_R2_disp")
}

func TestResolveMonitor(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeFluorescenceFixture(t, dataDir, 80)

	params := testParams()
	params.MetricToMonitor = "val_FluorescenceData_mean_SpearmanR"
	params.MetricDirection = "max"

	eng, err := New(Config{
		RootDir:    rootDir,
		DataDir:    dataDir,
		Strategy:   string(SingleTask),
		SingleTask: "FluorescenceData",
		Seeds:      1,
		Train:      params,
	})
	require.NoError(t, err)
	defer eng.Close()

	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	// checkpoint filenames carry the monitored metric
	entries, err := os.ReadDir(filepath.Join(rootDir, "saved_models", res.NameFormat, "default", "checkpoints"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0].Name(), "val_FluorescenceData_mean_SpearmanR=")
}

func TestMonitorRejectsUnknownDataset(t *testing.T) {
	rootDir, dataDir := t.TempDir(), t.TempDir()
	writeExpressionFixture(t, dataDir, 80)

	params := testParams()
	params.MetricToMonitor = "val_CCLE_mean_SpearmanR"
	params.MetricDirection = "max"

	eng, err := New(Config{
		RootDir:    rootDir,
		DataDir:    dataDir,
		Strategy:   string(SingleTask),
		SingleTask: "LL100",
		Seeds:      1,
		Train:      params,
	})
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not among the loaded tasks")
}

func TestDefaultDirection(t *testing.T) {
	assert.Equal(t, "min", defaultDirection(Params{}))
	assert.Equal(t, "min", defaultDirection(Params{MetricToMonitor: MonitorOverallValLoss}))
	assert.Equal(t, "max", defaultDirection(Params{MetricToMonitor: "val_FluorescenceData_mean_SpearmanR"}))
	assert.Equal(t, "max", defaultDirection(Params{MetricToMonitor: MonitorOverallValLoss, MetricDirection: "max"}))
}
