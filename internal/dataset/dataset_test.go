package dataset

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fluorescenceFixture writes a measurements file where every replicate
// ratio is chosen so the per-cell labels are easy to compute by hand.
func fluorescenceFixture(t *testing.T, rows int) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("sequence\tconstruct_sequence\tJ1_P4\tJ1_P7\tJ2_P4\tJ2_P7\tK1_P4\tK1_P7\tK2_P4\tK2_P7\tT1_P4\tT1_P7\tT2_P4\tT2_P7\n")
	for i := 0; i < rows; i++ {
		// JURKAT replicate ratios log2 4 and log2 1 (mean 1); K562
		// both log2 4 (mean 2); THP1 both log2 2 (mean 1) except the
		// last row, which gets log2 8 in both replicates (mean 3).
		t1, t2 := "2\t1", "2\t1"
		if i == rows-1 {
			t1, t2 = "8\t1", "8\t1"
		}
		fmt.Fprintf(&b, "ACGTACGT\tTTACGTACGTTT\t4\t1\t1\t1\t4\t1\t4\t1\t%s\t%s\n", t1, t2)
	}
	writeFixture(t, dir, filepath.Join("FluorescenceData", "measurements.tsv"), b.String())
	return dir
}

func TestFluorescenceLabels(t *testing.T) {
	dir := fluorescenceFixture(t, 10)
	l := newFluorescence(Options{DataDir: dir, Seed: 1}, fluorescenceConfig{})

	assert.Equal(t, "FluorescenceData", l.Name())
	assert.Equal(t, []string{
		"FluorescenceData_JURKAT",
		"FluorescenceData_K562",
		"FluorescenceData_THP1",
	}, l.OutputNames())
	assert.Equal(t, Regression, l.TaskType())

	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, len(splits.Train)+len(splits.Val)+len(splits.Test))

	for _, s := range splits.Train {
		require.Len(t, s.Target, 3)
		assert.InDelta(t, 1.0, s.Target[0], 1e-12) // JURKAT mean of log2 4 and log2 1
		assert.InDelta(t, 2.0, s.Target[1], 1e-12) // K562 both replicates log2 4
	}
}

func TestFluorescenceDE(t *testing.T) {
	dir := fluorescenceFixture(t, 10)
	l := newFluorescence(Options{DataDir: dir, Seed: 1}, fluorescenceConfig{predictDE: true})

	assert.Equal(t, "FluorescenceData_DE", l.Name())
	splits, err := l.Load(context.Background())
	require.NoError(t, err)

	// DE values are deviations from the across-cell mean, so each
	// sample's targets sum to zero.
	for _, s := range splits.Train {
		sum := s.Target[0] + s.Target[1] + s.Target[2]
		assert.InDelta(t, 0, sum, 1e-12)
	}
}

func TestFluorescenceClassification(t *testing.T) {
	dir := fluorescenceFixture(t, 10)
	l := newFluorescence(Options{DataDir: dir, Seed: 1}, fluorescenceConfig{classification: true})

	assert.Equal(t, "FluorescenceData_classification", l.Name())
	assert.Equal(t, Classification, l.TaskType())

	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	for _, s := range splits.Train {
		for _, v := range s.Target {
			assert.Contains(t, []float64{0, 1}, v)
		}
	}
	// classification keeps the numerical scores for the test split
	require.NotNil(t, splits.TestScores)
	assert.Len(t, splits.TestScores["FluorescenceData_classification_THP1"], len(splits.Test))
}

func TestFluorescenceSingleCell(t *testing.T) {
	dir := fluorescenceFixture(t, 10)
	l := newFluorescence(Options{DataDir: dir, Seed: 1}, fluorescenceConfig{cells: []string{"K562"}})

	assert.Equal(t, "FluorescenceData_K562", l.Name())
	assert.Equal(t, []string{"FluorescenceData_K562_K562"}, l.OutputNames())

	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	for _, s := range splits.Train {
		require.Len(t, s.Target, 1)
		assert.InDelta(t, 2.0, s.Target[0], 1e-12)
	}
}

func TestFluorescenceReplicateRatios(t *testing.T) {
	dir := fluorescenceFixture(t, 40)
	l := newFluorescence(Options{DataDir: dir, Seed: 1}, fluorescenceConfig{})

	_, _, err := l.ReplicateRatios("FluorescenceData_JURKAT")
	assert.Error(t, err, "ratios require a prior Load")

	splits, err := l.Load(context.Background())
	require.NoError(t, err)

	rep1, rep2, err := l.ReplicateRatios("FluorescenceData_JURKAT")
	require.NoError(t, err)
	require.Len(t, rep1, len(splits.Test), "ratios cover the test split only")
	assert.InDelta(t, 2.0, rep1[0], 1e-12) // log2(4/1)
	assert.InDelta(t, 0.0, rep2[0], 1e-12) // log2(1/1)

	// THP1 replicates agree, so each ratio must match the THP1 label of
	// the test sample at the same position
	rep1, rep2, err = l.ReplicateRatios("FluorescenceData_THP1")
	require.NoError(t, err)
	require.Len(t, rep1, len(splits.Test))
	for i := range rep1 {
		assert.InDelta(t, splits.Test[i].Target[2], rep1[i], 1e-12)
		assert.InDelta(t, rep1[i], rep2[i], 1e-12)
	}

	_, _, err = l.ReplicateRatios("no_such_output")
	assert.Error(t, err)
}

func TestFluorescenceUseConstruct(t *testing.T) {
	dir := fluorescenceFixture(t, 4)
	l := newFluorescence(Options{DataDir: dir, Seed: 1, UseConstruct: true}, fluorescenceConfig{})

	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	// construct sequences are 12bp vs the 8bp variable region
	assert.Len(t, splits.Train[0].Input, 4*12)
}

func TestTableLoaderSplitColumn(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, filepath.Join("LL100", "expression.tsv"),
		"sequence\tsplit\tHL60\tK562\n"+
			"ACGT\ttrain\t1.5\t2.5\n"+
			"CCGG\ttrain\t0.5\t1.0\n"+
			"TTAA\tval\t2.0\t2.0\n"+
			"GGCC\ttest\t3.0\t4.0\n")

	l := newRNASeq(Options{DataDir: dir}, "LL100")
	assert.Equal(t, []string{"LL100_HL60", "LL100_K562"}, l.OutputNames())

	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, splits.Train, 2)
	assert.Len(t, splits.Val, 1)
	assert.Len(t, splits.Test, 1)
	assert.Equal(t, []float64{3.0, 4.0}, splits.Test[0].Target)
}

func TestTableLoaderUnknownSplitLabel(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, filepath.Join("LL100", "expression.tsv"),
		"sequence\tsplit\tHL60\nACGT\ttrain\t1\nCCGG\tholdout\t2\n")

	l := newRNASeq(Options{DataDir: dir}, "LL100")
	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holdout")
}

func TestMalinoisMaskSentinel(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, filepath.Join("Malinois_MPRA", "activity.tsv"),
		"sequence\tsplit\tHEPG2\tSKNSH\n"+
			"ACGT\ttrain\t1.5\t-100000\n"+
			"CCGG\ttrain\t0.5\t1.0\n")

	l := newMalinois(Options{DataDir: dir})
	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, splits.Train, 2)

	masked := splits.Train[0]
	require.NotNil(t, masked.Mask)
	assert.True(t, masked.Mask[0])
	assert.False(t, masked.Mask[1])
	assert.Nil(t, splits.Train[1].Mask)
}

func TestEncodeBinarizesAtMedian(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, filepath.Join("ENCODETFChIPSeq", "binding.tsv"),
		"sequence\tsplit\tCTCF\n"+
			"ACGT\ttrain\t1.0\n"+
			"CCGG\ttrain\t2.0\n"+
			"TTAA\ttrain\t3.0\n"+
			"GGCC\ttest\t4.0\n")

	l := newENCODE(Options{DataDir: dir})
	assert.Equal(t, Classification, l.TaskType())

	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	// median of {1,2,3,4} is 2.5: rows 1 and 2 are negatives
	assert.Equal(t, []float64{0}, splits.Train[0].Target)
	assert.Equal(t, []float64{0}, splits.Train[1].Target)
	assert.Equal(t, []float64{1}, splits.Train[2].Target)
	assert.Equal(t, []float64{4.0}, splits.TestScores["ENCODETFChIPSeq_CTCF"])
}

func TestShrinkTestSet(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("sequence\tsplit\tactivity\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "ACGT\ttrain\t%d\n", i)
	}
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "CCGG\ttest\t%d\n", i)
	}
	writeFixture(t, dir, filepath.Join("lentiMPRA", "activity.tsv"), b.String())

	l := newLentiMPRA(Options{DataDir: dir, ShrinkTestSet: true})
	splits, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, splits.Test, shrunkTestSize)
}

func TestSeededSplitDeterministic(t *testing.T) {
	dir := fluorescenceFixture(t, 40)
	load := func(seed int64) *Splits {
		l := newFluorescence(Options{DataDir: dir, Seed: seed}, fluorescenceConfig{})
		s, err := l.Load(context.Background())
		require.NoError(t, err)
		return s
	}

	a, b := load(7), load(7)
	require.Equal(t, len(a.Test), len(b.Test))
	for i := range a.Test {
		assert.Equal(t, a.Test[i].Target, b.Test[i].Target)
	}
	assert.Len(t, a.Train, 36)
	assert.Len(t, a.Val, 2)
	assert.Len(t, a.Test, 2)
}

func TestRegistryBuild(t *testing.T) {
	opts := Options{DataDir: t.TempDir()}

	loaders, err := Build("RNASeq", opts)
	require.NoError(t, err)
	require.Len(t, loaders, 3)
	assert.Equal(t, "LL100", loaders[0].Name())
	assert.Equal(t, "CCLE", loaders[1].Name())
	assert.Equal(t, "Roadmap", loaders[2].Name())

	loaders, err = Build("SuRE_regression", opts)
	require.NoError(t, err)
	require.Len(t, loaders, 4)
	assert.Equal(t, "SuRE42_HG02601", loaders[0].Name())

	_, err = Build("NotATask", opts)
	assert.Error(t, err)
}

func TestRegistryBuildAllRejectsDuplicates(t *testing.T) {
	opts := Options{DataDir: t.TempDir()}
	_, err := BuildAll([]string{"RNASeq", "LL100"}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRegistryTasksSorted(t *testing.T) {
	tasks := Tasks()
	assert.Contains(t, tasks, "FluorescenceData")
	assert.Contains(t, tasks, "Malinois_MPRA")
	assert.Contains(t, tasks, "SuRE_classification")
	for i := 1; i < len(tasks); i++ {
		assert.Less(t, tasks[i-1], tasks[i])
	}
}

func TestMotifBasedNaming(t *testing.T) {
	opts := Options{DataDir: t.TempDir(), ModelName: "MotifBasedFCN"}
	l := newMalinois(opts)
	assert.Equal(t, "Malinois_MPRA_with_motifs", l.Name())

	f := newFluorescence(opts, fluorescenceConfig{predictDE: true})
	assert.Equal(t, "FluorescenceData_with_motifs_DE", f.Name())
}

func TestOneHot(t *testing.T) {
	v := OneHot("ACGTN")
	require.Len(t, v, 20)
	assert.Equal(t, 1.0, v[0])    // A
	assert.Equal(t, 1.0, v[4+1])  // C
	assert.Equal(t, 1.0, v[8+2])  // G
	assert.Equal(t, 1.0, v[12+3]) // T
	for c := 0; c < 4; c++ {
		assert.Equal(t, 0.25, v[16+c])
	}
}

func TestMotifFeatures(t *testing.T) {
	v := MotifFeatures("AAAA")
	require.Len(t, v, 64)
	assert.Equal(t, 1.0, v[0], "both windows are AAA")

	var sum float64
	for _, x := range MotifFeatures("ACGTACGT") {
		sum += x
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	// windows spanning an N are skipped
	v = MotifFeatures("AANAA")
	assert.True(t, math.IsNaN(v[0]) == false)
	assert.Equal(t, 0.0, v[0])
}

func TestFeatureSize(t *testing.T) {
	assert.Equal(t, 20, FeatureSize(5, false))
	assert.Equal(t, 64, FeatureSize(5, true))
	assert.Len(t, OneHot("ACGTA"), FeatureSize(5, false))
	assert.Len(t, MotifFeatures("ACGTA"), FeatureSize(5, true))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}
