// Package dataset defines the dataset loaders that feed the training
// engine. Each loader owns one assay's files, declares its output
// columns, and produces train/validation/test splits of encoded samples.
package dataset

import (
	"context"
	"log/slog"

	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// TaskType says how a dataset's targets are modelled.
type TaskType string

const (
	Regression     TaskType = "regression"
	Classification TaskType = "classification"
)

// Splits holds the encoded samples for each split. TestScores carries the
// underlying numerical expression values per output column for
// classification datasets, which percentile-subset metrics need.
type Splits struct {
	Train []nn.Sample
	Val   []nn.Sample
	Test  []nn.Sample

	TestScores map[string][]float64
}

// Loader is one dataset adapter.
type Loader interface {
	// Name identifies the loader, e.g. "FluorescenceData" or
	// "SuRE_classification_SuRE42_HG02601".
	Name() string
	// OutputNames are the target columns the dataset provides, in order.
	OutputNames() []string
	// TaskType reports regression or classification.
	TaskType() TaskType
	// Load parses the dataset files and returns encoded splits.
	Load(ctx context.Context) (*Splits, error)
}

// ReplicateReporter is implemented by loaders that expose raw replicate
// measurements for concordance checks.
type ReplicateReporter interface {
	// ReplicateRatios returns the two replicates' log2 expression
	// ratios for one output column over the test split.
	ReplicateRatios(output string) (rep1, rep2 []float64, err error)
}

// Options configures loader construction. The task dispatch consults the
// backbone name and strategy-derived flags the same way the run
// configuration does.
type Options struct {
	// DataDir is the root data directory; each loader reads its own
	// subdirectory.
	DataDir string
	// CommonCacheDir holds shared reference files (genome caches).
	CommonCacheDir string
	// Seed reseeds the random split of fluorescence datasets; loaders
	// with fixed chromosome-style splits ignore it.
	Seed int64
	// ModelName selects feature variants: backbones with the
	// "MotifBased" prefix get motif-count features.
	ModelName string
	// UseConstruct switches fluorescence loaders to the full construct
	// sequence (simple-regression strategies).
	UseConstruct bool
	// ShrinkTestSet truncates the large SuRE and ENCODETFChIPSeq test
	// splits to speed up evaluation.
	ShrinkTestSet bool

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// motifBased reports whether the configured backbone consumes motif
// features instead of one-hot sequence.
func (o Options) motifBased() bool {
	return len(o.ModelName) >= len(motifPrefix) && o.ModelName[:len(motifPrefix)] == motifPrefix
}

const motifPrefix = "MotifBased"
