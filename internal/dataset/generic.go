package dataset

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// tableSpec describes a dataset published as a single tab-separated
// file: one sequence column, an optional split column, and one target
// column per model output.
type tableSpec struct {
	name        string
	path        string // relative to Options.DataDir
	seqColumn   string
	splitColumn string // empty means a seeded random split
	task        TaskType

	// sentinel marking untested outputs (Malinois); rows keep their
	// other targets, masked entries contribute nothing to training
	maskSentinel    float64
	hasMaskSentinel bool

	// binarize numeric targets at their per-output median and keep
	// the raw scores for percentile-based test subsetting
	binarize bool

	// honor Options.ShrinkTestSet on genome-scale test splits
	shrinkable bool
}

// tableLoader is the shared implementation behind the RNA-seq, MPRA,
// STARR-seq, ChIP-seq and SuRE tasks.
type tableLoader struct {
	opts    Options
	spec    tableSpec
	outputs []string
}

func newTableLoader(opts Options, spec tableSpec) *tableLoader {
	if spec.seqColumn == "" {
		spec.seqColumn = "sequence"
	}
	return &tableLoader{opts: opts, spec: spec}
}

func (l *tableLoader) Name() string { return l.spec.name }

func (l *tableLoader) TaskType() TaskType { return l.spec.task }

// OutputNames reads the file header on first use. Target columns are
// every column that is not the sequence or split column, prefixed with
// the dataset name.
func (l *tableLoader) OutputNames() []string {
	if l.outputs == nil {
		tbl, err := readTable(filepath.Join(l.opts.DataDir, l.spec.path))
		if err != nil {
			return nil
		}
		l.outputs = l.targetColumns(tbl)
	}
	return l.outputs
}

func (l *tableLoader) targetColumns(tbl *table) []string {
	var out []string
	for _, col := range tbl.header {
		if col == l.spec.seqColumn || col == l.spec.splitColumn {
			continue
		}
		out = append(out, l.spec.name+"_"+col)
	}
	return out
}

func (l *tableLoader) Load(ctx context.Context) (*Splits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := readTable(filepath.Join(l.opts.DataDir, l.spec.path))
	if err != nil {
		return nil, err
	}
	l.outputs = l.targetColumns(tbl)
	if len(l.outputs) == 0 {
		return nil, fmt.Errorf("dataset %s has no target columns", l.spec.name)
	}

	seqIdx, err := tbl.column(l.spec.seqColumn)
	if err != nil {
		return nil, err
	}
	targetIdx := make([]int, 0, len(l.outputs))
	for _, col := range tbl.header {
		if col != l.spec.seqColumn && col != l.spec.splitColumn {
			targetIdx = append(targetIdx, tbl.columns[col])
		}
	}

	values := make([][]float64, len(targetIdx))
	for k, col := range targetIdx {
		values[k] = make([]float64, len(tbl.rows))
		for i := range tbl.rows {
			v, err := tbl.float(i, col)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", l.spec.name, err)
			}
			values[k][i] = v
		}
	}

	var scores map[string][]float64
	var thresholds []float64
	if l.spec.binarize {
		scores = make(map[string][]float64, len(targetIdx))
		thresholds = make([]float64, len(targetIdx))
		for k := range targetIdx {
			scores[l.outputs[k]] = values[k]
			thresholds[k] = median(values[k])
		}
	}

	samples := make([]nn.Sample, len(tbl.rows))
	for i := range tbl.rows {
		target := make([]float64, len(targetIdx))
		var mask []bool
		for k := range targetIdx {
			v := values[k][i]
			if l.spec.hasMaskSentinel && v == l.spec.maskSentinel {
				if mask == nil {
					mask = validMask(len(targetIdx))
				}
				mask[k] = false
				continue
			}
			if l.spec.binarize {
				if v > thresholds[k] {
					target[k] = 1
				}
			} else {
				target[k] = v
			}
		}
		samples[i] = nn.Sample{
			Input:  encode(tbl.rows[i][seqIdx], l.opts.motifBased()),
			Target: target,
			Mask:   mask,
		}
	}

	var splits *Splits
	if l.spec.splitColumn == "" {
		splits, _ = seededSplit(samples, scores, l.opts.Seed)
	} else {
		splitIdx, err := tbl.column(l.spec.splitColumn)
		if err != nil {
			return nil, err
		}
		labels := make([]string, len(tbl.rows))
		for i := range tbl.rows {
			labels[i] = tbl.rows[i][splitIdx]
		}
		splits, err = columnSplit(samples, labels)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", l.spec.name, err)
		}
		if scores != nil {
			splits.TestScores = make(map[string][]float64, len(scores))
			for i, label := range labels {
				if label != "test" {
					continue
				}
				for k := range targetIdx {
					name := l.outputs[k]
					splits.TestScores[name] = append(splits.TestScores[name], values[k][i])
				}
			}
		}
	}

	if l.spec.shrinkable && l.opts.ShrinkTestSet {
		shrinkTest(splits)
	}
	l.opts.logger().Info("loaded dataset",
		"name", l.spec.name, "outputs", len(l.outputs),
		"train", len(splits.Train), "val", len(splits.Val), "test", len(splits.Test))
	return splits, nil
}

func validMask(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}
