package dataset

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// fluorescenceCells maps cell lines to their replicate column prefixes.
// Each cell line has two replicates, and each replicate reports P4
// (active) and P7 (inactive) sorting-bin read counts.
var fluorescenceCells = map[string]string{
	"JURKAT": "J",
	"K562":   "K",
	"THP1":   "T",
}

var fluorescenceCellOrder = []string{"JURKAT", "K562", "THP1"}

type fluorescenceConfig struct {
	predictDE      bool
	classification bool
	cells          []string
}

// fluorescenceLoader reads the promoter fluorescence assay. The label
// per cell line is the mean log2(P4/P7) ratio over both replicates.
// The DE variant subtracts the across-cell mean from each cell value,
// and the classification variant binarizes each cell value at its
// median, keeping the numerical score for percentile subsetting.
type fluorescenceLoader struct {
	opts Options
	cfg  fluorescenceConfig
	name string

	// populated by Load, reused by ReplicateRatios
	tbl      *table
	testRows []int
}

func newFluorescence(opts Options, cfg fluorescenceConfig) *fluorescenceLoader {
	if len(cfg.cells) == 0 {
		cfg.cells = fluorescenceCellOrder
	}
	name := "FluorescenceData"
	if opts.motifBased() {
		name = "FluorescenceData_with_motifs"
	}
	switch {
	case cfg.predictDE:
		name += "_DE"
	case cfg.classification:
		name = "FluorescenceData_classification"
	case len(cfg.cells) == 1:
		name = "FluorescenceData_" + cfg.cells[0]
	}
	return &fluorescenceLoader{opts: opts, cfg: cfg, name: name}
}

func (l *fluorescenceLoader) Name() string { return l.name }

func (l *fluorescenceLoader) OutputNames() []string {
	out := make([]string, 0, len(l.cfg.cells))
	for _, cell := range l.cfg.cells {
		out = append(out, l.name+"_"+cell)
	}
	return out
}

func (l *fluorescenceLoader) TaskType() TaskType {
	if l.cfg.classification {
		return Classification
	}
	return Regression
}

func (l *fluorescenceLoader) Load(ctx context.Context) (*Splits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := readTable(filepath.Join(l.opts.DataDir, "FluorescenceData", "measurements.tsv"))
	if err != nil {
		return nil, err
	}
	l.tbl = tbl

	seqCol := "sequence"
	if l.opts.UseConstruct {
		seqCol = "construct_sequence"
	}
	seqIdx, err := tbl.column(seqCol)
	if err != nil {
		return nil, err
	}

	// per-cell mean log2(P4/P7) over both replicates
	values := make([][]float64, len(fluorescenceCellOrder))
	for ci, cell := range fluorescenceCellOrder {
		values[ci] = make([]float64, len(tbl.rows))
		for rep := 1; rep <= 2; rep++ {
			ratios, err := l.replicateColumn(cell, rep)
			if err != nil {
				return nil, err
			}
			for i, r := range ratios {
				values[ci][i] += r / 2
			}
		}
	}

	if l.cfg.predictDE {
		// differential expression: deviation from the across-cell mean
		for i := range tbl.rows {
			var mean float64
			for ci := range fluorescenceCellOrder {
				mean += values[ci][i]
			}
			mean /= float64(len(fluorescenceCellOrder))
			for ci := range fluorescenceCellOrder {
				values[ci][i] -= mean
			}
		}
	}

	cellIdx := make([]int, 0, len(l.cfg.cells))
	for _, cell := range l.cfg.cells {
		for ci, name := range fluorescenceCellOrder {
			if name == cell {
				cellIdx = append(cellIdx, ci)
			}
		}
	}

	var scores map[string][]float64
	var thresholds []float64
	if l.cfg.classification {
		scores = make(map[string][]float64, len(cellIdx))
		thresholds = make([]float64, len(cellIdx))
		for k, ci := range cellIdx {
			scores[l.OutputNames()[k]] = values[ci]
			thresholds[k] = median(values[ci])
		}
	}

	samples := make([]nn.Sample, len(tbl.rows))
	for i := range tbl.rows {
		target := make([]float64, len(cellIdx))
		for k, ci := range cellIdx {
			if l.cfg.classification {
				if values[ci][i] > thresholds[k] {
					target[k] = 1
				}
			} else {
				target[k] = values[ci][i]
			}
		}
		samples[i] = nn.Sample{
			Input:  encode(tbl.rows[i][seqIdx], l.opts.motifBased()),
			Target: target,
		}
	}

	splits, testRows := seededSplit(samples, scores, l.opts.Seed)
	l.testRows = testRows
	l.opts.logger().Info("loaded fluorescence dataset",
		"name", l.name, "train", len(splits.Train), "val", len(splits.Val), "test", len(splits.Test))
	return splits, nil
}

// ReplicateRatios returns the per-replicate log2(P4/P7) ratios for the
// cell line behind the given output, restricted to the test split of
// the most recent Load, for concordance reporting.
func (l *fluorescenceLoader) ReplicateRatios(output string) (rep1, rep2 []float64, err error) {
	if l.tbl == nil {
		return nil, nil, fmt.Errorf("dataset %s has not been loaded", l.name)
	}
	for k, name := range l.OutputNames() {
		if name != output {
			continue
		}
		cell := l.cfg.cells[k]
		all1, err := l.replicateColumn(cell, 1)
		if err != nil {
			return nil, nil, err
		}
		all2, err := l.replicateColumn(cell, 2)
		if err != nil {
			return nil, nil, err
		}
		rep1 = make([]float64, len(l.testRows))
		rep2 = make([]float64, len(l.testRows))
		for i, row := range l.testRows {
			rep1[i] = all1[row]
			rep2[i] = all2[row]
		}
		return rep1, rep2, nil
	}
	return nil, nil, fmt.Errorf("dataset %s has no output %q", l.name, output)
}

// replicateColumn computes log2(P4/P7) per row for one replicate of a
// cell line, e.g. columns J1_P4 and J1_P7 for JURKAT replicate 1.
func (l *fluorescenceLoader) replicateColumn(cell string, rep int) ([]float64, error) {
	prefix := fmt.Sprintf("%s%d", fluorescenceCells[cell], rep)
	p4, err := l.tbl.column(prefix + "_P4")
	if err != nil {
		return nil, err
	}
	p7, err := l.tbl.column(prefix + "_P7")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(l.tbl.rows))
	for i := range l.tbl.rows {
		num, err := l.tbl.float(i, p4)
		if err != nil {
			return nil, err
		}
		den, err := l.tbl.float(i, p7)
		if err != nil {
			return nil, err
		}
		out[i] = math.Log2(num / den)
	}
	return out, nil
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
