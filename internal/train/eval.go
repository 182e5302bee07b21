package train

import (
	"fmt"

	"github.com/eamonbyrne/promoter-models/internal/dataset"
	"github.com/eamonbyrne/promoter-models/internal/metrics"
	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// subsetPercentile is the expression-percentile cut for the highly and
// lowly expressed metric subsets.
const subsetPercentile = 90

// evaluate computes test metrics for every loader and appends them to
// the aggregator keyed by output column.
func (e *Engine) evaluate(loaders []dataset.Loader, splits []*dataset.Splits,
	net *nn.Network, agg *metrics.Aggregator, result *Result, seed int64) error {

	for i, l := range loaders {
		head, err := net.HeadIndex(l.Name())
		if err != nil {
			return err
		}
		test := splits[i].Test
		if len(test) == 0 {
			e.logger.Warn("empty test split, skipping evaluation", "dataset", l.Name())
			continue
		}
		outputs := l.OutputNames()

		// per-column observed values, predictions and validity masks
		y := make([][]float64, len(outputs))
		pred := make([][]float64, len(outputs))
		mask := make([][]bool, len(outputs))
		for _, sample := range test {
			p := net.Predict(sample.Input, head)
			if len(p) != len(outputs) {
				return fmt.Errorf("dataset %s: head emits %d values for %d outputs", l.Name(), len(p), len(outputs))
			}
			for j := range outputs {
				y[j] = append(y[j], sample.Target[j])
				pred[j] = append(pred[j], p[j])
				mask[j] = append(mask[j], sample.Mask == nil || sample.Mask[j])
			}
		}

		for j, output := range outputs {
			if n := metrics.ZeroFillNaN(pred[j]); n > 0 {
				e.logger.Warn("NaN predictions replaced with 0", "output", output, "count", n)
			}

			if l.TaskType() == dataset.Classification {
				e.aggregateClassification(agg, output, y[j], pred[j], splits[i].TestScores[output])
				continue
			}

			my, mpred := metrics.ApplyMask(y[j], pred[j], mask[j])
			bd := metrics.RegressionWithSubsets(my, mpred, subsetPercentile)
			addRegression(agg, output, "", bd.Overall)
			addRegression(agg, output, "_highly_expressed", bd.High)
			addRegression(agg, output, "_lowly_expressed", bd.Low)
			addRegression(agg, output, "_extreme_expression", bd.Extreme)

			if result.BestSeed < 0 || bd.Overall.SpearmanR > result.BestSeedMetric {
				result.BestSeed = seed
				result.BestSeedMetric = bd.Overall.SpearmanR
			}
		}

		if rr, ok := l.(dataset.ReplicateReporter); ok && l.TaskType() == dataset.Regression {
			e.aggregateConcordance(agg, rr, outputs)
		}
	}
	return nil
}

func addRegression(agg *metrics.Aggregator, output, suffix string, s metrics.RegressionScores) {
	agg.Add(output, "R2"+suffix, s.R2)
	agg.Add(output, "PearsonR"+suffix, s.PearsonR)
	agg.Add(output, "SpearmanR"+suffix, s.SpearmanR)
}

func (e *Engine) aggregateClassification(agg *metrics.Aggregator, output string, y, logits, scores []float64) {
	if len(scores) != len(y) {
		// no numerical scores, no percentile subsets
		e.logger.Warn("missing numerical scores, reporting overall classification metrics only", "output", output)
		addClassification(agg, output, "", metrics.Classification(y, logits))
		return
	}
	bd := metrics.ClassificationWithSubsets(y, logits, scores, subsetPercentile)
	addClassification(agg, output, "", bd.Overall)
	addClassification(agg, output, "_highly_expressed", bd.High)
	agg.Add(output, "Accuracy_lowly_expressed", bd.LowAccuracy)
}

func addClassification(agg *metrics.Aggregator, output, suffix string, s metrics.ClassificationScores) {
	agg.Add(output, "Accuracy"+suffix, s.Accuracy)
	agg.Add(output, "Precision"+suffix, s.Precision)
	agg.Add(output, "Recall"+suffix, s.Recall)
	agg.Add(output, "F1"+suffix, s.F1)
}

// aggregateConcordance records the correlation between the two assay
// replicates behind each fluorescence output.
func (e *Engine) aggregateConcordance(agg *metrics.Aggregator, rr dataset.ReplicateReporter, outputs []string) {
	for _, output := range outputs {
		rep1, rep2, err := rr.ReplicateRatios(output)
		if err != nil {
			e.logger.Warn("replicate concordance unavailable", "output", output, "error", err)
			continue
		}
		agg.Add(output, "ReplicateConcordancePearsonR", metrics.Pearson(rep1, rep2))
		agg.Add(output, "ReplicateConcordanceSpearmanR", metrics.Spearman(rep1, rep2))
	}
}
