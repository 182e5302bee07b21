package metrics

import "math"

// ClassificationScores holds binary classification metrics for one output.
type ClassificationScores struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// sigmoid converts a logit to a probability.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Classify rounds sigmoid(logit) to a hard 0/1 label.
func Classify(logit float64) float64 {
	return math.Round(sigmoid(logit))
}

// Classification scores hard labels derived from logits against binary
// targets.
func Classification(y, logits []float64) ClassificationScores {
	var tp, tn, fp, fn float64
	for i := range y {
		pred := Classify(logits[i])
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] != 1:
			fp++
		case pred == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
	}

	scores := ClassificationScores{}
	total := tp + tn + fp + fn
	if total > 0 {
		scores.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		scores.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		scores.Recall = tp / (tp + fn)
	}
	if scores.Precision+scores.Recall > 0 {
		scores.F1 = 2 * scores.Precision * scores.Recall / (scores.Precision + scores.Recall)
	}
	return scores
}

// ClassificationBreakdown carries overall scores plus scores restricted
// to the highly expressed subset, and the accuracy on the lowly expressed
// subset. Subsets are selected by each example's underlying numerical
// expression score, not its binary label.
type ClassificationBreakdown struct {
	Overall     ClassificationScores
	High        ClassificationScores
	LowAccuracy float64
}

// ClassificationWithSubsets computes the breakdown with percentile
// thresholds on scores at pct and 100-pct.
func ClassificationWithSubsets(y, logits, scores []float64, pct float64) ClassificationBreakdown {
	upper := Percentile(scores, pct)
	lower := Percentile(scores, 100-pct)

	var hy, hl, ly, ll []float64
	for i := range y {
		if scores[i] >= upper {
			hy = append(hy, y[i])
			hl = append(hl, logits[i])
		}
		if scores[i] <= lower {
			ly = append(ly, y[i])
			ll = append(ll, logits[i])
		}
	}

	return ClassificationBreakdown{
		Overall:     Classification(y, logits),
		High:        Classification(hy, hl),
		LowAccuracy: Classification(ly, ll).Accuracy,
	}
}
