package dataset

import (
	"fmt"
	"math/rand"

	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// shrunkTestSize is the test-split size used when Options.ShrinkTestSet
// is set on the large genome-scale tasks.
const shrunkTestSize = 10

// seededSplit partitions samples 90/5/5 into train/val/test using a
// deterministic permutation of the row order. The second return value
// lists the original row indices of the test split.
func seededSplit(samples []nn.Sample, scores map[string][]float64, seed int64) (*Splits, []int) {
	n := len(samples)
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	nTrain := n * 90 / 100
	nVal := n * 5 / 100

	s := &Splits{}
	var testRows []int
	if scores != nil {
		s.TestScores = make(map[string][]float64, len(scores))
	}
	for i, p := range perm {
		switch {
		case i < nTrain:
			s.Train = append(s.Train, samples[p])
		case i < nTrain+nVal:
			s.Val = append(s.Val, samples[p])
		default:
			s.Test = append(s.Test, samples[p])
			testRows = append(testRows, p)
			for name, vals := range scores {
				s.TestScores[name] = append(s.TestScores[name], vals[p])
			}
		}
	}
	return s, testRows
}

// columnSplit partitions samples by the values of a split column
// ("train", "val" and "test"; "valid" and "validation" are accepted).
func columnSplit(samples []nn.Sample, labels []string) (*Splits, error) {
	s := &Splits{}
	for i, label := range labels {
		switch label {
		case "train":
			s.Train = append(s.Train, samples[i])
		case "val", "valid", "validation":
			s.Val = append(s.Val, samples[i])
		case "test":
			s.Test = append(s.Test, samples[i])
		default:
			return nil, fmt.Errorf("unknown split label %q at row %d", label, i+1)
		}
	}
	return s, nil
}

// shrinkTest truncates the test split for quick evaluation runs.
func shrinkTest(s *Splits) {
	if len(s.Test) > shrunkTestSize {
		s.Test = s.Test[:shrunkTestSize]
	}
	for name, vals := range s.TestScores {
		if len(vals) > shrunkTestSize {
			s.TestScores[name] = vals[:shrunkTestSize]
		}
	}
}
