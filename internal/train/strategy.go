package train

import (
	"fmt"
	"strings"
)

// Strategy selects how tasks are combined and whether a pretraining
// phase precedes the per-seed runs.
type Strategy string

const (
	Joint                  Strategy = "joint"
	PretrainFinetune       Strategy = "pretrain+finetune"
	PretrainLinearProbing  Strategy = "pretrain+linear_probing"
	PretrainSimpleRegress  Strategy = "pretrain+simple_regression"
	SingleTask             Strategy = "single_task"
	SingleTaskSimpleRegres Strategy = "single_task_simple_regression"
)

// Strategies lists the supported modelling strategies.
func Strategies() []Strategy {
	return []Strategy{
		Joint,
		PretrainFinetune,
		PretrainLinearProbing,
		PretrainSimpleRegress,
		SingleTask,
		SingleTaskSimpleRegres,
	}
}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	for _, known := range Strategies() {
		if Strategy(s) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown modelling strategy %q", s)
}

// Pretrains reports whether the strategy runs a pretraining phase.
func (s Strategy) Pretrains() bool {
	return strings.HasPrefix(string(s), "pretrain")
}

// LinearProbing reports whether the trunk is frozen during finetuning.
func (s Strategy) LinearProbing() bool {
	return s == PretrainLinearProbing
}

// SimpleRegression reports whether heads are fitted by least squares on
// frozen trunk embeddings instead of gradient training.
func (s Strategy) SimpleRegression() bool {
	return s == PretrainSimpleRegress || s == SingleTaskSimpleRegres
}

// Single reports whether the strategy trains on exactly one task.
func (s Strategy) Single() bool {
	return strings.HasPrefix(string(s), "single_task")
}
