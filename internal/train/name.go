package train

import (
	"fmt"
	"strings"

	"github.com/eamonbyrne/promoter-models/internal/model"
)

// nameFormat builds the base run name for a phase. Non-default backbones
// get a name prefix; the optional suffix is appended for every run
// except the pretraining phase, which is shared across finetune runs.
func nameFormat(s Strategy, backbone string, tasks, pretrainTasks []string, suffix string, finetune bool) string {
	joined := strings.Join(tasks, "+")
	pretrainJoined := strings.Join(pretrainTasks, "+")

	var name string
	switch {
	case s.Pretrains() && finetune:
		switch s {
		case PretrainFinetune:
			name = fmt.Sprintf("finetune_on_%s_pretrained_on_%s", joined, pretrainJoined)
		case PretrainLinearProbing:
			name = fmt.Sprintf("linear_probing_on_%s_pretrained_on_%s", joined, pretrainJoined)
		case PretrainSimpleRegress:
			name = fmt.Sprintf("simple_regression_on_%s_pretrained_on_%s", joined, pretrainJoined)
		}
	case s.Pretrains():
		name = fmt.Sprintf("pretrain_on_%s", joined)
	case s == Joint:
		name = fmt.Sprintf("joint_train_on_%s", joined)
	case s == SingleTaskSimpleRegres:
		name = fmt.Sprintf("simple_regression_on_%s", joined)
	case s == SingleTask:
		name = fmt.Sprintf("individual_training_on_%s", joined)
	}

	if backbone != "" && backbone != model.DefaultName {
		name = backbone + "_" + name
	}
	if suffix != "" && !(s.Pretrains() && !finetune) {
		name += "_" + suffix
	}
	return name
}

// seedName appends the seed discriminator when more than one seed runs.
func seedName(format string, seed int64, multi bool) string {
	if !multi {
		return format
	}
	return fmt.Sprintf("%s_dl_seed_%d", format, seed)
}
