package commands

import (
	"github.com/spf13/cobra"
)

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand() *cobra.Command {
	opts := &TrainOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate existing models without training",
		Long: `Evaluate the best existing checkpoint of each seed's run on the test
splits and aggregate the metrics into a summary file.

The run is identified the same way train identifies it: strategy, tasks,
backbone, seed count and name suffix. Every seed must have a finished
run under saved_models/.`,
		Example: `  # Re-evaluate a finished 5-seed fluorescence run
  promod evaluate --modelling-strategy single_task \
    --single-task FluorescenceData --num-random-seeds 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts, true)
		},
	}

	addTrainFlags(cmd, opts)
	return cmd
}
