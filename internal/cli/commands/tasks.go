package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eamonbyrne/promoter-models/internal/dataset"
)

// NewTasksCommand creates the tasks command.
func NewTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the registered dataset tasks",
		Long: `List every task name the dataset registry accepts, including group
names that expand to several loaders.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			tasks := dataset.Tasks()
			fmt.Fprintf(out, "Tasks (%d total):\n\n", len(tasks))
			for _, name := range tasks {
				fmt.Fprintf(out, "  %s\n", name)
			}
		},
	}
}
