package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eamonbyrne/promoter-models/internal/model"
)

// NewBackbonesCommand creates the backbones command.
func NewBackbonesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backbones",
		Short: "List the registered model backbones",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			names := model.Names()
			fmt.Fprintf(out, "Backbones (%d total):\n\n", len(names))
			for _, name := range names {
				marker := ""
				if name == model.DefaultName {
					marker = " (default)"
				}
				fmt.Fprintf(out, "  %s%s\n", name, marker)
			}
		},
	}
}
