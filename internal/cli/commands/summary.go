package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/eamonbyrne/promoter-models/internal/cli/config"
	"github.com/eamonbyrne/promoter-models/internal/summary"
)

// SummaryOptions holds options for the summary command.
type SummaryOptions struct {
	Watch bool
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand() *cobra.Command {
	opts := &SummaryOptions{}

	cmd := &cobra.Command{
		Use:   "summary [name]",
		Short: "Render aggregated run summaries",
		Long: `Render a run's summary file as a metrics table. Without a name,
lists the available summaries.

The name is the seed-independent run name, e.g.
finetune_on_FluorescenceData_pretrained_on_LL100+CCLE.`,
		Example: `  # List available summaries
  promod summary

  # Render one summary
  promod summary individual_training_on_FluorescenceData

  # Keep re-rendering while a training run updates it
  promod summary individual_training_on_FluorescenceData --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-render when the summary file changes")
	return cmd
}

func runSummary(cmd *cobra.Command, opts *SummaryOptions, args []string) error {
	cfg := getConfig()
	dir := cfg.SummariesDir()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		paths, err := summary.List(dir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Fprintln(out, "No summaries found.")
			return nil
		}
		fmt.Fprintf(out, "Summaries (%d total):\n\n", len(paths))
		for _, p := range paths {
			name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			name = strings.TrimSuffix(name, "_dlseed")
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	}

	path := filepath.Join(dir, summary.FileName(args[0]))
	if err := renderSummary(cmd, path); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}
	return watchSummary(cmd, dir, path)
}

func renderSummary(cmd *cobra.Command, path string) error {
	doc, err := summary.Read(path)
	if err != nil {
		return err
	}
	summary.Render(cmd.OutOrStdout(), doc)
	return nil
}

// watchSummary re-renders the summary whenever a training run rewrites
// it. The directory is watched rather than the file because summary
// writes replace the file.
func watchSummary(cmd *cobra.Command, dir, path string) error {
	logger := config.GetLogger(cmd.Context())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s (Ctrl-C to stop)\n", path)

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path || !event.Op.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if err := renderSummary(cmd, path); err != nil {
				logger.Warn("failed to re-render summary", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
