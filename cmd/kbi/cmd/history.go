package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/output"
	"github.com/Aman-CERP/kbi/internal/telemetry"
	"github.com/Aman-CERP/kbi/internal/ui"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded index runs",
		Long: `List past index runs, newest first.

Runs are recorded when telemetry.history is enabled in the config. The
database lives at telemetry.history_path, default ~/.kbi/history.db.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := workingDir()
			if err != nil {
				return err
			}
			cfg, err := config.Load(dir, root.configPath)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			renderer := ui.NewHistoryRenderer(stdout, !root.colorEnabled(stdout))

			runs, err := loadHistory(cmd.Context(), historyPath(cfg), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return renderer.RenderJSON(runs)
			}
			if len(runs) == 0 && !cfg.Telemetry.History {
				output.New(cmd.ErrOrStderr()).Status("", "Run history is off. Set telemetry.history: true in kbi.yaml to record runs.")
			}
			return renderer.Render(runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output runs as JSON")
	return cmd
}

// loadHistory returns the recorded runs, or none when no database exists.
func loadHistory(ctx context.Context, path string, limit int) ([]ui.RunInfo, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	store, err := telemetry.OpenHistory(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	infos := make([]ui.RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = ui.RunInfo{
			ID:          r.ID,
			StartedAt:   r.StartedAt,
			Duration:    r.Duration,
			Output:      r.Output,
			OutputBytes: r.OutputBytes,
			Files:       r.Files,
			Nodes:       r.Nodes,
			Keywords:    r.Keywords,
			Matches:     r.Matches,
			Tags:        r.Tags,
			Warnings:    r.Warnings,
			Errors:      r.Errors,
			Status:      r.Status,
		}
	}
	return infos, nil
}
