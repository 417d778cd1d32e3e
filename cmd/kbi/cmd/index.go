package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/index"
	"github.com/Aman-CERP/kbi/internal/output"
	"github.com/Aman-CERP/kbi/internal/profiling"
	"github.com/Aman-CERP/kbi/internal/telemetry"
	"github.com/Aman-CERP/kbi/internal/ui"
)

// indexOptions are the flags of an index run.
type indexOptions struct {
	output      string
	noTUI       bool
	metricsFile string
	workers     int
	keywords    []string
	roots       []string
	profile     profiling.Options
}

func addIndexFlags(cmd *cobra.Command, o *indexOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "Output mind map (default from config, index.mm)")
	f.BoolVar(&o.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")
	f.IntVar(&o.workers, "workers", 0, "Worker pool size (0 = number of CPUs)")
	f.StringArrayVarP(&o.keywords, "keywords", "k", nil, "Keyword file, repeatable (overrides keywords.files)")
	f.StringArrayVar(&o.roots, "root", nil, "Directory to scan, repeatable (overrides paths.include)")
	f.StringVar(&o.profile.CPU, "profile-cpu", "", "Write a CPU profile of the run to this file")
	f.StringVar(&o.profile.Heap, "profile-mem", "", "Write a heap profile after the run to this file")
	f.StringVar(&o.profile.Trace, "profile-trace", "", "Write an execution trace of the run to this file")
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	idx := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the knowledgebase and write the mind map",
		Long: `Index scans the configured roots, parses every supported document, searches
the keyword patterns, collects tags, and writes the mind map.

Problems with single documents or patterns are reported as warnings after the
run. A keyword file with an indentation error is skipped; the other branches
are still written and kbi exits with status 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, root, idx)
		},
	}
	addIndexFlags(cmd, idx)
	return cmd
}

func runIndex(cmd *cobra.Command, root *rootOptions, opts *indexOptions) error {
	// Ctrl+C cancels the run before anything is written.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := workingDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir, root.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Performance.Workers = opts.workers
	}
	if opts.metricsFile != "" {
		cfg.Telemetry.MetricsFile = opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := root.startLogging(cfg); err != nil {
		return err
	}
	defer root.stopLogging()
	slog.Info("index_started",
		slog.String("dir", dir),
		slog.String("config", cfg.Source),
		slog.Int("workers", cfg.Workers()))

	deps := index.RunnerDependencies{Config: cfg}
	if cfg.Telemetry.History {
		history, err := telemetry.OpenHistory(historyPath(cfg))
		if err != nil {
			// History is optional; the run goes ahead without it.
			slog.Warn("history_unavailable", slog.String("error", err.Error()))
		} else {
			defer func() { _ = history.Close() }()
			deps.History = history
		}
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(root.noColor || ui.DetectNoColor()),
		ui.WithTitle(cfg.Output.Title)))
	deps.Renderer = renderer

	runner, err := index.NewRunner(deps)
	if err != nil {
		return err
	}

	prof, err := profiling.Start(opts.profile)
	if err != nil {
		return err
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			slog.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
	}()

	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	res, runErr := runner.Run(ctx, index.RunnerConfig{
		Dir:          dir,
		Roots:        opts.roots,
		KeywordFiles: opts.keywords,
		Output:       opts.output,
	})
	_ = renderer.Stop()
	if runErr != nil {
		return runErr
	}

	stderr := cmd.ErrOrStderr()
	output.NewWithColor(stderr, root.colorEnabled(stderr)).Diagnostics(res.Diagnostics)

	if code := res.ExitCode(); code != 0 {
		reason := "run reported errors"
		if res.KeywordsAborted {
			reason = "keyword branch skipped: a keyword file has structural errors"
		}
		return &ExitError{Code: code, Reason: reason}
	}
	return nil
}

func historyPath(cfg *config.Config) string {
	if cfg.Telemetry.HistoryPath != "" {
		return cfg.Telemetry.HistoryPath
	}
	return telemetry.DefaultHistoryPath()
}
