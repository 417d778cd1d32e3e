// Package cmd provides the CLI commands for kbi.
package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/logging"
	"github.com/Aman-CERP/kbi/internal/ui"
	"github.com/Aman-CERP/kbi/pkg/version"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
	logFile    string
	logLevel   string
	noColor    bool

	loggingCleanup func()
}

// ExitError carries a process exit status for a failure that has already
// been reported.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return e.Reason
}

// NewRootCmd creates the root command. Run without a subcommand it indexes
// the working directory.
func NewRootCmd() *cobra.Command {
	root := &rootOptions{}
	idx := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "kbi",
		Short: "Build a navigable mind map of a knowledgebase",
		Long: `kbi scans Markdown and Freeplane documents and writes a Freeplane mind map
with three branches:

  File System Index  the directory tree of the scanned documents
  Keyword Index      matches of the patterns in your keyword files
  Tag Index          #hashtags and frontmatter tags, by document

Run 'kbi' in the root of your knowledgebase. Create a starting point with
'kbi sample-config' and 'kbi sample-keywords'.`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, root, idx)
		},
	}

	cmd.SetVersionTemplate("kbi version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&root.configPath, "config", "c", "", "Path to the config file")
	pf.BoolVarP(&root.debug, "debug", "d", false, "Enable debug logging to stderr and ~/.kbi/logs/")
	pf.StringVar(&root.logFile, "log-file", "", "Write logs to this file")
	pf.StringVar(&root.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&root.noColor, "no-color", false, "Disable colored output")

	addIndexFlags(cmd, idx)

	cmd.AddCommand(newIndexCmd(root))
	cmd.AddCommand(newSampleConfigCmd())
	cmd.AddCommand(newSampleKeywordsCmd())
	cmd.AddCommand(newValidateKeywordsCmd(root))
	cmd.AddCommand(newHistoryCmd(root))
	cmd.AddCommand(newLogsCmd(root))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command. Errors other than ExitError are printed
// to stderr.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		var exit *ExitError
		if !stderrors.As(err, &exit) {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), errors.FormatForCLI(err))
		}
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if stderrors.As(err, &exit) && exit.Code != 0 {
		return exit.Code
	}
	return 1
}

// startLogging installs the default slog logger. Flags win over the config
// file; cfg may be nil for commands that run without one.
func (o *rootOptions) startLogging(cfg *config.Config) error {
	lc := logging.DefaultConfig()
	if cfg != nil {
		if cfg.Logging.Level != "" {
			lc.Level = cfg.Logging.Level
		}
		if cfg.Logging.File != "" {
			lc.FilePath = cfg.Logging.File
		}
	}
	if o.debug {
		lc.Level = "debug"
		lc.WriteToStderr = true
	}
	if o.logLevel != "" {
		lc.Level = o.logLevel
	}
	if o.logFile != "" {
		lc.FilePath = o.logFile
	}

	logger, cleanup, err := logging.Setup(lc)
	if err != nil {
		return errors.New(errors.ErrCodeFilePermission, "failed to set up logging", err).
			At(lc.FilePath, 0)
	}
	o.stopLogging()
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("logging_started",
		slog.String("log_file", lc.FilePath),
		slog.String("level", lc.Level),
		slog.String("version", version.Version))
	return nil
}

func (o *rootOptions) stopLogging() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// colorEnabled reports whether w should get ANSI styling.
func (o *rootOptions) colorEnabled(w io.Writer) bool {
	return !o.noColor && !ui.DetectNoColor() && ui.IsTTY(w)
}

// workingDir returns the directory runs are resolved against.
func workingDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.IOError("cannot determine working directory", err)
	}
	return dir, nil
}
