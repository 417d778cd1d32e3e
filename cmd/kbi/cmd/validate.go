package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/errors"
	"github.com/Aman-CERP/kbi/internal/keywords"
	"github.com/Aman-CERP/kbi/internal/output"
	"github.com/Aman-CERP/kbi/internal/search"
)

func newValidateKeywordsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-keywords [file...]",
		Short: "Check keyword files without indexing",
		Long: `Parse keyword files the way an index run does and report every problem.

Without arguments the files listed in keywords.files are checked. Exits with
status 1 if any file has an indentation error, a term that does not compile,
or cannot be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := workingDir()
			if err != nil {
				return err
			}
			cfg, err := config.Load(dir, root.configPath)
			if err != nil {
				return err
			}
			files := args
			if len(files) == 0 {
				files = cfg.Keywords.Files
			}
			if len(files) == 0 {
				return errors.New(errors.ErrCodeInvalidInput, "no keyword files to validate", nil).
					WithSuggestion("Pass files as arguments or set keywords.files in the config")
			}

			stdout := cmd.OutOrStdout()
			out := output.NewWithColor(stdout, root.colorEnabled(stdout))
			failed, err := validateKeywordFiles(out, cfg, files)
			if err != nil {
				return err
			}
			if failed {
				return &ExitError{Code: 1, Reason: "keyword files have errors"}
			}
			return nil
		},
	}
}

// validateKeywordFiles reports on each file and returns true if any has a
// problem that would change an index run.
func validateKeywordFiles(out *output.Writer, cfg *config.Config, files []string) (bool, error) {
	compiler, err := search.NewRegexCompiler(
		search.WithWholeWord(cfg.Search.WholeWord),
		search.WithCacheSize(cfg.Search.RegexCacheSize))
	if err != nil {
		return false, errors.InternalError("cannot create pattern compiler", err)
	}
	opts := keywords.Options{IndentWidth: cfg.Keywords.IndentWidth, Compile: compiler.Check}

	diags := errors.NewCollector()
	failed := false
	for _, file := range files {
		tree, warnings, err := keywords.ParseFile(file, opts)
		if err != nil {
			diags.Add(err)
			failed = true
			continue
		}
		diags.AddAll(warnings)
		diags.AddAll(keywords.Validate(tree))
		for _, w := range warnings {
			if w.Code == errors.ErrCodePatternCompile {
				failed = true
			}
		}
		out.Successf("%s: %s", file, patternSummary(tree))
	}

	out.Diagnostics(diags.Items())
	return failed, nil
}

func patternSummary(t *keywords.Tree) string {
	groups := 0
	t.Walk(func(e *keywords.Entry) bool {
		if !e.IsLeaf() {
			groups++
		}
		return true
	})
	return fmt.Sprintf("%d patterns in %d groups", t.PatternCount(), groups)
}
