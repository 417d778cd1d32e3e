package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/kbi/configs"
	"github.com/Aman-CERP/kbi/internal/config"
	"github.com/Aman-CERP/kbi/internal/keywords"
	"github.com/Aman-CERP/kbi/internal/output"
)

func newSampleConfigCmd() *cobra.Command {
	var (
		force  bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "sample-config [path]",
		Short: "Write a commented sample config",
		Long: `Write the sample configuration to path (default kbi.yaml).

An existing file is left alone unless --force is given, in which case it is
first backed up to <path>.bak.<timestamp>.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout {
				_, err := fmt.Fprint(cmd.OutOrStdout(), configs.ConfigTemplate)
				return err
			}
			path := "kbi.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			return writeSampleConfig(output.New(cmd.OutOrStdout()), path, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file after backing it up")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the sample instead of writing a file")
	return cmd
}

func writeSampleConfig(out *output.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.Statusf("", "Backed up %s to %s", path, backup)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	out.Successf("Wrote %s", path)
	return nil
}

func newSampleKeywordsCmd() *cobra.Command {
	var stdout bool

	cmd := &cobra.Command{
		Use:   "sample-keywords [path]",
		Short: "Write an example keyword file",
		Long: `Write an example keyword file to path (default keywords.txt).

Keyword files are indented outlines. Lines with children are groups; leaf
lines are patterns whose ':' separated terms narrow the search scope from
left to right. An existing file is never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout {
				_, err := fmt.Fprint(cmd.OutOrStdout(), keywords.SampleContent())
				return err
			}
			path := "keywords.txt"
			if len(args) > 0 {
				path = args[0]
			}
			if err := keywords.WriteSample(path); err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			out.Successf("Wrote %s", path)
			out.Status("", "Add it to keywords.files in kbi.yaml or pass --keywords "+path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the sample instead of writing a file")
	return cmd
}
