// Package main provides the entry point for the kbi CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/kbi/cmd/kbi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
