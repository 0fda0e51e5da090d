// Package cmd implements the ggpk command line: one-shot inspection and
// extraction commands over GGPK archives and DAT table files.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ggpk/internal/ggpk"
)

var rootCmd = &cobra.Command{
	Use:   "ggpk",
	Short: "Read-only explorer for GGPK archives and DAT data tables",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// openArchive opens an archive for a command, wrapping failures with the
// archive path.
func openArchive(path string) (*ggpk.Archive, error) {
	a, err := ggpk.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load archive %s: %w", path, err)
	}
	return a, nil
}
