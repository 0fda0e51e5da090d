package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var catOutput string

var catCmd = &cobra.Command{
	Use:   "cat <archive> <path>",
	Short: "Extract a file's payload to stdout or a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		node, err := a.Resolve(args[1])
		if err != nil {
			return err
		}
		sec, err := a.Section(node)
		if err != nil {
			return err
		}

		out := io.Writer(os.Stdout)
		if catOutput != "" {
			f, err := os.Create(catOutput)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		if _, err := io.Copy(out, sec); err != nil {
			return fmt.Errorf("extract %s: %w", args[1], err)
		}
		return nil
	},
}

func init() {
	catCmd.Flags().StringVarP(&catOutput, "output", "o", "", "Write the payload to a file instead of stdout")
	rootCmd.AddCommand(catCmd)
}
