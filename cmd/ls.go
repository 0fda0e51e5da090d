package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <archive> [path]",
	Short: "List a directory inside an archive",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		path := "/"
		if len(args) == 2 {
			path = args[1]
		}

		entries, err := a.List(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Dir {
				fmt.Printf("%s/\n", e.Name)
			} else {
				fmt.Println(e.Name)
			}
		}
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size <archive> <path>",
	Short: "Print a file's payload length in bytes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		size, err := a.Size(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bytes\n", args[1], size)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(sizeCmd)
}
