package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ggpk/internal/ggpk"
)

var treeCmd = &cobra.Command{
	Use:   "tree <archive> [path]",
	Short: "Print the directory tree under a path",
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
		node, err := a.Resolve(path)
		if err != nil {
			return err
		}

		printTree(node, 0)
		return nil
	},
}

func printTree(node *ggpk.Node, indent int) {
	prefix := strings.Repeat(" ", indent)
	if node.Dir {
		name := node.Name
		if node.Parent == nil {
			name = "/"
		}
		fmt.Printf("%s[%s]\n", prefix, name)

		names := make([]string, 0, len(node.Children))
		for n := range node.Children {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			printTree(node.Children[n], indent+2)
		}
		return
	}
	fmt.Printf("%s%s\n", prefix, node.Name)
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
