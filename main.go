package main

import "github.com/agentic-research/ggpk/cmd"

func main() {
	cmd.Execute()
}
