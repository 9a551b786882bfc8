package main

import "github.com/agentic-research/vartree/cmd"

func main() {
	cmd.Execute()
}
