package main

import "github.com/agentic-research/agload/cmd"

func main() {
	cmd.Execute()
}
