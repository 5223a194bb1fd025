package main

import (
	"github.com/a11yscope/a11yscope-cli/cmd"
)

// main is the entry point for the a11yscope CLI.
func main() {
	cmd.Execute()
}
