package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version.
// Intended to be set at build time using ldflags, e.g.
// go build -ldflags "-X github.com/a11yscope/a11yscope-cli/cmd.Version=1.0.0"
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the a11yscope version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}
