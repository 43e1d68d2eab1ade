package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/repbook"

// Version is the release version, set at build time with -ldflags.
var Version = "0.1.0"

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the repbook version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "repbook v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
