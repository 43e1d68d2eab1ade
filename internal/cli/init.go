package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize repbook storage",
		Long: "Create the configuration and data directories, write a default config.yaml\n" +
			"and seed the default settings.",
		Args: exactArgs(0),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			result := map[string]string{
				"config": a.configDir,
				"data":   s.DataDir(),
			}
			return a.emit(cmd, result, func(w io.Writer) {
				okStyle.Fprintln(w, "repbook initialized successfully")
				fmt.Fprintln(w, "  config:", a.configDir)
				fmt.Fprintln(w, "  data:  ", s.DataDir())
			})
		}),
	}
}
