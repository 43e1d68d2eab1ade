// Package cli implements the repbook command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// userErrors are the failures caused by the arguments rather than the
// environment; they exit with exitUserError.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidData,
	types.ErrTableNotFound,
	types.ErrAlreadyExists,
	types.ErrValidation,
	types.ErrPartialImport,
	types.ErrSessionAlreadyActive,
	types.ErrInconsistentActiveState,
	types.ErrRecordActivated,
	types.ErrInvalidSetting,
	errUsage,
}

var errUsage = errors.New("usage error")

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
	noColor   bool
	metrics   bool
}

// app carries the state shared by one command invocation.
type app struct {
	flags     rootFlags
	configDir string
	config    *viper.Viper
	logs      io.Closer
	store     *store

	// metricsOut receives the store metrics at detach when --metrics is set.
	metricsOut io.Writer
}

// NewRootCmd creates the top-level "repbook" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "repbook",
		Short: "A local workout and measurement log",
		Long: "repbook records workouts, exercises and body measurements in a local\n" +
			"data directory and tracks the workout currently in progress.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level (overrides config.yaml)")
	root.PersistentFlags().BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&a.flags.metrics, "metrics", false, "print store metrics to stderr when the command ends")

	root.AddCommand(
		a.newVersionCmd(),
		a.newInitCmd(),
		a.newGetCmd(),
		a.newListCmd(),
		a.newAddCmd(),
		a.newPutCmd(),
		a.newDeleteCmd(),
		a.newClearCmd(),
		a.newImportCmd(),
		a.newFavoriteCmd(),
		a.newDashboardCmd(),
		a.newOptionsCmd(),
		a.newChildrenCmd(),
		a.newHistoryCmd(),
		a.newWatchCmd(),
		a.newWorkoutCmd(),
		a.newBackupCmd(),
		a.newSettingsCmd(),
		a.newLogsCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "repbook:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// usageError marks err as caused by bad arguments.
func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
