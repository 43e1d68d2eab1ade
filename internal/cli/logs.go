package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

func (a *app) newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect the diagnostic log",
	}
	cmd.AddCommand(a.newLogsListCmd(), a.newLogsGetCmd(), a.newLogsPurgeCmd(), a.newLogsClearCmd())
	return cmd
}

func (a *app) newLogsListCmd() *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List log entries, newest first",
		Args:  exactArgs(0),
	}
	cmd.Flags().StringVar(&level, "level", "", "only show entries of this level")
	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
		logs, err := s.GetLogs()
		if err != nil {
			return fmt.Errorf("get logs: %w", err)
		}
		if level != "" {
			want, ok := types.ParseLogLevel(level)
			if !ok {
				return usageError("unknown log level %q", level)
			}
			kept := logs[:0]
			for _, l := range logs {
				if l.LogLevel == want {
					kept = append(kept, l)
				}
			}
			logs = kept
		}
		return a.emit(cmd, logs, func(w io.Writer) { printLogs(w, logs) })
	})
	return cmd
}

func (a *app) newLogsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <auto-id>",
		Short: "Print one log entry",
		Args:  exactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %q", types.ErrInvalidID, args[0])
			}
			l, err := s.GetLog(id)
			if err != nil {
				return fmt.Errorf("get log %d: %w", id, err)
			}
			return writeJSON(cmd.OutOrStdout(), l)
		}),
	}
}

func (a *app) newLogsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete entries older than the retention setting",
		Args:  exactArgs(0),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			n, err := s.PurgeLogs()
			if err != nil {
				return fmt.Errorf("purge logs: %w", err)
			}
			return a.emit(cmd, map[string]int{"purged": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Purged %d log entries\n", n)
			})
		}),
	}
}

func (a *app) newLogsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every log entry",
		Args:  exactArgs(0),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			if err := s.ClearLogs(); err != nil {
				return fmt.Errorf("clear logs: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logs cleared")
			return nil
		}),
	}
}

func printLogs(w io.Writer, logs []*types.Log) {
	for _, l := range logs {
		level := fmt.Sprintf("%-5s", l.LogLevel)
		switch l.LogLevel {
		case types.LogError:
			level = errorStyle.Sprint(level)
		case types.LogWarn:
			level = warnStyle.Sprint(level)
		case types.LogDebug:
			level = faintStyle.Sprint(level)
		}
		line := fmt.Sprintf("%d  %s  %s  %s", l.AutoID, formatMillis(l.Timestamp), level, l.Label)
		if l.ErrorMessage != "" {
			line += ": " + l.ErrorMessage
		}
		fmt.Fprintln(w, line)
	}
}
