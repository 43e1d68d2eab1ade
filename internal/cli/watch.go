package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/repbook/internal/live"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

func (a *app) newWatchCmd() *cobra.Command {
	var (
		dashboard bool
		count     int
	)
	cmd := &cobra.Command{
		Use:   "watch <table|session|settings|logs>",
		Short: "Print a view again every time it changes",
		Long: "Watch prints the list view of a table, the active workout, the settings\n" +
			"or the logs, then prints it again after every change until interrupted.\n\n" + tableHelp,
		Args: exactArgs(1),
	}
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "watch the dashboard view of a parent table")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many updates (0 watches until interrupted)")
	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		switch args[0] {
		case types.SessionTable:
			ch, err := s.LiveActiveWorkout(ctx)
			if err != nil {
				return err
			}
			return follow(a, cmd, stop, ch, count, printActiveWorkout)
		case types.SettingsTable:
			ch, err := s.LiveSettings(ctx)
			if err != nil {
				return err
			}
			return follow(a, cmd, stop, ch, count, printSettings)
		case types.LogsTable:
			ch, err := s.LiveLogs(ctx)
			if err != nil {
				return err
			}
			return follow(a, cmd, stop, ch, count, printLogs)
		}

		if dashboard {
			t, err := parseParentTable(args[0])
			if err != nil {
				return err
			}
			ch, err := s.LiveDashboard(ctx, t)
			if err != nil {
				return err
			}
			return follow(a, cmd, stop, ch, count, printRecords[types.ParentRecord])
		}
		t, err := parseTable(args[0])
		if err != nil {
			return err
		}
		ch, err := s.LiveListView(ctx, t)
		if err != nil {
			return err
		}
		return follow(a, cmd, stop, ch, count, printRecords[types.Record])
	})
	return cmd
}

// follow prints every result from ch until it closes, a query fails, or
// count results have been printed. It drains ch after stopping so the
// watcher goroutine exits before the store detaches.
func follow[T any](a *app, cmd *cobra.Command, stop context.CancelFunc, ch <-chan live.Result[T], count int, text func(io.Writer, T)) error {
	defer func() {
		stop()
		for range ch {
		}
	}()
	w := cmd.OutOrStdout()
	n := 0
	for res := range ch {
		if res.Err != nil {
			return res.Err
		}
		if n > 0 && !a.flags.jsonMode {
			fmt.Fprintln(w, "---")
		}
		if a.flags.jsonMode {
			if err := writeJSON(w, res.Value); err != nil {
				return err
			}
		} else {
			text(w, res.Value)
		}
		n++
		if count > 0 && n >= count {
			return nil
		}
	}
	return nil
}

func printRecords[T types.Record](w io.Writer, records []T) {
	for _, r := range records {
		fmt.Fprintln(w, recordLine(r))
	}
}
