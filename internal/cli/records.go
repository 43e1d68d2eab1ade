package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

const tableHelp = "Tables: workouts, exercises, measurements, workout-results,\n" +
	"exercise-results, measurement-results."

// recordTable resolves a table argument to its RecordTable.
func recordTable(s *store, name string) (types.Table, types.RecordTable, error) {
	t, err := parseTable(name)
	if err != nil {
		return "", nil, err
	}
	tbl, err := s.GetTable(t)
	if err != nil {
		return "", nil, fmt.Errorf("get table: %w", err)
	}
	return t, tbl, nil
}

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Get a record by ID",
		Long:  "Get prints the record with the given ID as JSON.\n\n" + tableHelp,
		Args:  exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			_, tbl, err := recordTable(s, args[0])
			if err != nil {
				return err
			}
			r, err := tbl.Get(args[1])
			if err != nil {
				return fmt.Errorf("get %s: %w", args[1], err)
			}
			return writeJSON(cmd.OutOrStdout(), r)
		}),
	}
}

func (a *app) newListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list <table>",
		Short: "List the records of a table",
		Long: "List prints the list view of a table: parents by name without those in the\n" +
			"active workout, children newest first. --all prints every record in\n" +
			"insertion order.\n\n" + tableHelp,
		Args: exactArgs(1),
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every record in insertion order")
	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
		t, tbl, err := recordTable(s, args[0])
		if err != nil {
			return err
		}
		var records []types.Record
		if all {
			records, err = tbl.GetAll()
		} else {
			records, err = s.ListView(t)
		}
		if err != nil {
			return fmt.Errorf("list %s: %w", t, err)
		}
		return emitRecords(a, cmd, records)
	})
	return cmd
}

func (a *app) newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <table> <json|-|@file>",
		Short: "Add a new record",
		Long: "Add fills a new record with a fresh ID, the current time and default\n" +
			"values, overlays the given JSON and inserts it.\n\n" + tableHelp,
		Args: exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, tbl, err := recordTable(s, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[1])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			r, err := types.NewDefaultRecord(t)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, r); err != nil {
				return fmt.Errorf("%w: parse JSON: %v", types.ErrInvalidData, err)
			}
			if err := tbl.Add(r); err != nil {
				return fmt.Errorf("add %s record: %w", t, err)
			}
			log.WithFields(log.Fields{"table": t, "id": r.Base().ID}).Debug("record added")
			return writeJSON(cmd.OutOrStdout(), r)
		}),
	}
}

func (a *app) newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <table> <json|-|@file>",
		Short: "Insert or replace a record",
		Long:  "Put validates the given record and inserts or replaces it.\n\n" + tableHelp,
		Args:  exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, tbl, err := recordTable(s, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[1])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			r, err := types.DecodeRecord(t, data)
			if err != nil {
				return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
			}
			if err := tbl.Put(r); err != nil {
				return fmt.Errorf("put %s record: %w", t, err)
			}
			return writeJSON(cmd.OutOrStdout(), r)
		}),
	}
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete a record",
		Long: "Delete removes a record. Deleting a parent also deletes its children.\n" +
			"Records taking part in the active workout cannot be deleted.\n\n" + tableHelp,
		Args: exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, tbl, err := recordTable(s, args[0])
			if err != nil {
				return err
			}
			if err := tbl.Delete(args[1]); err != nil {
				return fmt.Errorf("delete %s: %w", args[1], err)
			}
			result := map[string]string{"deleted": args[1], "table": string(t)}
			return a.emit(cmd, result, func(w io.Writer) {
				warnStyle.Fprintf(w, "Deleted %s: %s\n", t.Label(types.LabelSingular), args[1])
			})
		}),
	}
}

func (a *app) newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <table|all>",
		Short: "Remove every record of a table",
		Long: "Clear empties a table. Clearing a parent table also clears its results;\n" +
			"\"all\" clears every table, the settings and the logs.\n\n" + tableHelp,
		Args: exactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			if args[0] == "all" {
				if err := s.ClearAll(); err != nil {
					return fmt.Errorf("clear all: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared all data")
				return nil
			}
			t, err := parseTable(args[0])
			if err != nil {
				return err
			}
			if err := s.ClearTable(t); err != nil {
				return fmt.Errorf("clear %s: %w", t, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", t)
			return nil
		}),
	}
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <table> <file|->",
		Short: "Import a JSON array of records",
		Long: "Import validates each record on its own, stores the valid ones and reports\n" +
			"the IDs of the records it skipped.\n\n" + tableHelp,
		Args: exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, tbl, err := recordTable(s, args[0])
			if err != nil {
				return err
			}
			src := args[1]
			if src != "-" {
				src = "@" + src
			}
			data, err := readInput(cmd, src)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			var raw []json.RawMessage
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("%w: expected a JSON array: %v", types.ErrInvalidData, err)
			}
			records := make([]types.Record, 0, len(raw))
			for i, item := range raw {
				r, err := types.DecodeRecord(t, item)
				if err != nil {
					return fmt.Errorf("%w: record %d: %v", types.ErrInvalidData, i, err)
				}
				records = append(records, r)
			}

			err = tbl.Import(records)
			var partial *types.PartialImportError
			switch {
			case errors.As(err, &partial):
				log.WithFields(log.Fields{"table": t, "skipped": partial.Skipped}).Warn("import skipped records")
				imported := len(records) - partial.Skipped
				warnStyle.Fprintf(cmd.OutOrStdout(), "Imported %d %s, skipped %d\n", imported, t, partial.Skipped)
				return err
			case err != nil:
				return fmt.Errorf("import %s: %w", t, err)
			}
			result := map[string]any{"table": t, "imported": len(records)}
			return a.emit(cmd, result, func(w io.Writer) {
				okStyle.Fprintf(w, "Imported %d %s\n", len(records), t)
			})
		}),
	}
}

func (a *app) newFavoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <table> <id>",
		Short: "Toggle the favorite flag of a workout, exercise or measurement",
		Args:  exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, err := parseParentTable(args[0])
			if err != nil {
				return err
			}
			if err := s.ToggleFavorite(t, args[1]); err != nil {
				return fmt.Errorf("toggle favorite: %w", err)
			}
			tbl, err := s.GetTable(t)
			if err != nil {
				return err
			}
			r, err := tbl.Get(args[1])
			if err != nil {
				return fmt.Errorf("get %s: %w", args[1], err)
			}
			return emitRecords(a, cmd, []types.Record{r})
		}),
	}
}

func (a *app) newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <workouts|exercises|measurements>",
		Short: "Show enabled parents with active and favorite ones first",
		Args:  exactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, err := parseParentTable(args[0])
			if err != nil {
				return err
			}
			view, err := s.DashboardView(t)
			if err != nil {
				return fmt.Errorf("dashboard %s: %w", t, err)
			}
			return emitRecords(a, cmd, view)
		}),
	}
}

func (a *app) newOptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options <workouts|exercises|measurements|exercise-results>",
		Short: "List picker options",
		Args:  exactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, err := parseTable(args[0])
			if err != nil {
				return err
			}
			var options []types.Option
			switch {
			case t == types.ExerciseResultsTable:
				options, err = s.ExerciseResultOptions()
			case t.IsParent():
				options, err = s.OptionList(t)
			default:
				return usageError("no options for %s", t)
			}
			if err != nil {
				return fmt.Errorf("options %s: %w", t, err)
			}
			return a.emit(cmd, options, func(w io.Writer) {
				for _, o := range options {
					line := o.Value + "  " + o.Label
					if o.Disabled {
						line += "  [disabled]"
					}
					fmt.Fprintln(w, line)
				}
			})
		}),
	}
}

func (a *app) newChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children <result-table> <parent-id>",
		Short: "List the results of one parent, oldest first",
		Args:  exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, err := parseTable(args[0])
			if err != nil {
				return err
			}
			children, err := s.GetSortedChildren(t, args[1])
			if err != nil {
				return fmt.Errorf("children of %s: %w", args[1], err)
			}
			return emitRecords(a, cmd, children)
		}),
	}
}

func (a *app) newHistoryCmd() *cobra.Command {
	var last bool
	cmd := &cobra.Command{
		Use:   "history <exercise-id>",
		Short: "Show the previous results of an exercise",
		Long: "History prints the recorded results of an exercise, newest first.\n" +
			"--last prints only the cached latest result.",
		Args: exactArgs(1),
	}
	cmd.Flags().BoolVar(&last, "last", false, "print only the latest result")
	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
		if last {
			c, err := s.GetLastChild(types.ExercisesTable, args[0])
			if err != nil {
				return fmt.Errorf("latest result of %s: %w", args[0], err)
			}
			if c == nil {
				return a.emit(cmd, nil, func(w io.Writer) { fmt.Fprintln(w, "No results") })
			}
			return writeJSON(cmd.OutOrStdout(), c)
		}
		results, err := s.PreviousResultsFor(args[0])
		if err != nil {
			return fmt.Errorf("history of %s: %w", args[0], err)
		}
		return a.emit(cmd, results, func(w io.Writer) {
			for _, r := range results {
				fmt.Fprintln(w, resultLine(r))
			}
		})
	})
	return cmd
}

// resultLine summarizes an exercise result with its recorded sets.
func resultLine(r *types.ExerciseResult) string {
	line := fmt.Sprintf("%s  %s", r.ID, formatMillis(r.CreatedTimestamp))
	for _, in := range r.RecordedInputs() {
		line += fmt.Sprintf("  %s=%s", in, formatSets(*r.Field(in)))
	}
	if r.Note != "" {
		line += "  " + r.Note
	}
	return line
}

func formatSets(sets []*float64) string {
	out := ""
	for i, v := range sets {
		if i > 0 {
			out += ","
		}
		if v == nil {
			out += "-"
			continue
		}
		out += fmt.Sprintf("%g", *v)
	}
	return out
}
