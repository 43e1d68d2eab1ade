package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// Text-mode styles. fatih/color disables them when stdout is not a terminal
// or NO_COLOR is set.
var (
	okStyle    = color.New(color.FgGreen)
	warnStyle  = color.New(color.FgYellow)
	errorStyle = color.New(color.FgRed)
	faintStyle = color.New(color.Faint)
)

// validTableNames is a comma-separated list of table names for error output.
var validTableNames = func() string {
	names := make([]string, len(types.StandardTables))
	for i, t := range types.StandardTables {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}()

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// rangeArgs is cobra.RangeArgs reporting a usage error.
func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo || len(args) > hi {
			return usageError("%s accepts between %d and %d arg(s), received %d", cmd.CommandPath(), lo, hi, len(args))
		}
		return nil
	}
}

func parseTable(name string) (types.Table, error) {
	t, err := types.ParseTable(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q (valid: %s)", types.ErrTableNotFound, name, validTableNames)
	}
	return t, nil
}

func parseParentTable(name string) (types.Table, error) {
	t, err := parseTable(name)
	if err != nil {
		return "", err
	}
	if !t.IsParent() {
		return "", usageError("%s is not a workouts, exercises or measurements table", t)
	}
	return t, nil
}

// readInput returns arg itself, or the contents of stdin for "-", or the
// contents of the named file for "@path".
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	}
	return []byte(arg), nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// emit prints v as JSON in --json mode and through text otherwise.
func (a *app) emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	if a.flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), v)
	}
	text(cmd.OutOrStdout())
	return nil
}

// emitRecords prints one line per record, or a JSON array.
func emitRecords[T types.Record](a *app, cmd *cobra.Command, records []T) error {
	return a.emit(cmd, records, func(w io.Writer) { printRecords(w, records) })
}

// recordLine summarizes r on one line. Parents show their name and state
// markers; children show their parent, date and note.
func recordLine(r types.Record) string {
	b := r.Base()
	if p, ok := types.AsParent(r); ok {
		pb := p.ParentBase()
		var marks []string
		if b.Activated {
			marks = append(marks, "active")
		}
		if pb.Favorited {
			marks = append(marks, "favorite")
		}
		if !pb.Enabled {
			marks = append(marks, "disabled")
		}
		line := fmt.Sprintf("%s  %s", b.ID, pb.Name)
		if len(marks) > 0 {
			line += "  [" + strings.Join(marks, ",") + "]"
		}
		return line
	}
	line := fmt.Sprintf("%s  %s", b.ID, formatMillis(b.CreatedTimestamp))
	if c, ok := types.AsChild(r); ok {
		cb := c.ChildBase()
		line += "  parent=" + cb.ParentID
		if cb.Note != "" {
			line += "  " + cb.Note
		}
	}
	return line
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
