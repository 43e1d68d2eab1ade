package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

func (a *app) newWorkoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workout",
		Short: "Run the active workout session",
		Long: "A session stages one workout result and one exercise result per exercise\n" +
			"of a workout. Staged results are edited in place and only stored as\n" +
			"permanent results when the session finishes.",
	}
	cmd.AddCommand(
		a.newWorkoutBeginCmd(),
		a.newWorkoutStatusCmd(),
		a.newWorkoutSetsCmd(),
		a.newWorkoutSetCmd(),
		a.newWorkoutFinishCmd(),
		a.newWorkoutDiscardCmd(),
	)
	return cmd
}

func (a *app) newWorkoutBeginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "begin <workout-id>",
		Short: "Start a session for a workout",
		Args:  exactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			aw, err := s.BeginWorkout(args[0])
			if err != nil {
				return fmt.Errorf("begin workout: %w", err)
			}
			log.WithField("workout", aw.Workout.ID).Info("workout begun")
			return a.emit(cmd, aw, func(w io.Writer) { printActiveWorkout(w, aw) })
		}),
	}
}

func (a *app) newWorkoutStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		Args:  exactArgs(0),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			aw, err := s.GetActiveWorkout()
			if err != nil {
				return fmt.Errorf("get active workout: %w", err)
			}
			return a.emit(cmd, aw, func(w io.Writer) { printActiveWorkout(w, aw) })
		}),
	}
}

func (a *app) newWorkoutSetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sets <exercise-id|result-id> <input> <values>",
		Short: "Record the set values of one staged exercise result",
		Long: "Sets replaces the values of one input of a staged exercise result.\n" +
			"Values are comma separated; \"-\" leaves a set empty. Inputs match by full\n" +
			"name or first word, case-insensitively (reps, weight, distance, ...).\n\n" +
			"Example:\n  repbook workout sets 0192... reps 5,5,-",
		Args: exactArgs(3),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			in, err := parseInput(args[1])
			if err != nil {
				return err
			}
			sets, err := parseSets(args[2])
			if err != nil {
				return err
			}
			aw, err := s.GetActiveWorkout()
			if err != nil {
				return fmt.Errorf("get active workout: %w", err)
			}
			if aw == nil {
				return fmt.Errorf("record sets: %w", types.ErrInconsistentActiveState)
			}
			r := stagedResult(aw, args[0])
			if r == nil {
				return fmt.Errorf("%w: no staged result for %s", types.ErrNotFound, args[0])
			}
			*r.Field(in) = sets
			if err := s.PutActiveRecord(r); err != nil {
				return fmt.Errorf("record sets: %w", err)
			}
			return a.emit(cmd, r, func(w io.Writer) { fmt.Fprintln(w, resultLine(r)) })
		}),
	}
}

func (a *app) newWorkoutSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <workout-results|exercise-results> <json|-|@file>",
		Short: "Replace a staged result",
		Args:  exactArgs(2),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			t, err := parseTable(args[0])
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
			if err := s.PutActiveRecord(r); err != nil {
				return fmt.Errorf("stage %s record: %w", t, err)
			}
			return writeJSON(cmd.OutOrStdout(), r)
		}),
	}
}

func (a *app) newWorkoutFinishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "Validate and store the session results",
		Long: "Finish validates every staged result. When all pass they are stored as\n" +
			"permanent results and the session ends; otherwise the session is kept\n" +
			"and every failure is reported.",
		Args: exactArgs(0),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			wr, err := s.FinishWorkout()
			if err != nil {
				return fmt.Errorf("finish workout: %w", err)
			}
			log.WithField("workout_result", wr.ID).Info("workout finished")
			return a.emit(cmd, wr, func(w io.Writer) {
				okStyle.Fprintf(w, "Finished workout %s at %s\n", wr.ParentID, formatMillis(*wr.FinishedTimestamp))
			})
		}),
	}
}

func (a *app) newWorkoutDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "End the session without storing results",
		Args:  exactArgs(0),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			if err := s.DiscardWorkout(); err != nil {
				return fmt.Errorf("discard workout: %w", err)
			}
			warnStyle.Fprintln(cmd.OutOrStdout(), "Discarded active workout")
			return nil
		}),
	}
}

// stagedResult finds the staged exercise result with the given result id or,
// failing that, the first one for the given exercise id.
func stagedResult(aw *types.ActiveWorkout, id string) *types.ExerciseResult {
	for _, r := range aw.ExerciseResults {
		if r.ID == id {
			return r
		}
	}
	for _, r := range aw.ExerciseResults {
		if r.ParentID == id {
			return r
		}
	}
	return nil
}

// parseInput matches an exercise input by full name or first word.
func parseInput(s string) (types.ExerciseInput, error) {
	for _, in := range types.ExerciseInputs {
		name := string(in)
		first, _, _ := strings.Cut(name, " ")
		if strings.EqualFold(name, s) || strings.EqualFold(first, s) {
			return in, nil
		}
	}
	return "", usageError("unknown exercise input %q", s)
}

func parseSets(s string) ([]*float64, error) {
	parts := strings.Split(s, ",")
	sets := make([]*float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "-" || p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, usageError("set %d: %q is not a number", i+1, p)
		}
		sets[i] = &v
	}
	return sets, nil
}

func printActiveWorkout(w io.Writer, aw *types.ActiveWorkout) {
	if aw == nil {
		fmt.Fprintln(w, "No active workout")
		return
	}
	fmt.Fprintf(w, "Workout: %s (%s)\n", aw.Workout.Name, aw.Workout.ID)
	faintStyle.Fprintf(w, "Started: %s\n", formatMillis(aw.WorkoutResult.CreatedTimestamp))
	names := make(map[string]string, len(aw.Exercises))
	for _, e := range aw.Exercises {
		names[e.ID] = e.Name
	}
	for _, r := range aw.ExerciseResults {
		fmt.Fprintf(w, "  %s: %s\n", names[r.ParentID], resultLine(r))
	}
}
