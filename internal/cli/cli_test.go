package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/repbook/internal/paths"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

func TestMain(m *testing.M) {
	// The watch command's signal handler starts the runtime's signal loop,
	// which lives for the rest of the process.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("os/signal.signal_recv"),
		goleak.IgnoreTopFunction("os/signal.loop"),
	)
}

type testEnv struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	return &testEnv{
		t:         t,
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

// run executes the CLI with args against the environment's directories and
// returns stdout.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runWithInput("", args...)
}

func (e *testEnv) runWithInput(stdin string, args ...string) (string, error) {
	e.t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "repbook %s", strings.Join(args, " "))
	return out
}

// addRecord adds a record and decodes the printed result into v.
func (e *testEnv) addRecord(table, payload string, v any) {
	e.t.Helper()
	out := e.mustRun("add", table, payload)
	require.NoError(e.t, json.Unmarshal([]byte(out), v), out)
}

func (e *testEnv) addExercise(name string, inputs ...types.ExerciseInput) *types.Exercise {
	e.t.Helper()
	payload, err := json.Marshal(map[string]any{"name": name, "exerciseInputs": inputs})
	require.NoError(e.t, err)
	var ex types.Exercise
	e.addRecord(string(types.ExercisesTable), string(payload), &ex)
	return &ex
}

func TestVersion(t *testing.T) {
	out := newTestEnv(t).mustRun("version")
	assert.Contains(t, out, "repbook v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	e := newTestEnv(t)
	out := e.mustRun("init")
	assert.Contains(t, out, "repbook initialized successfully")

	assert.FileExists(t, filepath.Join(e.configDir, paths.ConfigFileName))
	assert.DirExists(t, e.dataDir)
	assert.FileExists(t, filepath.Join(e.dataDir, types.SettingsTable+".jsonl"))

	// Idempotent.
	e.mustRun("init")
}

func TestInit_ConfigDataDir(t *testing.T) {
	e := newTestEnv(t)
	t.Setenv(paths.EnvDataDir, "")
	custom := filepath.Join(t.TempDir(), "from-config")
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	cfg := fmt.Sprintf("backend: sqlite\ndata_dir: %s\n", custom)
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, paths.ConfigFileName), []byte(cfg), 0o644))

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config-dir", e.configDir, "--json", "init"})
	require.NoError(t, cmd.Execute())

	var result map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, custom, result["data"])
}

func TestInit_BadSyncStrategy(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, paths.ConfigFileName), []byte("sync_strategy: sometimes\n"), 0o644))

	_, err := e.run("init")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestRecordCommands(t *testing.T) {
	e := newTestEnv(t)
	squat := e.addExercise("Squat", types.InputReps)
	assert.NotEmpty(t, squat.ID)
	assert.True(t, squat.Enabled, "defaults fill missing fields")
	e.addExercise("Bench", types.InputReps)

	out := e.mustRun("list", "exercises")
	assert.Equal(t, []string{"Bench", "Squat"}, lineNames(out))

	out = e.mustRun("get", "exercises", squat.ID)
	var got types.Exercise
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Squat", got.Name)

	out = e.mustRun("favorite", "exercises", squat.ID)
	assert.Contains(t, out, "[favorite]")

	out = e.mustRun("dashboard", "exercises")
	assert.Equal(t, []string{"Squat", "Bench"}, lineNames(out), "favorites first")

	got.Desc = "low bar"
	payload, err := json.Marshal(&got)
	require.NoError(t, err)
	_, err = e.runWithInput(string(payload), "put", "exercises", "-")
	require.NoError(t, err)
	out = e.mustRun("get", "exercises", squat.ID)
	assert.Contains(t, out, "low bar")

	out = e.mustRun("delete", "exercises", squat.ID)
	assert.Contains(t, out, squat.ID)

	_, err = e.run("get", "exercises", squat.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, exitUserError, exitCode(err))
}

// lineNames returns the second column of record lines.
func lineNames(out string) []string {
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, "  ")
		if len(fields) > 1 {
			names = append(names, fields[1])
		}
	}
	return names
}

func TestRecordCommands_Errors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "unknown table", args: []string{"list", "routines"}, want: types.ErrTableNotFound},
		{name: "invalid record", args: []string{"add", "exercises", `{"name":""}`}, want: types.ErrValidation},
		{name: "bad JSON", args: []string{"add", "exercises", `{`}, want: types.ErrInvalidData},
		{name: "wrong arg count", args: []string{"get", "exercises"}, want: errUsage},
		{name: "dashboard of child table", args: []string{"dashboard", "exercise-results"}, want: errUsage},
		{name: "finish without session", args: []string{"workout", "finish"}, want: types.ErrInconsistentActiveState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(tt.args...)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, exitUserError, exitCode(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitUserError, exitCode(fmt.Errorf("get: %w", types.ErrNotFound)))
	assert.Equal(t, exitUserError, exitCode(usageError("bad")))
	assert.Equal(t, exitSysError, exitCode(errors.New("disk on fire")))
}

func TestWorkoutSession(t *testing.T) {
	e := newTestEnv(t)
	squat := e.addExercise("Squat", types.InputReps, types.InputWeightLbs)
	var w types.Workout
	e.addRecord("workouts", fmt.Sprintf(`{"name":"Legs","exerciseIds":[%q]}`, squat.ID), &w)

	out := e.mustRun("workout", "begin", w.ID)
	assert.Contains(t, out, "Workout: Legs")

	out = e.mustRun("list", "workouts")
	assert.Empty(t, strings.TrimSpace(out), "active workouts are hidden from the list view")

	_, err := e.run("workout", "finish")
	assert.ErrorIs(t, err, types.ErrValidation, "unfilled sets")

	e.mustRun("workout", "sets", squat.ID, "reps", "5,5")
	out = e.mustRun("workout", "sets", squat.ID, "weight", "135,145")
	assert.Contains(t, out, "Reps=5,5")

	out = e.mustRun("workout", "finish")
	assert.Contains(t, out, "Finished workout "+w.ID)

	out = e.mustRun("workout", "status")
	assert.Contains(t, out, "No active workout")

	out = e.mustRun("history", squat.ID)
	assert.Contains(t, out, "Weight (lbs)=135,145")

	out = e.mustRun("--json", "history", "--last", squat.ID)
	var last types.ExerciseResult
	require.NoError(t, json.Unmarshal([]byte(out), &last))
	assert.Equal(t, squat.ID, last.ParentID)

	out = e.mustRun("children", "workout-results", w.ID)
	assert.Contains(t, out, "parent="+w.ID)
}

func TestWorkoutDiscard(t *testing.T) {
	e := newTestEnv(t)
	row := e.addExercise("Row", types.InputDistance)
	var w types.Workout
	e.addRecord("workouts", fmt.Sprintf(`{"name":"Cardio","exerciseIds":[%q]}`, row.ID), &w)

	e.mustRun("workout", "begin", w.ID)
	_, err := e.run("workout", "begin", w.ID)
	assert.ErrorIs(t, err, types.ErrSessionAlreadyActive)
	_, err = e.run("delete", "exercises", row.ID)
	assert.ErrorIs(t, err, types.ErrRecordActivated)

	e.mustRun("workout", "discard")
	out := e.mustRun("--json", "workout", "status")
	assert.Equal(t, "null", strings.TrimSpace(out))
}

func TestImportReportsSkipped(t *testing.T) {
	e := newTestEnv(t)
	ex := e.addExercise("Plank", types.InputDuration)
	file := filepath.Join(t.TempDir(), "results.json")
	content := fmt.Sprintf(`[
  {"id":"ok","createdTimestamp":1700000000000,"parentId":%q,"durationMinutes":[1.5]},
  {"id":"orphan","createdTimestamp":1700000000000,"parentId":"nobody","durationMinutes":[2]}
]`, ex.ID)
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	out, err := e.run("import", "exercise-results", file)
	assert.ErrorIs(t, err, types.ErrPartialImport)
	assert.Contains(t, out, "Imported 1 exercise-results, skipped 1")

	// The warning reached the log table through the store hook.
	out = e.mustRun("logs", "list", "--level", "warn")
	assert.Contains(t, out, "import skipped records")
}

func TestBackupRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	src.addExercise("Deadlift", types.InputReps, types.InputWeightLbs)
	src.mustRun("settings", "set", string(types.SettingDarkMode), "false")
	file := filepath.Join(t.TempDir(), "backup.json")
	src.mustRun("backup", "export", file)

	dst := newTestEnv(t)
	out := dst.mustRun("backup", "restore", file)
	assert.Contains(t, out, "Backup restored")

	out = dst.mustRun("list", "exercises")
	assert.Equal(t, []string{"Deadlift"}, lineNames(out))
	out = dst.mustRun("settings", "get", string(types.SettingDarkMode))
	assert.Contains(t, out, "dark-mode = false")

	_, err := dst.runWithInput(`{"appName":"Something Else"}`, "backup", "restore", "-")
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestSettingsCommands(t *testing.T) {
	e := newTestEnv(t)

	out := e.mustRun("settings", "list")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), len(types.SettingKeys))
	assert.Contains(t, out, "log-retention-duration = Three Months")
	assert.Contains(t, out, "user-height-inches = (unset)")

	out = e.mustRun("settings", "set", string(types.SettingLogRetentionDuration), "One Week")
	assert.Contains(t, out, "= One Week")
	e.mustRun("settings", "set", string(types.SettingUserHeightInches), "70")

	_, err := e.run("settings", "set", string(types.SettingDarkMode), "maybe")
	assert.ErrorIs(t, err, types.ErrInvalidSetting)
	_, err = e.run("settings", "get", "theme")
	assert.ErrorIs(t, err, types.ErrNotFound)

	e.mustRun("settings", "reset")
	out = e.mustRun("--json", "settings", "get", string(types.SettingUserHeightInches))
	var s types.Setting
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Nil(t, s.Value)
}

func TestLogsCommands(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run("settings", "set", string(types.SettingDarkMode), "maybe")
	require.Error(t, err)

	out := e.mustRun("--json", "logs", "purge")
	assert.JSONEq(t, `{"purged":0}`, out)

	_, err = e.run("logs", "get", "abc")
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = e.run("logs", "list", "--level", "loud")
	assert.ErrorIs(t, err, errUsage)

	e.mustRun("logs", "clear")
	out = e.mustRun("--json", "logs", "list")
	assert.JSONEq(t, `[]`, out)
}

func TestOptionsAndWatch(t *testing.T) {
	e := newTestEnv(t)
	ex := e.addExercise("Pull Up", types.InputReps)

	out := e.mustRun("options", "exercises")
	assert.Contains(t, out, ex.ID+"  Pull Up ("+ex.ID[:8]+"*)")

	out = e.mustRun("watch", "exercises", "--count", "1")
	assert.Equal(t, []string{"Pull Up"}, lineNames(out))

	out = e.mustRun("watch", "session", "--count", "1")
	assert.Contains(t, out, "No active workout")

	_, err := e.run("options", "workout-results")
	assert.ErrorIs(t, err, errUsage)
}

func TestClearAll(t *testing.T) {
	e := newTestEnv(t)
	e.addExercise("Lunge", types.InputReps)

	e.mustRun("clear", "exercises")
	assert.Empty(t, strings.TrimSpace(e.mustRun("list", "exercises")))

	e.addExercise("Lunge", types.InputReps)
	e.mustRun("clear", "all")
	assert.Empty(t, strings.TrimSpace(e.mustRun("list", "--all", "exercises")))
}

func TestParseSets(t *testing.T) {
	tests := []struct {
		in      string
		want    []*float64
		wantErr bool
	}{
		{in: "5", want: []*float64{ptr(5)}},
		{in: "5, 7.5,-", want: []*float64{ptr(5), ptr(7.5), nil}},
		{in: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSets(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestParseInput(t *testing.T) {
	for arg, want := range map[string]types.ExerciseInput{
		"reps":             types.InputReps,
		"Weight":           types.InputWeightLbs,
		"distance (miles)": types.InputDistance,
		"calories":         types.InputCalories,
	} {
		got, err := parseInput(arg)
		require.NoError(t, err, arg)
		assert.Equal(t, want, got, arg)
	}
	_, err := parseInput("tempo")
	assert.ErrorIs(t, err, errUsage)
}

func TestMetricsFlag(t *testing.T) {
	e := newTestEnv(t)
	e.addExercise("Squat", types.InputReps)

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir, "--metrics",
		"add", string(types.ExercisesTable), `{"name":"Bench","exerciseInputs":["Reps"]}`})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "# TYPE repbook_cli_record_writes counter")
	assert.Contains(t, errOut.String(), `repbook_cli_record_writes{op="add",table="exercises"} 1`)

	// Without the flag nothing is written.
	cmd = NewRootCmd()
	errOut.Reset()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir, "list", string(types.ExercisesTable)})
	require.NoError(t, cmd.Execute())
	assert.NotContains(t, errOut.String(), "repbook_cli_")
}
