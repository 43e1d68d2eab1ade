// Tests for backend lifecycle and JSONL sync strategies.
package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// baseTime is the creation time fixtures count from.
const baseTime int64 = 1_700_000_000_000

// setupBackend attaches a backend to a fresh data directory and detaches it
// when the test ends.
func setupBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	return attachAt(t, t.TempDir(), nil, opts...)
}

func attachAt(t *testing.T, dir string, sc *types.SQLiteConfig, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(opts...)
	require.NoError(t, b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      dir,
		SQLiteConfig: sc,
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func f(v float64) *float64 { return &v }

func recordTable(t *testing.T, b *Backend, name types.Table) types.RecordTable {
	t.Helper()
	tbl, err := b.GetTable(name)
	require.NoError(t, err)
	return tbl
}

func addExercise(t *testing.T, b *Backend, name string, inputs ...types.ExerciseInput) *types.Exercise {
	t.Helper()
	r, err := types.NewDefaultRecord(types.ExercisesTable)
	require.NoError(t, err)
	ex := r.(*types.Exercise)
	ex.Name = name
	ex.ExerciseInputs = inputs
	require.NoError(t, recordTable(t, b, types.ExercisesTable).Add(ex))
	return ex
}

func addWorkout(t *testing.T, b *Backend, name string, exerciseIDs ...string) *types.Workout {
	t.Helper()
	r, err := types.NewDefaultRecord(types.WorkoutsTable)
	require.NoError(t, err)
	w := r.(*types.Workout)
	w.Name = name
	w.ExerciseIDs = exerciseIDs
	require.NoError(t, recordTable(t, b, types.WorkoutsTable).Add(w))
	return w
}

func addMeasurement(t *testing.T, b *Backend, name string, in types.MeasurementInput) *types.Measurement {
	t.Helper()
	r, err := types.NewDefaultRecord(types.MeasurementsTable)
	require.NoError(t, err)
	m := r.(*types.Measurement)
	m.Name = name
	m.MeasurementInput = in
	require.NoError(t, recordTable(t, b, types.MeasurementsTable).Add(m))
	return m
}

func repsResult(parentID string, created int64, reps ...float64) *types.ExerciseResult {
	return &types.ExerciseResult{
		Child: types.Child{
			Entity:   types.Entity{ID: types.NewID(), CreatedTimestamp: created},
			ParentID: parentID,
		},
		Reps: types.Sets(reps...),
	}
}

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := attachAt(t, dir, nil)

	assert.FileExists(t, filepath.Join(dir, dbFileName))
	for _, name := range jsonlTables() {
		assert.FileExists(t, jsonlFile(dir, name))
	}
	assert.Equal(t, dir, b.DataDir())

	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	assert.ErrorIs(t, err, types.ErrAlreadyAttached)
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{DataDir: t.TempDir()}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "indexeddb", DataDir: t.TempDir()}), types.ErrBackendUnknown)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "Detach is idempotent")

	_, err := b.GetTable(types.WorkoutsTable)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.GetActiveWorkout()
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	assert.ErrorIs(t, b.Flush(), types.ErrStoreDetached)
}

func TestBackend_GetTable(t *testing.T) {
	b := setupBackend(t)

	for _, name := range types.StandardTables {
		tbl, err := b.GetTable(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, tbl.(*Table).Name())
	}

	_, err := b.GetTable("unknown")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
	_, err = b.GetTable(types.Table(types.SettingsTable))
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestBackend_SeedsDefaultSettings(t *testing.T) {
	dir := t.TempDir()
	b := attachAt(t, dir, nil)

	settings, err := b.GetSettings()
	require.NoError(t, err)
	assert.Len(t, settings, len(types.SettingKeys))

	lines, err := readJSONL(jsonlFile(dir, types.SettingsTable))
	require.NoError(t, err)
	assert.Len(t, lines, len(types.SettingKeys))
}

func TestBackend_DataPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	ex := addExercise(t, b, "Squat", types.InputReps)
	require.NoError(t, recordTable(t, b, types.ExerciseResultsTable).Add(repsResult(ex.ID, baseTime, 5)))
	require.NoError(t, b.SetSetting(types.SettingDarkMode, false))
	require.NoError(t, b.Detach())

	b2 := attachAt(t, dir, nil)
	got, err := recordTable(t, b2, types.ExercisesTable).Get(ex.ID)
	require.NoError(t, err)
	loaded := got.(*types.Exercise)
	assert.Equal(t, "Squat", loaded.Name)
	require.NotNil(t, loaded.PreviousChildData)
	assert.Equal(t, []float64{5}, mustSetValues(t, loaded.PreviousChildData.Reps))

	v, err := b2.GetSettingValue(types.SettingDarkMode)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func mustSetValues(t *testing.T, sets []*float64) []float64 {
	t.Helper()
	values, ok := types.SetValues(sets)
	require.True(t, ok, "sets contain an unfilled entry")
	return values
}

func TestBackend_LoadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	lines := `{"id":"e1","createdTimestamp":1700000000000,"name":"Bench","enabled":true,"exerciseInputs":["Reps"],"futureField":42}
not json at all
{"name":"no id"}
`
	require.NoError(t, os.WriteFile(jsonlFile(dir, string(types.ExercisesTable)), []byte(lines), 0o644))

	b := attachAt(t, dir, nil)
	all, err := recordTable(t, b, types.ExercisesTable).GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Bench", all[0].(*types.Exercise).Name)
}

func TestBackend_Metrics(t *testing.T) {
	m := metrics.NewTestManager()
	b := setupBackend(t, WithMetrics(m))

	addExercise(t, b, "Row", types.InputReps)
	err := recordTable(t, b, types.ExercisesTable).Add(&types.Exercise{})
	require.ErrorIs(t, err, types.ErrValidation)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterWrites.WithLabelValues("exercises", opAdd)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterValidationFailures.WithLabelValues("exercises")))
}

// Tests for JSONL sync strategy dispatch.

func TestSyncStrategy_ImmediateDefault(t *testing.T) {
	dir := t.TempDir()
	b := attachAt(t, dir, nil)
	assert.Equal(t, types.SyncImmediate, b.syncStrategy)

	addExercise(t, b, "Deadlift", types.InputReps)

	lines, err := readJSONL(jsonlFile(dir, string(types.ExercisesTable)))
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestSyncStrategy_OnClose_DefersWrites(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      dir,
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: types.SyncOnClose},
	}))

	for _, name := range []string{"A", "B", "C"} {
		addExercise(t, b, name, types.InputReps)
	}

	path := jsonlFile(dir, string(types.ExercisesTable))
	lines, err := readJSONL(path)
	require.NoError(t, err)
	assert.Empty(t, lines, "writes are deferred until Detach")

	b.batchMu.Lock()
	pending := len(b.pendingWrites)
	b.batchMu.Unlock()
	assert.Equal(t, 1, pending, "repeated writes to one table queue once")

	require.NoError(t, b.Detach())
	lines, err = readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestSyncStrategy_Batch_FlushAtThreshold(t *testing.T) {
	dir := t.TempDir()
	b := attachAt(t, dir, &types.SQLiteConfig{
		SyncStrategy:  types.SyncBatch,
		BatchSize:     2,
		BatchInterval: 3600,
	})

	ex := addExercise(t, b, "Press", types.InputReps)
	path := jsonlFile(dir, string(types.ExercisesTable))
	lines, err := readJSONL(path)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// A child write queues the child table, reaching the threshold.
	require.NoError(t, recordTable(t, b, types.ExerciseResultsTable).Add(repsResult(ex.ID, baseTime, 8)))

	lines, err = readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	lines, err = readJSONL(jsonlFile(dir, string(types.ExerciseResultsTable)))
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestSyncStrategy_Flush(t *testing.T) {
	dir := t.TempDir()
	b := attachAt(t, dir, &types.SQLiteConfig{SyncStrategy: types.SyncOnClose})

	addMeasurement(t, b, "Body Weight", types.InputBodyWeight)
	require.NoError(t, b.Flush())

	lines, err := readJSONL(jsonlFile(dir, string(types.MeasurementsTable)))
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
