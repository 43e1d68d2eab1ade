package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/repbook/internal/live"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

func names[T types.Record](records []T) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if p, ok := types.AsParent(r); ok {
			out = append(out, p.ParentBase().Name)
		}
	}
	return out
}

func TestViews_Dashboard(t *testing.T) {
	b := setupBackend(t)
	squat := addExercise(t, b, "Squat", types.InputReps)
	bench := addExercise(t, b, "Bench", types.InputReps)
	curl := addExercise(t, b, "Curl", types.InputReps)
	addExercise(t, b, "Abs", types.InputReps)
	hidden := addExercise(t, b, "Archived", types.InputReps)

	hidden.Enabled = false
	require.NoError(t, recordTable(t, b, types.ExercisesTable).Put(hidden))
	require.NoError(t, b.ToggleFavorite(types.ExercisesTable, curl.ID))
	addWorkout(t, b, "Legs", squat.ID)
	w := addWorkout(t, b, "Chest", bench.ID)
	_, err := b.BeginWorkout(w.ID)
	require.NoError(t, err)

	view, err := b.DashboardView(types.ExercisesTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bench", "Curl", "Abs", "Squat"}, names(view))
	assert.True(t, view[0].Base().Activated)

	workouts, err := b.DashboardView(types.WorkoutsTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chest", "Legs"}, names(workouts))

	_, err = b.DashboardView(types.ExerciseResultsTable)
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestViews_ListView(t *testing.T) {
	b := setupBackend(t)
	row := addExercise(t, b, "Row", types.InputReps)
	addExercise(t, b, "Deadlift", types.InputReps)
	w := addWorkout(t, b, "Back", row.ID)
	_, err := b.BeginWorkout(w.ID)
	require.NoError(t, err)

	parents, err := b.ListView(types.ExercisesTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deadlift"}, names(parents), "active parents are hidden")

	results := recordTable(t, b, types.ExerciseResultsTable)
	old := repsResult(row.ID, baseTime, 1)
	recent := repsResult(row.ID, baseTime+10, 2)
	require.NoError(t, results.Add(old))
	require.NoError(t, results.Add(recent))

	children, err := b.ListView(types.ExerciseResultsTable)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, recent.ID, children[0].Base().ID)
	assert.Equal(t, old.ID, children[1].Base().ID)
}

func TestViews_OptionList(t *testing.T) {
	b := setupBackend(t)
	ex := addExercise(t, b, "Zercher Squat", types.InputReps)
	other := addExercise(t, b, "Hip Thrust", types.InputReps)
	w := addWorkout(t, b, "Legs", ex.ID)
	_, err := b.BeginWorkout(w.ID)
	require.NoError(t, err)

	options, err := b.OptionList(types.ExercisesTable)
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, types.Option{
		Value: other.ID,
		Label: "Hip Thrust (" + other.ID[:8] + "*)",
	}, options[0])
	assert.Equal(t, ex.ID, options[1].Value)
	assert.True(t, options[1].Disabled)
}

func TestViews_ExerciseResults(t *testing.T) {
	b := setupBackend(t)
	ex := addExercise(t, b, "Push Up", types.InputReps)
	other := addExercise(t, b, "Sit Up", types.InputReps)
	results := recordTable(t, b, types.ExerciseResultsTable)

	first := repsResult(ex.ID, baseTime, 10)
	second := repsResult(ex.ID, baseTime+1, 12)
	third := repsResult(other.ID, baseTime+2, 30)
	for _, r := range []*types.ExerciseResult{first, second, third} {
		require.NoError(t, results.Add(r))
	}

	options, err := b.ExerciseResultOptions()
	require.NoError(t, err)
	assert.Equal(t, []types.Option{
		{Value: third.ID, Label: third.ID},
		{Value: second.ID, Label: second.ID},
		{Value: first.ID, Label: first.ID},
	}, options)

	previous, err := b.PreviousResultsFor(ex.ID)
	require.NoError(t, err)
	require.Len(t, previous, 2)
	assert.Equal(t, second.ID, previous[0].ID)
	assert.Equal(t, first.ID, previous[1].ID)
}

func receive[T any](t *testing.T, ch <-chan live.Result[T]) T {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed")
		require.NoError(t, r.Err)
		return r.Value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live result")
	}
	var zero T
	return zero
}

func TestLive_ListViewFollowsWrites(t *testing.T) {
	b := setupBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.LiveListView(ctx, types.MeasurementsTable)
	require.NoError(t, err)
	assert.Empty(t, receive(t, ch))

	addMeasurement(t, b, "Chest", types.InputInches)
	assert.Len(t, receive(t, ch), 1)

	cancel()
	for range ch {
	}
}

func TestLive_ActiveWorkout(t *testing.T) {
	b := setupBackend(t)
	ex := addExercise(t, b, "Snatch", types.InputReps)
	w := addWorkout(t, b, "Olympic", ex.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.LiveActiveWorkout(ctx)
	require.NoError(t, err)
	assert.Nil(t, receive(t, ch))

	_, err = b.BeginWorkout(w.ID)
	require.NoError(t, err)
	aw := receive(t, ch)
	require.NotNil(t, aw)
	assert.Equal(t, w.ID, aw.Workout.ID)

	require.NoError(t, b.DiscardWorkout())
	assert.Nil(t, receive(t, ch))
}

func TestLive_SettingsAndLogs(t *testing.T) {
	b := setupBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, err := b.LiveSettings(ctx)
	require.NoError(t, err)
	logs, err := b.LiveLogs(ctx)
	require.NoError(t, err)

	assert.Len(t, receive(t, settings), len(types.SettingKeys))
	assert.Empty(t, receive(t, logs))

	require.NoError(t, b.AddLog(types.NewLog(types.LogWarn, "low disk", nil)))
	got := receive(t, logs)
	require.Len(t, got, 1)
	assert.Equal(t, "low disk", got[0].Label)
}

func TestLive_ClosesOnDetach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	ch, err := b.LiveDashboard(context.Background(), types.WorkoutsTable)
	require.NoError(t, err)
	receive(t, ch)

	require.NoError(t, b.Detach())
	for range ch {
	}

	_, err = b.LiveDashboard(context.Background(), types.WorkoutsTable)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}
