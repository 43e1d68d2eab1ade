package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRegistry(t *testing.T) {
	tests := []struct {
		table    Table
		parent   Table
		child    Table
		isParent bool
		singular string
		plural   string
	}{
		{WorkoutsTable, WorkoutsTable, WorkoutResultsTable, true, "Workout", "Workouts"},
		{ExercisesTable, ExercisesTable, ExerciseResultsTable, true, "Exercise", "Exercises"},
		{MeasurementsTable, MeasurementsTable, MeasurementResultsTable, true, "Measurement", "Measurements"},
		{WorkoutResultsTable, WorkoutsTable, WorkoutResultsTable, false, "Workout Result", "Workout Results"},
		{ExerciseResultsTable, ExercisesTable, ExerciseResultsTable, false, "Exercise Result", "Exercise Results"},
		{MeasurementResultsTable, MeasurementsTable, MeasurementResultsTable, false, "Measurement Result", "Measurement Results"},
	}

	for _, tt := range tests {
		t.Run(string(tt.table), func(t *testing.T) {
			assert.True(t, tt.table.Valid())
			assert.Equal(t, tt.isParent, tt.table.IsParent())
			assert.Equal(t, !tt.isParent, tt.table.IsChild())

			parent, err := tt.table.ParentTable()
			require.NoError(t, err)
			assert.Equal(t, tt.parent, parent)

			child, err := tt.table.ChildTable()
			require.NoError(t, err)
			assert.Equal(t, tt.child, child)

			assert.Equal(t, tt.singular, tt.table.Label(LabelSingular))
			assert.Equal(t, tt.plural, tt.table.Label(LabelPlural))
		})
	}
}

func TestTableRegistryUnknown(t *testing.T) {
	bogus := Table("settings")
	assert.False(t, bogus.Valid())
	assert.False(t, bogus.IsParent())
	assert.False(t, bogus.IsChild())

	_, err := bogus.ParentTable()
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = bogus.ChildTable()
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Equal(t, "settings", bogus.Label(LabelPlural))

	_, err = ParseTable("nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
	parsed, err := ParseTable("exercise-results")
	require.NoError(t, err)
	assert.Equal(t, ExerciseResultsTable, parsed)
}

func TestParentAndChildTablesAligned(t *testing.T) {
	require.Len(t, ChildTables, len(ParentTables))
	for i, p := range ParentTables {
		child, err := p.ChildTable()
		require.NoError(t, err)
		assert.Equal(t, ChildTables[i], child)
	}
}

func TestNewDefaultRecord(t *testing.T) {
	for _, table := range StandardTables {
		t.Run(string(table), func(t *testing.T) {
			r, err := NewDefaultRecord(table)
			require.NoError(t, err)
			assert.Equal(t, table, r.Table())
			assert.NotEmpty(t, r.Base().ID)
			assert.Positive(t, r.Base().CreatedTimestamp)
			assert.False(t, r.Base().Activated)

			if p, ok := AsParent(r); ok {
				assert.True(t, p.ParentBase().Enabled)
				assert.False(t, p.ParentBase().Favorited)
				assert.Nil(t, p.PreviousChild())
			}
			if c, ok := AsChild(r); ok {
				assert.Empty(t, c.ChildBase().Note)
			}
		})
	}

	ex, err := NewDefaultRecord(ExercisesTable)
	require.NoError(t, err)
	assert.True(t, ex.(*Exercise).MultipleSets)
	assert.NotNil(t, ex.(*Exercise).ExerciseInputs)

	_, err = NewDefaultRecord("bogus")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestDecodeRecord(t *testing.T) {
	data := []byte(`{"id":"er1","createdTimestamp":5,"parentId":"e1","note":"",
		"reps":[10,null],"weightLbs":[135.5,140]}`)
	r, err := DecodeRecord(ExerciseResultsTable, data)
	require.NoError(t, err)

	er, ok := r.(*ExerciseResult)
	require.True(t, ok)
	assert.Equal(t, "e1", er.ParentID)
	require.Len(t, er.Reps, 2)
	assert.Equal(t, 10.0, *er.Reps[0])
	assert.Nil(t, er.Reps[1])
	assert.Equal(t, []ExerciseInput{InputReps, InputWeightLbs}, er.RecordedInputs())

	_, err = DecodeRecord(WorkoutsTable, []byte(`{`))
	assert.Error(t, err)
	_, err = DecodeRecord("bogus", []byte(`{}`))
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestInputFields(t *testing.T) {
	for _, in := range ExerciseInputs {
		name, err := InputField(in)
		require.NoError(t, err)
		assert.NotEmpty(t, name)
	}
	name, err := InputField(InputCalories)
	require.NoError(t, err)
	assert.Equal(t, "calories", name)
	_, err = InputField("Jumps")
	assert.ErrorIs(t, err, ErrInvalidData)

	name, err = MeasurementField(InputBodyWeight)
	require.NoError(t, err)
	assert.Equal(t, "bodyWeight", name)
	_, err = MeasurementField("Kilograms")
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestSetPreviousChildCopies(t *testing.T) {
	w := &Workout{}
	wr := &WorkoutResult{Child: Child{Entity: Entity{ID: "wr1"}}, ExerciseResultIDs: []string{"a"}}
	require.NoError(t, w.SetPreviousChild(wr))

	wr.ExerciseResultIDs[0] = "changed"
	prev, ok := w.PreviousChild().(*WorkoutResult)
	require.True(t, ok)
	assert.Equal(t, "a", prev.ExerciseResultIDs[0])

	assert.ErrorIs(t, w.SetPreviousChild(&ExerciseResult{}), ErrInvalidData)

	require.NoError(t, w.SetPreviousChild(nil))
	assert.Nil(t, w.PreviousChild())
}

func TestOptionLabel(t *testing.T) {
	assert.Equal(t, "Bench (01234567*)", OptionLabel("Bench", "0123456789"))
	assert.Equal(t, "Row (abc)", OptionLabel("Row", "abc"))
}
