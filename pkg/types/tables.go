package types

// Table identifies one of the six record tables. The string values are the
// table keys used in backups and JSONL file names.
type Table string

// Record tables for Store.GetTable.
const (
	WorkoutsTable           Table = "workouts"
	ExercisesTable          Table = "exercises"
	MeasurementsTable       Table = "measurements"
	WorkoutResultsTable     Table = "workout-results"
	ExerciseResultsTable    Table = "exercise-results"
	MeasurementResultsTable Table = "measurement-results"
)

// Auxiliary table names. They are not record tables and never appear in
// GetTable, but they share the persistence layer.
const (
	SettingsTable       = "settings"
	LogsTable           = "logs"
	SessionTable        = "session"
	SessionRecordsTable = "session_records"
)

// ParentTables lists the parent tables in the order backups import them.
var ParentTables = []Table{
	WorkoutsTable,
	ExercisesTable,
	MeasurementsTable,
}

// ChildTables lists the child tables, index-aligned with ParentTables.
var ChildTables = []Table{
	WorkoutResultsTable,
	ExerciseResultsTable,
	MeasurementResultsTable,
}

// StandardTables lists every record table, parents first.
var StandardTables = []Table{
	WorkoutsTable,
	ExercisesTable,
	MeasurementsTable,
	WorkoutResultsTable,
	ExerciseResultsTable,
	MeasurementResultsTable,
}

// LabelForm selects the singular or plural display label of a table.
type LabelForm int

const (
	LabelSingular LabelForm = iota
	LabelPlural
)

// Valid reports whether t is one of the six record tables.
func (t Table) Valid() bool {
	switch t {
	case WorkoutsTable, ExercisesTable, MeasurementsTable,
		WorkoutResultsTable, ExerciseResultsTable, MeasurementResultsTable:
		return true
	}
	return false
}

// IsParent reports whether t holds parent records.
func (t Table) IsParent() bool {
	switch t {
	case WorkoutsTable, ExercisesTable, MeasurementsTable:
		return true
	}
	return false
}

// IsChild reports whether t holds child records.
func (t Table) IsChild() bool {
	switch t {
	case WorkoutResultsTable, ExerciseResultsTable, MeasurementResultsTable:
		return true
	}
	return false
}

// ParentTable returns the parent table of a child table. Parent tables map
// to themselves.
func (t Table) ParentTable() (Table, error) {
	switch t {
	case WorkoutsTable, WorkoutResultsTable:
		return WorkoutsTable, nil
	case ExercisesTable, ExerciseResultsTable:
		return ExercisesTable, nil
	case MeasurementsTable, MeasurementResultsTable:
		return MeasurementsTable, nil
	}
	return "", ErrTableNotFound
}

// ChildTable returns the child table of a parent table. Child tables map to
// themselves.
func (t Table) ChildTable() (Table, error) {
	switch t {
	case WorkoutsTable, WorkoutResultsTable:
		return WorkoutResultsTable, nil
	case ExercisesTable, ExerciseResultsTable:
		return ExerciseResultsTable, nil
	case MeasurementsTable, MeasurementResultsTable:
		return MeasurementResultsTable, nil
	}
	return "", ErrTableNotFound
}

// Label returns the display label of t. Unknown tables label as their raw
// identifier.
func (t Table) Label(form LabelForm) string {
	var singular, plural string
	switch t {
	case WorkoutsTable:
		singular, plural = "Workout", "Workouts"
	case ExercisesTable:
		singular, plural = "Exercise", "Exercises"
	case MeasurementsTable:
		singular, plural = "Measurement", "Measurements"
	case WorkoutResultsTable:
		singular, plural = "Workout Result", "Workout Results"
	case ExerciseResultsTable:
		singular, plural = "Exercise Result", "Exercise Results"
	case MeasurementResultsTable:
		singular, plural = "Measurement Result", "Measurement Results"
	default:
		return string(t)
	}
	if form == LabelPlural {
		return plural
	}
	return singular
}

// ParseTable converts a raw identifier into a Table, returning
// ErrTableNotFound for anything outside the six record tables.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if !t.Valid() {
		return "", ErrTableNotFound
	}
	return t, nil
}
