// Package types defines the record kinds of the repbook fitness data layer,
// the table registry that dispatches on table identifiers, record
// validation, the Store and RecordTable interfaces, and the standard errors
// returned by every backend.
//
// Parents (Workout, Exercise, Measurement) are catalog records that cache a
// copy of their latest child. Children (WorkoutResult, ExerciseResult,
// MeasurementResult) are logged results that reference their parent by id.
package types
