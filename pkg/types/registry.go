package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh record id (UUID v7, time ordered).
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// NowMillis returns the current time in epoch milliseconds, the unit of every
// timestamp field.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewRecord returns an empty record of the kind stored in t, ready to be
// decoded into.
func NewRecord(t Table) (Record, error) {
	switch t {
	case WorkoutsTable:
		return &Workout{}, nil
	case ExercisesTable:
		return &Exercise{}, nil
	case MeasurementsTable:
		return &Measurement{}, nil
	case WorkoutResultsTable:
		return &WorkoutResult{}, nil
	case ExerciseResultsTable:
		return &ExerciseResult{}, nil
	case MeasurementResultsTable:
		return &MeasurementResult{}, nil
	}
	return nil, ErrTableNotFound
}

// NewDefaultRecord returns a new record of the kind stored in t with a fresh
// id, the current timestamp and default field values. Parents start enabled
// and not favorited; exercises default to multiple sets.
func NewDefaultRecord(t Table) (Record, error) {
	entity := Entity{ID: NewID(), CreatedTimestamp: NowMillis()}
	parent := Parent{Entity: entity, Enabled: true}
	child := Child{Entity: entity}

	switch t {
	case WorkoutsTable:
		return &Workout{Parent: parent, ExerciseIDs: []string{}}, nil
	case ExercisesTable:
		return &Exercise{Parent: parent, ExerciseInputs: []ExerciseInput{}, MultipleSets: true}, nil
	case MeasurementsTable:
		return &Measurement{Parent: parent}, nil
	case WorkoutResultsTable:
		return &WorkoutResult{Child: child, ExerciseResultIDs: []string{}}, nil
	case ExerciseResultsTable:
		return &ExerciseResult{Child: child}, nil
	case MeasurementResultsTable:
		return &MeasurementResult{Child: child}, nil
	}
	return nil, ErrTableNotFound
}

// DecodeRecord decodes JSON data into a record of the kind stored in t.
func DecodeRecord(t Table, data []byte) (Record, error) {
	r, err := NewRecord(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", t, err)
	}
	return r, nil
}

// InputField returns the ExerciseResult field name that records in.
func InputField(in ExerciseInput) (string, error) {
	switch in {
	case InputReps:
		return "reps", nil
	case InputWeightLbs:
		return "weightLbs", nil
	case InputDistance:
		return "distanceMiles", nil
	case InputDuration:
		return "durationMinutes", nil
	case InputWatts:
		return "watts", nil
	case InputSpeed:
		return "speedMph", nil
	case InputResistance:
		return "resistance", nil
	case InputIncline:
		return "incline", nil
	case InputCalories:
		return "calories", nil
	}
	return "", fmt.Errorf("exercise input %q: %w", in, ErrInvalidData)
}

// MeasurementField returns the MeasurementResult field name that records in.
func MeasurementField(in MeasurementInput) (string, error) {
	switch in {
	case InputBodyWeight:
		return "bodyWeight", nil
	case InputPercent:
		return "percent", nil
	case InputInches:
		return "inches", nil
	case InputNumber:
		return "number", nil
	}
	return "", fmt.Errorf("measurement input %q: %w", in, ErrInvalidData)
}
