package types

// Backup identity written into every export.
const (
	AppName         = "Manage Your Exercise"
	DatabaseVersion = 1
)

// BackupData is the export format. Field names match the table identifiers
// so older exports import unchanged. Parents carry neither previousChild nor
// activated; children carry no activated.
type BackupData struct {
	AppName            string               `json:"appName"`
	DatabaseVersion    int                  `json:"databaseVersion"`
	CreatedTimestamp   int64                `json:"createdTimestamp"`
	Settings           []Setting            `json:"settings"`
	Logs               []Log                `json:"logs"`
	Workouts           []*Workout           `json:"workouts"`
	Exercises          []*Exercise          `json:"exercises"`
	Measurements       []*Measurement       `json:"measurements"`
	WorkoutResults     []*WorkoutResult     `json:"workout-results"`
	ExerciseResults    []*ExerciseResult    `json:"exercise-results"`
	MeasurementResults []*MeasurementResult `json:"measurement-results"`
}

// Records returns the backup's records for t as the Record interface.
func (b *BackupData) Records(t Table) []Record {
	var out []Record
	switch t {
	case WorkoutsTable:
		for _, r := range b.Workouts {
			out = append(out, r)
		}
	case ExercisesTable:
		for _, r := range b.Exercises {
			out = append(out, r)
		}
	case MeasurementsTable:
		for _, r := range b.Measurements {
			out = append(out, r)
		}
	case WorkoutResultsTable:
		for _, r := range b.WorkoutResults {
			out = append(out, r)
		}
	case ExerciseResultsTable:
		for _, r := range b.ExerciseResults {
			out = append(out, r)
		}
	case MeasurementResultsTable:
		for _, r := range b.MeasurementResults {
			out = append(out, r)
		}
	}
	return out
}

// SetRecords stores records into the slice for t, cleaning transient fields.
// Records of the wrong kind return ErrInvalidData.
func (b *BackupData) SetRecords(t Table, records []Record) error {
	for _, r := range records {
		if r.Table() != t {
			return ErrInvalidData
		}
		ClearTransient(r)
		switch v := r.(type) {
		case *Workout:
			b.Workouts = append(b.Workouts, v)
		case *Exercise:
			b.Exercises = append(b.Exercises, v)
		case *Measurement:
			b.Measurements = append(b.Measurements, v)
		case *WorkoutResult:
			b.WorkoutResults = append(b.WorkoutResults, v)
		case *ExerciseResult:
			b.ExerciseResults = append(b.ExerciseResults, v)
		case *MeasurementResult:
			b.MeasurementResults = append(b.MeasurementResults, v)
		}
	}
	return nil
}
