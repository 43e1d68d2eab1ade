package types

import "errors"

// RecordTable provides uniform record operations for one of the six record
// tables. Records returned by Get and GetAll are concrete kinds; callers
// type-assert to *Workout, *ExerciseResult and so on.
type RecordTable interface {
	// Get retrieves the record with the given id. Returns ErrInvalidID for
	// an empty id and ErrNotFound if no record exists.
	Get(id string) (Record, error)

	// GetAll returns every record in insertion order.
	GetAll() ([]Record, error)

	// Add validates and inserts r. Returns ErrAlreadyExists if the id is
	// taken and a *ValidationError if r fails validation.
	Add(r Record) error

	// Put validates and inserts or replaces r.
	Put(r Record) error

	// Import validates each record independently, upserts the valid ones
	// and returns a *PartialImportError naming the skipped ids.
	Import(records []Record) error

	// Delete removes the record with the given id. Parents cascade to their
	// children. Returns ErrNotFound if no record exists.
	Delete(id string) error

	// Clear removes every record in the table.
	Clear() error
}

// Record operation errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidID     = errors.New("invalid record ID")
	ErrInvalidData   = errors.New("invalid record data")
	ErrAlreadyExists = errors.New("record already exists")
	ErrValidation    = errors.New("record failed validation")
	ErrPartialImport = errors.New("records skipped due to validation failures")
)

// Session errors.
var (
	ErrSessionAlreadyActive    = errors.New("a workout is already in progress")
	ErrInconsistentActiveState = errors.New("no consistent active workout")
	ErrRecordActivated         = errors.New("record is part of the active workout")
)

// Setting errors.
var (
	ErrInvalidSetting = errors.New("invalid setting")
)
