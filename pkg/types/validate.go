package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Safe integer bounds for numeric fields, matching the range exports have
// always used.
const (
	MaxSafeInteger = 1<<53 - 1
	MinSafeInteger = -(1<<53 - 1)
)

// Measurement value ranges.
const (
	MinPercent    = 0
	MaxPercent    = 100
	MinInches     = 1
	MaxInches     = 500
	MinBodyWeight = 1
	MaxBodyWeight = 1000
)

// ValidationError reports why a record failed validation. It matches
// ErrValidation through errors.Is.
type ValidationError struct {
	Table  Table
	ID     string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Table.Label(LabelSingular), e.ID, strings.Join(e.Issues, "; "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PartialImportError reports records skipped by an import after the valid
// ones were committed. It matches ErrPartialImport through errors.Is.
type PartialImportError struct {
	Table   Table
	Skipped int
	IDs     []string
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("Records skipped due to validation failures (%d): %s", e.Skipped, strings.Join(e.IDs, ", "))
}

// Is reports whether target is ErrPartialImport.
func (e *PartialImportError) Is(target error) bool {
	return target == ErrPartialImport
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// issues collects validation failures for one record.
type issues []string

func (is *issues) addf(format string, args ...any) {
	*is = append(*is, fmt.Sprintf(format, args...))
}

func (is issues) err(r Record) error {
	if len(is) == 0 {
		return nil
	}
	return &ValidationError{Table: r.Table(), ID: r.Base().ID, Issues: is}
}

// Validate checks the structure and ranges of r. It is pure: no record is
// read or written. On failure it returns a *ValidationError.
func Validate(r Record) error {
	if r == nil {
		return fmt.Errorf("nil record: %w", ErrInvalidData)
	}
	var is issues
	validateEntity(r.Base(), &is)

	switch v := r.(type) {
	case *Workout:
		validateParent(&v.Parent, &is)
		if len(v.ExerciseIDs) < 1 {
			is.addf("exerciseIds must contain at least one exercise")
		}
		for i, id := range v.ExerciseIDs {
			if id == "" {
				is.addf("exerciseIds[%d] is empty", i)
			}
		}
	case *Exercise:
		validateParent(&v.Parent, &is)
		seen := make(map[ExerciseInput]bool, len(v.ExerciseInputs))
		for _, in := range v.ExerciseInputs {
			if !in.Valid() {
				is.addf("unknown exercise input %q", in)
			}
			if seen[in] {
				is.addf("duplicate exercise input %q", in)
			}
			seen[in] = true
		}
	case *Measurement:
		validateParent(&v.Parent, &is)
		if !v.MeasurementInput.Valid() {
			is.addf("unknown measurement input %q", v.MeasurementInput)
		}
	case *WorkoutResult:
		validateChild(&v.Child, &is)
		if v.FinishedTimestamp != nil && *v.FinishedTimestamp <= 0 {
			is.addf("finishedTimestamp must be positive")
		}
		for i, id := range v.ExerciseResultIDs {
			if id == "" {
				is.addf("exerciseResultIds[%d] is empty", i)
			}
		}
	case *ExerciseResult:
		validateChild(&v.Child, &is)
		for _, in := range ExerciseInputs {
			name, _ := InputField(in)
			for i, set := range *v.Field(in) {
				switch {
				case set == nil:
					is.addf("%s[%d] is missing", name, i)
				case !inRange(*set, MinSafeInteger, MaxSafeInteger):
					is.addf("%s[%d] is out of range", name, i)
				}
			}
		}
	case *MeasurementResult:
		validateChild(&v.Child, &is)
		validateMeasurementValue(v, &is)
	default:
		return fmt.Errorf("unknown record kind %T: %w", r, ErrInvalidData)
	}
	return is.err(r)
}

func validateEntity(e *Entity, is *issues) {
	if e.ID == "" {
		is.addf("id must not be empty")
	}
	if e.CreatedTimestamp <= 0 {
		is.addf("createdTimestamp must be positive")
	}
}

func validateParent(p *Parent, is *issues) {
	if strings.TrimSpace(p.Name) == "" {
		is.addf("name must not be empty")
	}
}

func validateChild(c *Child, is *issues) {
	if c.ParentID == "" {
		is.addf("parentId must not be empty")
	}
}

func validateMeasurementValue(r *MeasurementResult, is *issues) {
	recorded := r.RecordedInputs()
	if len(recorded) != 1 {
		is.addf("exactly one measurement value must be set, got %d", len(recorded))
		return
	}
	in, v, _ := r.Value()
	var lo, hi float64
	switch in {
	case InputBodyWeight:
		lo, hi = MinBodyWeight, MaxBodyWeight
	case InputPercent:
		lo, hi = MinPercent, MaxPercent
	case InputInches:
		lo, hi = MinInches, MaxInches
	default:
		lo, hi = MinSafeInteger, MaxSafeInteger
	}
	if !inRange(v, lo, hi) {
		name, _ := MeasurementField(in)
		is.addf("%s must be between %v and %v", name, lo, hi)
	}
}

func inRange(v, lo, hi float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= lo && v <= hi
}

// ValidateAgainstParent applies the refinements that need the parent record:
// the parent must be of the child's kind, an ExerciseResult may only record
// the inputs its Exercise declares, and a MeasurementResult must record the
// Measurement's input.
func ValidateAgainstParent(child ChildRecord, parent ParentRecord) error {
	var is issues
	if parent == nil {
		is.addf("parent %s does not exist", child.ChildBase().ParentID)
		return is.err(child)
	}
	switch c := child.(type) {
	case *WorkoutResult:
		if _, ok := parent.(*Workout); !ok {
			is.addf("parent %s is not a workout", parent.Base().ID)
		}
	case *ExerciseResult:
		ex, ok := parent.(*Exercise)
		if !ok {
			is.addf("parent %s is not an exercise", parent.Base().ID)
			break
		}
		for _, in := range c.RecordedInputs() {
			if !ex.HasInput(in) {
				name, _ := InputField(in)
				is.addf("%s is not an input of exercise %s", name, ex.ID)
			}
		}
	case *MeasurementResult:
		m, ok := parent.(*Measurement)
		if !ok {
			is.addf("parent %s is not a measurement", parent.Base().ID)
			break
		}
		if in, _, ok := c.Value(); ok && in != m.MeasurementInput {
			name, _ := MeasurementField(in)
			is.addf("%s does not match measurement input %q", name, m.MeasurementInput)
		}
	}
	return is.err(child)
}
