package types

import "encoding/json"

// ExerciseInput names a quantity an exercise records per set.
type ExerciseInput string

// Exercise inputs, in canonical order.
const (
	InputReps       ExerciseInput = "Reps"
	InputWeightLbs  ExerciseInput = "Weight (lbs)"
	InputDistance   ExerciseInput = "Distance (miles)"
	InputDuration   ExerciseInput = "Duration (minutes)"
	InputWatts      ExerciseInput = "Watts"
	InputSpeed      ExerciseInput = "Speed (mph)"
	InputResistance ExerciseInput = "Resistance"
	InputIncline    ExerciseInput = "Incline"
	InputCalories   ExerciseInput = "Calories Burned"
)

// ExerciseInputs lists every input in canonical order.
var ExerciseInputs = []ExerciseInput{
	InputReps,
	InputWeightLbs,
	InputDistance,
	InputDuration,
	InputWatts,
	InputSpeed,
	InputResistance,
	InputIncline,
	InputCalories,
}

// Valid reports whether in is a known exercise input.
func (in ExerciseInput) Valid() bool {
	_, err := InputField(in)
	return err == nil
}

// Exercise is a catalog movement with the inputs each set records.
type Exercise struct {
	Parent
	ExerciseInputs    []ExerciseInput `json:"exerciseInputs"`
	MultipleSets      bool            `json:"multipleSets"`
	PreviousChildData *ExerciseResult `json:"previousChild,omitempty"`
}

// HasInput reports whether e declares in.
func (e *Exercise) HasInput(in ExerciseInput) bool {
	for _, declared := range e.ExerciseInputs {
		if declared == in {
			return true
		}
	}
	return false
}

// CanonicalInputs returns the declared inputs in canonical order.
func (e *Exercise) CanonicalInputs() []ExerciseInput {
	var out []ExerciseInput
	for _, in := range ExerciseInputs {
		if e.HasInput(in) {
			out = append(out, in)
		}
	}
	return out
}

// ExerciseResult records the sets of one performed exercise. A nil slice
// means the input was not recorded; an empty slice is a recorded input with
// no sets yet. A nil entry is an unfilled set and only occurs while the
// result is staged in a session.
type ExerciseResult struct {
	Child
	Reps            []*float64 `json:"reps,omitempty"`
	WeightLbs       []*float64 `json:"weightLbs,omitempty"`
	DistanceMiles   []*float64 `json:"distanceMiles,omitempty"`
	DurationMinutes []*float64 `json:"durationMinutes,omitempty"`
	Watts           []*float64 `json:"watts,omitempty"`
	SpeedMph        []*float64 `json:"speedMph,omitempty"`
	Resistance      []*float64 `json:"resistance,omitempty"`
	Incline         []*float64 `json:"incline,omitempty"`
	Calories        []*float64 `json:"calories,omitempty"`
}

func (*Exercise) Table() Table { return ExercisesTable }
func (*Exercise) record()      {}

// PreviousChild returns the cached latest exercise result.
func (e *Exercise) PreviousChild() ChildRecord {
	if e.PreviousChildData == nil {
		return nil
	}
	return e.PreviousChildData
}

// SetPreviousChild caches a copy of c, which must be an *ExerciseResult.
func (e *Exercise) SetPreviousChild(c ChildRecord) error {
	if c == nil {
		e.PreviousChildData = nil
		return nil
	}
	er, ok := c.(*ExerciseResult)
	if !ok {
		return ErrInvalidData
	}
	cp := *er
	for _, in := range ExerciseInputs {
		if f := cp.Field(in); f != nil && *f != nil {
			*f = append(make([]*float64, 0, len(*f)), (*f)...)
		}
	}
	e.PreviousChildData = &cp
	return nil
}

// exerciseResultJSON mirrors ExerciseResult with pointer set fields so that
// omitempty drops only absent inputs and an empty slice encodes as [].
type exerciseResultJSON struct {
	Child
	Reps            *[]*float64 `json:"reps,omitempty"`
	WeightLbs       *[]*float64 `json:"weightLbs,omitempty"`
	DistanceMiles   *[]*float64 `json:"distanceMiles,omitempty"`
	DurationMinutes *[]*float64 `json:"durationMinutes,omitempty"`
	Watts           *[]*float64 `json:"watts,omitempty"`
	SpeedMph        *[]*float64 `json:"speedMph,omitempty"`
	Resistance      *[]*float64 `json:"resistance,omitempty"`
	Incline         *[]*float64 `json:"incline,omitempty"`
	Calories        *[]*float64 `json:"calories,omitempty"`
}

func presentSets(s []*float64) *[]*float64 {
	if s == nil {
		return nil
	}
	return &s
}

// MarshalJSON omits unrecorded inputs and keeps recorded empty ones.
func (r ExerciseResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(exerciseResultJSON{
		Child:           r.Child,
		Reps:            presentSets(r.Reps),
		WeightLbs:       presentSets(r.WeightLbs),
		DistanceMiles:   presentSets(r.DistanceMiles),
		DurationMinutes: presentSets(r.DurationMinutes),
		Watts:           presentSets(r.Watts),
		SpeedMph:        presentSets(r.SpeedMph),
		Resistance:      presentSets(r.Resistance),
		Incline:         presentSets(r.Incline),
		Calories:        presentSets(r.Calories),
	})
}

func (*ExerciseResult) Table() Table { return ExerciseResultsTable }
func (*ExerciseResult) record()      {}

// Field returns a pointer to the set slice recording in, or nil for an
// unknown input.
func (r *ExerciseResult) Field(in ExerciseInput) *[]*float64 {
	switch in {
	case InputReps:
		return &r.Reps
	case InputWeightLbs:
		return &r.WeightLbs
	case InputDistance:
		return &r.DistanceMiles
	case InputDuration:
		return &r.DurationMinutes
	case InputWatts:
		return &r.Watts
	case InputSpeed:
		return &r.SpeedMph
	case InputResistance:
		return &r.Resistance
	case InputIncline:
		return &r.Incline
	case InputCalories:
		return &r.Calories
	}
	return nil
}

// RecordedInputs returns the inputs whose set slices are present, in
// canonical order.
func (r *ExerciseResult) RecordedInputs() []ExerciseInput {
	var out []ExerciseInput
	for _, in := range ExerciseInputs {
		if f := r.Field(in); f != nil && *f != nil {
			out = append(out, in)
		}
	}
	return out
}

// Sets builds a set slice from plain values.
func Sets(values ...float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}

// SetValues flattens a set slice. ok is false when any entry is unfilled.
func SetValues(sets []*float64) (values []float64, ok bool) {
	values = make([]float64, 0, len(sets))
	for _, s := range sets {
		if s == nil {
			return nil, false
		}
		values = append(values, *s)
	}
	return values, true
}
