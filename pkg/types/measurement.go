package types

// MeasurementInput names the single quantity a measurement records.
type MeasurementInput string

// Measurement inputs, in canonical order.
const (
	InputBodyWeight MeasurementInput = "Body Weight (lbs)"
	InputPercent    MeasurementInput = "Percentage"
	InputInches     MeasurementInput = "Inches"
	InputNumber     MeasurementInput = "Number"
)

// MeasurementInputs lists every measurement input in canonical order.
var MeasurementInputs = []MeasurementInput{
	InputBodyWeight,
	InputPercent,
	InputInches,
	InputNumber,
}

// Valid reports whether in is a known measurement input.
func (in MeasurementInput) Valid() bool {
	_, err := MeasurementField(in)
	return err == nil
}

// Measurement is a catalog quantity tracked over time, such as body weight.
type Measurement struct {
	Parent
	MeasurementInput  MeasurementInput   `json:"measurementInput"`
	PreviousChildData *MeasurementResult `json:"previousChild,omitempty"`
}

// MeasurementResult is one recorded value. Exactly one field is set, the one
// matching the measurement's input.
type MeasurementResult struct {
	Child
	BodyWeight *float64 `json:"bodyWeight,omitempty"`
	Percent    *float64 `json:"percent,omitempty"`
	Inches     *float64 `json:"inches,omitempty"`
	Number     *float64 `json:"number,omitempty"`
}

func (*Measurement) Table() Table { return MeasurementsTable }
func (*Measurement) record()      {}

// PreviousChild returns the cached latest measurement result.
func (m *Measurement) PreviousChild() ChildRecord {
	if m.PreviousChildData == nil {
		return nil
	}
	return m.PreviousChildData
}

// SetPreviousChild caches a copy of c, which must be a *MeasurementResult.
func (m *Measurement) SetPreviousChild(c ChildRecord) error {
	if c == nil {
		m.PreviousChildData = nil
		return nil
	}
	mr, ok := c.(*MeasurementResult)
	if !ok {
		return ErrInvalidData
	}
	cp := *mr
	m.PreviousChildData = &cp
	return nil
}

func (*MeasurementResult) Table() Table { return MeasurementResultsTable }
func (*MeasurementResult) record()      {}

// Field returns a pointer to the value recording in, or nil for an unknown
// input.
func (r *MeasurementResult) Field(in MeasurementInput) **float64 {
	switch in {
	case InputBodyWeight:
		return &r.BodyWeight
	case InputPercent:
		return &r.Percent
	case InputInches:
		return &r.Inches
	case InputNumber:
		return &r.Number
	}
	return nil
}

// RecordedInputs returns the inputs whose values are set, in canonical
// order.
func (r *MeasurementResult) RecordedInputs() []MeasurementInput {
	var out []MeasurementInput
	for _, in := range MeasurementInputs {
		if f := r.Field(in); f != nil && *f != nil {
			out = append(out, in)
		}
	}
	return out
}

// Value returns the recorded value and its input. ok is false unless exactly
// one field is set.
func (r *MeasurementResult) Value() (in MeasurementInput, v float64, ok bool) {
	recorded := r.RecordedInputs()
	if len(recorded) != 1 {
		return "", 0, false
	}
	return recorded[0], **r.Field(recorded[0]), true
}

// SetValue records v under in and clears the other fields.
func (r *MeasurementResult) SetValue(in MeasurementInput, v float64) error {
	f := r.Field(in)
	if f == nil {
		return ErrInvalidData
	}
	r.BodyWeight, r.Percent, r.Inches, r.Number = nil, nil, nil, nil
	*f = &v
	return nil
}
