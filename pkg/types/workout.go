package types

// Workout is a named template: an ordered list of exercises performed
// together.
type Workout struct {
	Parent
	ExerciseIDs       []string       `json:"exerciseIds"`
	PreviousChildData *WorkoutResult `json:"previousChild,omitempty"`
}

// WorkoutResult is one performed workout. ExerciseResultIDs is index-aligned
// with the workout's ExerciseIDs at creation time.
type WorkoutResult struct {
	Child
	FinishedTimestamp *int64   `json:"finishedTimestamp,omitempty"`
	ExerciseResultIDs []string `json:"exerciseResultIds"`
}

func (*Workout) Table() Table { return WorkoutsTable }
func (*Workout) record()      {}

// PreviousChild returns the cached latest workout result.
func (w *Workout) PreviousChild() ChildRecord {
	if w.PreviousChildData == nil {
		return nil
	}
	return w.PreviousChildData
}

// SetPreviousChild caches a copy of c, which must be a *WorkoutResult.
func (w *Workout) SetPreviousChild(c ChildRecord) error {
	if c == nil {
		w.PreviousChildData = nil
		return nil
	}
	wr, ok := c.(*WorkoutResult)
	if !ok {
		return ErrInvalidData
	}
	cp := *wr
	cp.ExerciseResultIDs = append([]string(nil), wr.ExerciseResultIDs...)
	w.PreviousChildData = &cp
	return nil
}

func (*WorkoutResult) Table() Table { return WorkoutResultsTable }
func (*WorkoutResult) record()      {}

// Finish stamps the finished timestamp.
func (r *WorkoutResult) Finish(at int64) {
	r.FinishedTimestamp = &at
}
