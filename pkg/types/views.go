package types

// Option is a picker entry for a parent record.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Disabled bool   `json:"disable"`
}

// OptionLabel formats a picker label as the name followed by the id
// truncated to eight characters.
func OptionLabel(name, id string) string {
	return name + " (" + Truncate(id, 8, "*") + ")"
}

// Truncate shortens s to n runes and appends suffix when it was longer.
func Truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}

// ActiveWorkout is the in-progress workout session: the workout being
// performed, its exercises in workout order, and the staged results.
type ActiveWorkout struct {
	Workout         *Workout          `json:"parentWorkout"`
	Exercises       []*Exercise       `json:"parentExercises"`
	WorkoutResult   *WorkoutResult    `json:"workoutResult"`
	ExerciseResults []*ExerciseResult `json:"exerciseResults"`
}
