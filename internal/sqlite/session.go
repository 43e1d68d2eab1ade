package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

// sessionRow is the single row of the session table and its JSONL line.
type sessionRow struct {
	WorkoutID       string   `json:"workoutId"`
	WorkoutResultID string   `json:"workoutResultId"`
	ExerciseIDs     []string `json:"exerciseIds"`
	Started         int64    `json:"started"`
}

// sessionRecordJSON is one JSONL line of session_records: a staged result
// and its position in the session.
type sessionRecordJSON struct {
	Table    types.Table     `json:"table"`
	Position int             `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// sessionTopics are the tables whose readers see a session transition.
// Parents are included because their activated flag changes.
func sessionTopics() []string {
	return []string{
		types.SessionTable,
		types.SessionRecordsTable,
		string(types.WorkoutsTable),
		string(types.ExercisesTable),
	}
}

// BeginWorkout starts a session for the workout: one staged ExerciseResult
// per exercise, each declared input holding a single unfilled set, and a
// staged WorkoutResult referencing them in exercise order.
func (b *Backend) BeginWorkout(workoutID string) (*types.ActiveWorkout, error) {
	if workoutID == "" {
		return nil, types.ErrInvalidID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	active, err := hasSession(b.db)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, types.ErrSessionAlreadyActive
	}

	r, err := getRecord(b.db, types.WorkoutsTable, workoutID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("workout %s: %w", workoutID, types.ErrNotFound)
	}
	workout := r.(*types.Workout)

	now := b.now()
	results := make([]types.Record, 0, len(workout.ExerciseIDs)+1)
	resultIDs := make([]string, 0, len(workout.ExerciseIDs))
	for _, exerciseID := range workout.ExerciseIDs {
		er, err := getRecord(b.db, types.ExercisesTable, exerciseID)
		if err != nil {
			return nil, err
		}
		if er == nil {
			return nil, fmt.Errorf("exercise %s: %w", exerciseID, types.ErrNotFound)
		}
		result := newStagedExerciseResult(er.(*types.Exercise), now)
		results = append(results, result)
		resultIDs = append(resultIDs, result.ID)
	}

	wr := &types.WorkoutResult{
		Child: types.Child{
			Entity:   types.Entity{ID: types.NewID(), CreatedTimestamp: now},
			ParentID: workout.ID,
		},
		ExerciseResultIDs: resultIDs,
	}
	results = append([]types.Record{wr}, results...)

	s := &sessionRow{
		WorkoutID:       workout.ID,
		WorkoutResultID: wr.ID,
		ExerciseIDs:     append([]string{}, workout.ExerciseIDs...),
		Started:         now,
	}
	err = b.withTx(func(tx *sql.Tx) error {
		if err := putSessionRow(tx, s); err != nil {
			return err
		}
		for i, r := range results {
			if err := putSessionRecord(tx, r, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.countTransition(metrics.TransitionBegin)
	b.setSessionGauge(true)
	log.WithFields(log.Fields{"workout": workout.ID, "exercises": len(resultIDs)}).Debug("workout begun")
	if err := b.commit(sessionTopics()...); err != nil {
		return nil, err
	}
	return activeWorkout(b.db)
}

func newStagedExerciseResult(ex *types.Exercise, now int64) *types.ExerciseResult {
	r := &types.ExerciseResult{
		Child: types.Child{
			Entity:   types.Entity{ID: types.NewID(), CreatedTimestamp: now},
			ParentID: ex.ID,
		},
	}
	for _, in := range ex.CanonicalInputs() {
		*r.Field(in) = []*float64{nil}
	}
	return r
}

// PutActiveRecord replaces a staged WorkoutResult or ExerciseResult. Staged
// records are not validated until the workout finishes.
func (b *Backend) PutActiveRecord(r types.Record) error {
	if r == nil {
		return fmt.Errorf("nil record: %w", types.ErrInvalidData)
	}
	if t := r.Table(); t != types.WorkoutResultsTable && t != types.ExerciseResultsTable {
		return fmt.Errorf("%s records are not staged: %w", t, types.ErrInvalidData)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	active, err := hasSession(b.db)
	if err != nil {
		return err
	}
	if !active {
		return types.ErrInconsistentActiveState
	}

	var position int
	err = b.db.QueryRow("SELECT position FROM session_records WHERE id = ? AND table_name = ?",
		r.Base().ID, string(r.Table())).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("staged %s %s: %w", r.Table(), r.Base().ID, types.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if err := putSessionRecord(b.db, r, position); err != nil {
		return err
	}
	return b.commit(types.SessionRecordsTable)
}

// FinishWorkout validates every staged result, stamps the workout result's
// finished time, moves the results into their permanent tables and ends the
// session. Any validation failure aborts the whole transition and leaves the
// session as it was; the returned error combines every failure.
func (b *Backend) FinishWorkout() (*types.WorkoutResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	s, err := loadSession(b.db)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, types.ErrInconsistentActiveState
	}

	var finished *types.WorkoutResult
	var failed []types.Table
	counts := make(map[types.Table]int)
	err = b.withTx(func(tx *sql.Tx) error {
		staged, err := stagedRecords(tx)
		if err != nil {
			return err
		}

		var errs error
		now := b.now()
		for _, r := range staged {
			if wr, ok := r.(*types.WorkoutResult); ok && wr.ID == s.WorkoutResultID {
				wr.Finish(now)
				finished = wr
			}
			if err := validateRecord(tx, r); err != nil {
				failed = append(failed, r.Table())
				errs = multierr.Append(errs, err)
			}
		}
		if errs != nil {
			return errs
		}
		if finished == nil {
			return fmt.Errorf("staged workout result %s missing: %w", s.WorkoutResultID, types.ErrInconsistentActiveState)
		}

		for _, r := range staged {
			if err := upsertRecord(tx, r); err != nil {
				return err
			}
			counts[r.Table()]++
		}
		if err := afterChildWrite(tx, types.WorkoutsTable, s.WorkoutID); err != nil {
			return err
		}
		if err := afterChildWrite(tx, types.ExercisesTable, s.ExerciseIDs...); err != nil {
			return err
		}
		return clearSession(tx)
	})
	if err != nil {
		for _, t := range failed {
			b.countValidationFailure(t)
		}
		return nil, err
	}

	for t, n := range counts {
		b.countWrite(t, opAdd, n)
	}
	b.countTransition(metrics.TransitionFinish)
	b.setSessionGauge(false)
	log.WithField("workout", s.WorkoutID).Debug("workout finished")

	topics := append(sessionTopics(), string(types.WorkoutResultsTable), string(types.ExerciseResultsTable))
	if err := b.commit(topics...); err != nil {
		return nil, err
	}
	return finished, nil
}

// DiscardWorkout drops the staged results and ends the session. Catalog
// records are untouched.
func (b *Backend) DiscardWorkout() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	active, err := hasSession(b.db)
	if err != nil {
		return err
	}
	if !active {
		return types.ErrInconsistentActiveState
	}

	if err := b.withTx(func(tx *sql.Tx) error { return clearSession(tx) }); err != nil {
		return err
	}

	b.countTransition(metrics.TransitionDiscard)
	b.setSessionGauge(false)
	return b.commit(sessionTopics()...)
}

// GetActiveWorkout returns the in-progress session, or nil when none is
// active.
func (b *Backend) GetActiveWorkout() (*types.ActiveWorkout, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return activeWorkout(b.db)
}

// IsActiveWorkout reports whether a session is in progress.
func (b *Backend) IsActiveWorkout() (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return false, types.ErrStoreDetached
	}
	return hasSession(b.db)
}

// activeWorkout assembles the session view. Exercises follow the workout's
// exerciseIds and exercise results follow the workout result's
// exerciseResultIds; anything missing from those lists goes last.
func activeWorkout(q querier) (*types.ActiveWorkout, error) {
	s, err := loadSession(q)
	if err != nil || s == nil {
		return nil, err
	}

	aw := &types.ActiveWorkout{}
	r, err := getRecord(q, types.WorkoutsTable, s.WorkoutID)
	if err != nil {
		return nil, err
	}
	if r != nil {
		aw.Workout = r.(*types.Workout)
		aw.Workout.Activated = true
	}

	idList, err := json.Marshal(s.ExerciseIDs)
	if err != nil {
		return nil, err
	}
	records, err := queryRecords(q, types.ExercisesTable,
		"SELECT data FROM exercises WHERE id IN (SELECT value FROM json_each(?)) ORDER BY rowid", string(idList))
	if err != nil {
		return nil, err
	}
	exercises := make([]*types.Exercise, 0, len(records))
	for _, r := range records {
		ex := r.(*types.Exercise)
		ex.Activated = true
		exercises = append(exercises, ex)
	}
	aw.Exercises = orderByIDs(exercises, s.ExerciseIDs, func(e *types.Exercise) string { return e.ID })

	staged, err := stagedRecords(q)
	if err != nil {
		return nil, err
	}
	var results []*types.ExerciseResult
	for _, r := range staged {
		switch v := r.(type) {
		case *types.WorkoutResult:
			if v.ID == s.WorkoutResultID {
				v.Activated = true
				aw.WorkoutResult = v
			}
		case *types.ExerciseResult:
			v.Activated = true
			results = append(results, v)
		}
	}
	var order []string
	if aw.WorkoutResult != nil {
		order = aw.WorkoutResult.ExerciseResultIDs
	}
	aw.ExerciseResults = orderByIDs(results, order, func(r *types.ExerciseResult) string { return r.ID })
	return aw, nil
}

// orderByIDs arranges items in the order of ids. An id listed twice yields
// its item twice. Items whose id is not listed follow in their original
// order.
func orderByIDs[T any](items []T, ids []string, idOf func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	listed := make(map[string]bool, len(ids))
	out := make([]T, 0, len(items))
	for _, id := range ids {
		listed[id] = true
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	for _, it := range items {
		if !listed[idOf(it)] {
			out = append(out, it)
		}
	}
	return out
}

// Session row helpers.

func hasSession(q querier) (bool, error) {
	var n int
	if err := q.QueryRow("SELECT COUNT(*) FROM session").Scan(&n); err != nil {
		return false, fmt.Errorf("reading session: %w", err)
	}
	return n > 0, nil
}

// loadSession returns the session row, or nil when no session is active.
func loadSession(q querier) (*sessionRow, error) {
	var s sessionRow
	var ids string
	err := q.QueryRow("SELECT workout_id, workout_result_id, exercise_ids, started FROM session WHERE id = 1").
		Scan(&s.WorkoutID, &s.WorkoutResultID, &ids, &s.Started)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &s.ExerciseIDs); err != nil {
		return nil, fmt.Errorf("decoding session exercise ids: %w", err)
	}
	return &s, nil
}

func putSessionRow(q querier, s *sessionRow) error {
	if s.WorkoutID == "" || s.WorkoutResultID == "" {
		return types.ErrInvalidID
	}
	ids := s.ExerciseIDs
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = q.Exec(`INSERT OR REPLACE INTO session (id, workout_id, workout_result_id, exercise_ids, started)
VALUES (1, ?, ?, ?, ?)`, s.WorkoutID, s.WorkoutResultID, string(data), s.Started)
	return err
}

func putSessionRecord(q querier, r types.Record, position int) error {
	if r.Base().ID == "" {
		return types.ErrInvalidID
	}
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	_, err = q.Exec(`INSERT INTO session_records (id, table_name, position, data) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET table_name = excluded.table_name, position = excluded.position, data = excluded.data`,
		r.Base().ID, string(r.Table()), position, string(data))
	return err
}

func clearSession(q querier) error {
	if _, err := q.Exec("DELETE FROM session_records"); err != nil {
		return err
	}
	_, err := q.Exec("DELETE FROM session")
	return err
}

// stagedRecords returns the staged results in session order.
func stagedRecords(q querier) ([]types.Record, error) {
	rows, err := q.Query("SELECT table_name, data FROM session_records ORDER BY position, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, err
		}
		r, err := types.DecodeRecord(types.Table(name), []byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// activeParentIDs returns the ids of the parents taking part in the session.
func activeParentIDs(q querier) (map[string]bool, error) {
	s, err := loadSession(q)
	if err != nil || s == nil {
		return map[string]bool{}, err
	}
	ids := make(map[string]bool, len(s.ExerciseIDs)+1)
	ids[s.WorkoutID] = true
	for _, id := range s.ExerciseIDs {
		ids[id] = true
	}
	return ids, nil
}

// markActivated sets Activated on the parents the session references.
func markActivated(q querier, records ...types.Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, ok := types.AsParent(records[0]); !ok {
		return nil
	}
	ids, err := activeParentIDs(q)
	if err != nil {
		return err
	}
	for _, r := range records {
		if ids[r.Base().ID] {
			r.Base().Activated = true
		}
	}
	return nil
}

func sessionLines(q querier) ([]json.RawMessage, error) {
	s, err := loadSession(q)
	if err != nil || s == nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{data}, nil
}

func sessionRecordLines(q querier) ([]json.RawMessage, error) {
	rows, err := q.Query("SELECT table_name, position, data FROM session_records ORDER BY position, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []json.RawMessage
	for rows.Next() {
		var sr sessionRecordJSON
		var name, data string
		if err := rows.Scan(&name, &sr.Position, &data); err != nil {
			return nil, err
		}
		sr.Table = types.Table(name)
		sr.Data = json.RawMessage(data)
		line, err := json.Marshal(sr)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
