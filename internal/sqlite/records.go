package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

// Write operation labels used in metrics.
const (
	opAdd    = "add"
	opPut    = "put"
	opImport = "import"
	opDelete = "delete"
	opClear  = "clear"
)

// Table implements types.RecordTable for a single record table. Every method
// dispatches on the record kind through the types registry, so one
// implementation serves all six tables.
type Table struct {
	name    types.Table
	backend *Backend
}

func newTable(b *Backend, t types.Table) *Table {
	return &Table{name: t, backend: b}
}

// Name returns the table identifier.
func (t *Table) Name() types.Table { return t.name }

// Get retrieves a record by id. Parents taking part in the active workout
// come back with Activated set.
func (t *Table) Get(id string) (types.Record, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	r, err := getRecord(b.db, t.name, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, types.ErrNotFound
	}
	if err := markActivated(b.db, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetAll returns every record in insertion order.
func (t *Table) GetAll() ([]types.Record, error) {
	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	records, err := queryRecords(b.db, t.name, fmt.Sprintf("SELECT data FROM %s ORDER BY rowid", sqlTable(t.name)))
	if err != nil {
		return nil, err
	}
	if err := markActivated(b.db, records...); err != nil {
		return nil, err
	}
	return records, nil
}

// Add validates and inserts r. Returns ErrAlreadyExists if the id is taken.
func (t *Table) Add(r types.Record) error {
	return t.backend.writeRecord(t.name, r, opAdd)
}

// Put validates and inserts or replaces r.
func (t *Table) Put(r types.Record) error {
	return t.backend.writeRecord(t.name, r, opPut)
}

// Import upserts the valid records and skips the rest. When any record is
// skipped it returns a *types.PartialImportError after the valid ones are
// committed.
func (t *Table) Import(records []types.Record) error {
	return t.backend.importRecords(t.name, records)
}

// Delete removes the record with the given id. Deleting a parent removes its
// children; deleting a child refreshes its parent's previous child.
func (t *Table) Delete(id string) error {
	return t.backend.deleteRecord(t.name, id)
}

// Clear removes every record in the table.
func (t *Table) Clear() error {
	return t.backend.ClearTable(t.name)
}

// writeRecord is the validated single-record write path shared by Add, Put
// and ToggleFavorite.
func (b *Backend) writeRecord(table types.Table, r types.Record, op string) error {
	if r == nil {
		return fmt.Errorf("nil record: %w", types.ErrInvalidData)
	}
	if r.Table() != table {
		return fmt.Errorf("%s record written to %s: %w", r.Table(), table, types.ErrInvalidData)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	err := b.withTx(func(tx *sql.Tx) error {
		return b.putRecordTx(tx, r, op == opAdd)
	})
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			b.countValidationFailure(table)
		}
		return err
	}

	b.countWrite(table, op, 1)
	parentTable, _ := table.ParentTable()
	return b.commit(string(table), string(parentTable))
}

// putRecordTx validates r against its schema and its parent, writes it, and
// refreshes the affected previous-child caches.
func (b *Backend) putRecordTx(q querier, r types.Record, insertOnly bool) error {
	if err := validateRecord(q, r); err != nil {
		return err
	}

	existing, err := getRecord(q, r.Table(), r.Base().ID)
	if err != nil {
		return err
	}
	if insertOnly && existing != nil {
		return fmt.Errorf("%s %s: %w", r.Table(), r.Base().ID, types.ErrAlreadyExists)
	}

	if err := upsertRecord(q, r); err != nil {
		return err
	}

	parentTable, _ := r.Table().ParentTable()
	switch v := r.(type) {
	case types.ChildRecord:
		ids := []string{v.ChildBase().ParentID}
		if old, ok := existing.(types.ChildRecord); ok {
			ids = append(ids, old.ChildBase().ParentID)
		}
		return afterChildWrite(q, parentTable, ids...)
	default:
		return afterChildWrite(q, parentTable, r.Base().ID)
	}
}

// validateRecord applies the schema checks and the checks that need the
// parent record.
func validateRecord(q querier, r types.Record) error {
	if err := types.Validate(r); err != nil {
		return err
	}
	c, ok := types.AsChild(r)
	if !ok {
		return nil
	}
	parentTable, err := r.Table().ParentTable()
	if err != nil {
		return err
	}
	parent, err := getRecord(q, parentTable, c.ChildBase().ParentID)
	if err != nil {
		return err
	}
	var p types.ParentRecord
	if parent != nil {
		p, _ = types.AsParent(parent)
	}
	return types.ValidateAgainstParent(c, p)
}

// importRecords validates each record independently, upserts the valid ones
// and recomputes the previous child of every parent of the table's kind.
func (b *Backend) importRecords(table types.Table, records []types.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	parentTable, err := table.ParentTable()
	if err != nil {
		return err
	}

	var skipped []string
	imported := 0
	err = b.withTx(func(tx *sql.Tx) error {
		skipped, imported = nil, 0
		for _, r := range records {
			if r == nil || r.Table() != table {
				skipped = append(skipped, recordID(r))
				continue
			}
			r.Base().Activated = false
			if err := validateRecord(tx, r); err != nil {
				if !errors.Is(err, types.ErrValidation) {
					return err
				}
				skipped = append(skipped, r.Base().ID)
				continue
			}
			if err := upsertRecord(tx, r); err != nil {
				return err
			}
			imported++
		}
		return updateAllPrevious(tx, parentTable)
	})
	if err != nil {
		return err
	}

	b.countWrite(table, opImport, imported)
	b.countImportSkipped(table, len(skipped))
	if err := b.commit(string(table), string(parentTable)); err != nil {
		return err
	}

	if len(skipped) > 0 {
		return &types.PartialImportError{Table: table, Skipped: len(skipped), IDs: skipped}
	}
	return nil
}

func recordID(r types.Record) string {
	if r == nil {
		return ""
	}
	return r.Base().ID
}

// deleteRecord removes a record. Parents cascade to their children; children
// refresh their parent's cache.
func (b *Backend) deleteRecord(table types.Table, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	existing, err := getRecord(b.db, table, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("no record to delete in %s for id %s: %w", table, id, types.ErrNotFound)
	}

	if table.IsParent() {
		active, err := activeParentIDs(b.db)
		if err != nil {
			return err
		}
		if active[id] {
			return fmt.Errorf("delete %s %s: %w", table, id, types.ErrRecordActivated)
		}
	}

	parentTable, _ := table.ParentTable()
	childTable, _ := table.ChildTable()
	err = b.withTx(func(tx *sql.Tx) error {
		if _, err := deleteRecordRow(tx, table, id); err != nil {
			return err
		}
		if table.IsParent() {
			_, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE parent_id = ?", sqlTable(childTable)), id)
			return err
		}
		c, _ := types.AsChild(existing)
		return afterChildWrite(tx, parentTable, c.ChildBase().ParentID)
	})
	if err != nil {
		return err
	}

	b.countWrite(table, opDelete, 1)
	return b.commit(string(parentTable), string(childTable))
}

// ClearTable removes every record in t. Clearing a parent table also clears
// its children and discards an active workout that uses the table; clearing
// a child table empties its parents' previous-child caches.
func (b *Backend) ClearTable(t types.Table) error {
	if !t.Valid() {
		return types.ErrTableNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	parentTable, _ := t.ParentTable()
	childTable, _ := t.ChildTable()
	touched := []string{string(parentTable), string(childTable)}
	discarded := false

	err := b.withTx(func(tx *sql.Tx) error {
		if t.IsParent() {
			for _, name := range []types.Table{parentTable, childTable} {
				if _, err := tx.Exec("DELETE FROM " + sqlTable(name)); err != nil {
					return err
				}
			}
			if parentTable == types.WorkoutsTable || parentTable == types.ExercisesTable {
				var err error
				if discarded, err = hasSession(tx); err != nil {
					return err
				}
				if discarded {
					return clearSession(tx)
				}
			}
			return nil
		}
		if _, err := tx.Exec("DELETE FROM " + sqlTable(childTable)); err != nil {
			return err
		}
		return updateAllPrevious(tx, parentTable)
	})
	if err != nil {
		return err
	}

	b.countWrite(t, opClear, 1)
	if discarded {
		touched = append(touched, sessionTopics()...)
		b.countTransition(metrics.TransitionDiscard)
		b.setSessionGauge(false)
	}
	return b.commit(touched...)
}

// ClearAll removes every record, log, setting and session, then restores the
// default settings.
func (b *Backend) ClearAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	err := b.withTx(func(tx *sql.Tx) error {
		for _, t := range types.StandardTables {
			if _, err := tx.Exec("DELETE FROM " + sqlTable(t)); err != nil {
				return err
			}
		}
		for _, name := range []string{types.LogsTable, types.SettingsTable} {
			if _, err := tx.Exec("DELETE FROM " + name); err != nil {
				return err
			}
		}
		if err := clearSession(tx); err != nil {
			return err
		}
		return initSettings(tx)
	})
	if err != nil {
		return err
	}

	b.setSessionGauge(false)
	return b.commit(jsonlTables()...)
}

// GetSortedChildren returns the children of parentID in ascending creation
// order. Staged session results are never included.
func (b *Backend) GetSortedChildren(childTable types.Table, parentID string) ([]types.ChildRecord, error) {
	if !childTable.IsChild() {
		return nil, fmt.Errorf("%s is not a child table: %w", childTable, types.ErrTableNotFound)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	records, err := queryRecords(b.db, childTable, fmt.Sprintf(
		"SELECT data FROM %s WHERE parent_id = ? ORDER BY created_timestamp ASC, rowid ASC",
		sqlTable(childTable)), parentID)
	if err != nil {
		return nil, err
	}
	return asChildren(records), nil
}

// GetLastChild returns the newest child of the parent, or nil when it has
// none.
func (b *Backend) GetLastChild(parentTable types.Table, id string) (types.ChildRecord, error) {
	if !parentTable.IsParent() {
		return nil, fmt.Errorf("%s is not a parent table: %w", parentTable, types.ErrTableNotFound)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	childTable, _ := parentTable.ChildTable()
	return latestChild(b.db, childTable, id)
}

// ToggleFavorite flips the favorited flag of a parent. A missing record is
// a no-op.
func (b *Backend) ToggleFavorite(parentTable types.Table, id string) error {
	if !parentTable.IsParent() {
		return fmt.Errorf("%s is not a parent table: %w", parentTable, types.ErrTableNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	r, err := getRecord(b.db, parentTable, id)
	if err != nil || r == nil {
		return err
	}
	p, _ := types.AsParent(r)
	p.ParentBase().Favorited = !p.ParentBase().Favorited

	if err := b.withTx(func(tx *sql.Tx) error { return b.putRecordTx(tx, r, false) }); err != nil {
		return err
	}
	b.countWrite(parentTable, opPut, 1)
	return b.commit(string(parentTable))
}

// Row helpers. They take a querier so they run inside or outside a
// transaction, and they always drain result sets before returning.

// getRecord loads one record, returning nil when absent.
func getRecord(q querier, t types.Table, id string) (types.Record, error) {
	var data string
	err := q.QueryRow(fmt.Sprintf("SELECT data FROM %s WHERE id = ?", sqlTable(t)), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", t, id, err)
	}
	return types.DecodeRecord(t, []byte(data))
}

// queryRecords runs a query selecting the data column of t.
func queryRecords(q querier, t types.Table, query string, args ...any) ([]types.Record, error) {
	lines, err := dataLines(q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t, err)
	}
	records := make([]types.Record, 0, len(lines))
	for _, line := range lines {
		r, err := types.DecodeRecord(t, line)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// encodeRecord marshals r for storage. The activated flag is derived from the
// session on read and never stored.
func encodeRecord(r types.Record) ([]byte, error) {
	e := r.Base()
	activated := e.Activated
	e.Activated = false
	data, err := json.Marshal(r)
	e.Activated = activated
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s: %w", r.Table(), e.ID, err)
	}
	return data, nil
}

// upsertRecord inserts r or replaces the stored copy. A replaced row keeps
// its rowid, so storage order reflects first insertion.
func upsertRecord(q querier, r types.Record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	e := r.Base()
	name := sqlTable(r.Table())

	var query string
	var key string
	switch v := r.(type) {
	case types.ParentRecord:
		key = v.ParentBase().Name
		query = fmt.Sprintf(`INSERT INTO %s (id, name, created_timestamp, data) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, created_timestamp = excluded.created_timestamp, data = excluded.data`, name)
	case types.ChildRecord:
		key = v.ChildBase().ParentID
		query = fmt.Sprintf(`INSERT INTO %s (id, parent_id, created_timestamp, data) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET parent_id = excluded.parent_id, created_timestamp = excluded.created_timestamp, data = excluded.data`, name)
	default:
		return types.ErrInvalidData
	}

	if _, err := q.Exec(query, e.ID, key, e.CreatedTimestamp, string(data)); err != nil {
		return fmt.Errorf("writing %s %s: %w", r.Table(), e.ID, err)
	}
	return nil
}

// deleteRecordRow removes one row and reports whether it existed.
func deleteRecordRow(q querier, t types.Table, id string) (bool, error) {
	res, err := q.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", sqlTable(t)), id)
	if err != nil {
		return false, fmt.Errorf("deleting %s %s: %w", t, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func asChildren(records []types.Record) []types.ChildRecord {
	out := make([]types.ChildRecord, 0, len(records))
	for _, r := range records {
		if c, ok := types.AsChild(r); ok {
			out = append(out, c)
		}
	}
	return out
}

func asParents(records []types.Record) []types.ParentRecord {
	out := make([]types.ParentRecord, 0, len(records))
	for _, r := range records {
		if p, ok := types.AsParent(r); ok {
			out = append(out, p)
		}
	}
	return out
}
