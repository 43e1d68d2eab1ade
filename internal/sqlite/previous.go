package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// afterChildWrite recomputes the cached previous child of each named parent.
// It runs inside the write's transaction and is the single place the cache is
// maintained. Triggers:
//
//   - child add or put: the child's parent, plus the old parent when a put
//     moves the child
//   - parent add or put: the parent itself, so a rewritten parent keeps its
//     cache
//   - child delete: the deleted child's parent
//   - import and child-table clear: every parent of the kind, through
//     updateAllPrevious
//   - workout finish: the workout and each exercise
func afterChildWrite(q querier, parentTable types.Table, parentIDs ...string) error {
	seen := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := updatePrevious(q, parentTable, id); err != nil {
			return err
		}
	}
	return nil
}

// updatePrevious sets a parent's previous child to its newest child, or
// clears it when the parent has none. A missing parent is ignored.
func updatePrevious(q querier, parentTable types.Table, id string) error {
	childTable, err := parentTable.ChildTable()
	if err != nil {
		return err
	}
	r, err := getRecord(q, parentTable, id)
	if err != nil || r == nil {
		return err
	}
	latest, err := latestChild(q, childTable, id)
	if err != nil {
		return err
	}

	p, _ := types.AsParent(r)
	if err := p.SetPreviousChild(latest); err != nil {
		return err
	}
	data, err := encodeRecord(p)
	if err != nil {
		return err
	}
	_, err = q.Exec(fmt.Sprintf("UPDATE %s SET data = ? WHERE id = ?", sqlTable(parentTable)), string(data), id)
	return err
}

// updateAllPrevious recomputes the cache of every parent in parentTable.
func updateAllPrevious(q querier, parentTable types.Table) error {
	ids, err := stringColumn(q, fmt.Sprintf("SELECT id FROM %s ORDER BY rowid", sqlTable(parentTable)))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := updatePrevious(q, parentTable, id); err != nil {
			return err
		}
	}
	return nil
}

// latestChild returns the child of parentID with the greatest created
// timestamp. Ties go to the later insert. Returns nil when there is none.
func latestChild(q querier, childTable types.Table, parentID string) (types.ChildRecord, error) {
	records, err := queryRecords(q, childTable, fmt.Sprintf(
		"SELECT data FROM %s WHERE parent_id = ? ORDER BY created_timestamp DESC, rowid DESC LIMIT 1",
		sqlTable(childTable)), parentID)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	c, _ := types.AsChild(records[0])
	return c, nil
}

// stringColumn collects a single TEXT column.
func stringColumn(q querier, query string, args ...any) ([]string, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdatePrevious recomputes the previous child of one parent.
func (b *Backend) UpdatePrevious(parentTable types.Table, id string) error {
	if !parentTable.IsParent() {
		return fmt.Errorf("%s is not a parent table: %w", parentTable, types.ErrTableNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	if err := b.withTx(func(tx *sql.Tx) error { return updatePrevious(tx, parentTable, id) }); err != nil {
		return err
	}
	return b.commit(string(parentTable))
}

// UpdateAllPrevious recomputes the previous child of every parent in
// parentTable.
func (b *Backend) UpdateAllPrevious(parentTable types.Table) error {
	if !parentTable.IsParent() {
		return fmt.Errorf("%s is not a parent table: %w", parentTable, types.ErrTableNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	if err := b.withTx(func(tx *sql.Tx) error { return updateAllPrevious(tx, parentTable) }); err != nil {
		return err
	}
	return b.commit(string(parentTable))
}
