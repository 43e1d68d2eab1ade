package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// DashboardView returns the enabled parents of parentTable sorted by name,
// with the active ones first, then favorites, then the rest.
func (b *Backend) DashboardView(parentTable types.Table) ([]types.ParentRecord, error) {
	if !parentTable.IsParent() {
		return nil, fmt.Errorf("%s is not a parent table: %w", parentTable, types.ErrTableNotFound)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return dashboardView(b.db, parentTable)
}

func dashboardView(q querier, parentTable types.Table) ([]types.ParentRecord, error) {
	parents, err := parentsByName(q, parentTable)
	if err != nil {
		return nil, err
	}

	var activated, favorited, rest []types.ParentRecord
	for _, p := range parents {
		base := p.ParentBase()
		switch {
		case !base.Enabled:
		case base.Activated:
			activated = append(activated, p)
		case base.Favorited:
			favorited = append(favorited, p)
		default:
			rest = append(rest, p)
		}
	}
	out := make([]types.ParentRecord, 0, len(activated)+len(favorited)+len(rest))
	out = append(out, activated...)
	out = append(out, favorited...)
	return append(out, rest...), nil
}

// ListView returns the records of t for management screens: parents by name
// without the active ones, children newest first.
func (b *Backend) ListView(t types.Table) ([]types.Record, error) {
	if !t.Valid() {
		return nil, types.ErrTableNotFound
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return listView(b.db, t)
}

func listView(q querier, t types.Table) ([]types.Record, error) {
	if t.IsChild() {
		return queryRecords(q, t, fmt.Sprintf(
			"SELECT data FROM %s ORDER BY created_timestamp DESC, rowid DESC", sqlTable(t)))
	}

	parents, err := parentsByName(q, t)
	if err != nil {
		return nil, err
	}
	out := make([]types.Record, 0, len(parents))
	for _, p := range parents {
		if !p.Base().Activated {
			out = append(out, p)
		}
	}
	return out, nil
}

// OptionList returns picker options for every parent in parentTable, sorted
// by name. Active parents are disabled.
func (b *Backend) OptionList(parentTable types.Table) ([]types.Option, error) {
	if !parentTable.IsParent() {
		return nil, fmt.Errorf("%s is not a parent table: %w", parentTable, types.ErrTableNotFound)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	parents, err := parentsByName(b.db, parentTable)
	if err != nil {
		return nil, err
	}
	options := make([]types.Option, 0, len(parents))
	for _, p := range parents {
		base := p.ParentBase()
		options = append(options, types.Option{
			Value:    base.ID,
			Label:    types.OptionLabel(base.Name, base.ID),
			Disabled: base.Activated,
		})
	}
	return options, nil
}

// ExerciseResultOptions returns an option per exercise result, newest first.
// Value and label are both the id.
func (b *Backend) ExerciseResultOptions() ([]types.Option, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	ids, err := stringColumn(b.db, "SELECT id FROM exercise_results ORDER BY created_timestamp DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	options := make([]types.Option, 0, len(ids))
	for _, id := range ids {
		options = append(options, types.Option{Value: id, Label: id})
	}
	return options, nil
}

// PreviousResultsFor returns the recorded results of an exercise, newest
// first.
func (b *Backend) PreviousResultsFor(exerciseID string) ([]*types.ExerciseResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	records, err := queryRecords(b.db, types.ExerciseResultsTable,
		"SELECT data FROM exercise_results WHERE parent_id = ? ORDER BY created_timestamp DESC, rowid DESC", exerciseID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.ExerciseResult, 0, len(records))
	for _, r := range records {
		out = append(out, r.(*types.ExerciseResult))
	}
	return out, nil
}

// parentsByName loads every parent of t sorted by name with the activated
// overlay applied.
func parentsByName(q querier, t types.Table) ([]types.ParentRecord, error) {
	records, err := queryRecords(q, t, fmt.Sprintf("SELECT data FROM %s ORDER BY name, rowid", sqlTable(t)))
	if err != nil {
		return nil, err
	}
	if err := markActivated(q, records...); err != nil {
		return nil, err
	}
	return asParents(records), nil
}
