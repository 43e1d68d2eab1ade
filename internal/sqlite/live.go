package sqlite

import (
	"context"

	"github.com/mesh-intelligence/repbook/internal/live"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

// Live queries emit their current result, then a fresh one after every write
// to a table they read. The channel closes when ctx ends or the backend
// detaches.

// LiveSettings watches GetSettings.
func (b *Backend) LiveSettings(ctx context.Context) (<-chan live.Result[[]types.Setting], error) {
	h, err := b.liveHub()
	if err != nil {
		return nil, err
	}
	return live.Watch(ctx, h, b.GetSettings, types.SettingsTable), nil
}

// LiveLogs watches GetLogs.
func (b *Backend) LiveLogs(ctx context.Context) (<-chan live.Result[[]*types.Log], error) {
	h, err := b.liveHub()
	if err != nil {
		return nil, err
	}
	return live.Watch(ctx, h, b.GetLogs, types.LogsTable), nil
}

// LiveListView watches ListView(t).
func (b *Backend) LiveListView(ctx context.Context, t types.Table) (<-chan live.Result[[]types.Record], error) {
	if !t.Valid() {
		return nil, types.ErrTableNotFound
	}
	h, err := b.liveHub()
	if err != nil {
		return nil, err
	}
	return live.Watch(ctx, h, func() ([]types.Record, error) { return b.ListView(t) }, viewTopics(t)...), nil
}

// LiveDashboard watches DashboardView(parentTable).
func (b *Backend) LiveDashboard(ctx context.Context, parentTable types.Table) (<-chan live.Result[[]types.ParentRecord], error) {
	if !parentTable.IsParent() {
		return nil, types.ErrTableNotFound
	}
	h, err := b.liveHub()
	if err != nil {
		return nil, err
	}
	query := func() ([]types.ParentRecord, error) { return b.DashboardView(parentTable) }
	return live.Watch(ctx, h, query, viewTopics(parentTable)...), nil
}

// LiveActiveWorkout watches GetActiveWorkout. The value is nil while no
// session is active.
func (b *Backend) LiveActiveWorkout(ctx context.Context) (<-chan live.Result[*types.ActiveWorkout], error) {
	h, err := b.liveHub()
	if err != nil {
		return nil, err
	}
	return live.Watch(ctx, h, b.GetActiveWorkout, sessionTopics()...), nil
}

// viewTopics are the topics a view of t depends on. Parent views also change
// when a session begins or ends.
func viewTopics(t types.Table) []string {
	if t.IsParent() {
		return []string{string(t), types.SessionTable}
	}
	return []string{string(t)}
}

func (b *Backend) liveHub() (*live.Hub, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.hub, nil
}
