package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// AddLog appends l to the diagnostic log and sets its AutoID.
func (b *Backend) AddLog(l *types.Log) error {
	if l == nil {
		return fmt.Errorf("nil log: %w", types.ErrInvalidData)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	entry := *l
	entry.AutoID = 0
	if entry.Timestamp == 0 {
		entry.Timestamp = b.now()
	}
	id, err := insertLogRow(b.db, &entry)
	if err != nil {
		return err
	}
	l.AutoID = id
	l.Timestamp = entry.Timestamp
	return b.commit(types.LogsTable)
}

// GetLog returns the entry with the given AutoID.
func (b *Backend) GetLog(autoID int64) (*types.Log, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	var data string
	err := b.db.QueryRow("SELECT data FROM logs WHERE auto_id = ?", autoID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("log %d: %w", autoID, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var l types.Log
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, fmt.Errorf("decoding log %d: %w", autoID, err)
	}
	return &l, nil
}

// GetLogs returns every entry, newest first.
func (b *Backend) GetLogs() ([]*types.Log, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return queryLogs(b.db, "SELECT data FROM logs ORDER BY timestamp DESC, auto_id DESC")
}

// PurgeLogs deletes the entries older than the log retention setting and
// returns how many were removed. Nothing is removed when retention is unset
// or Forever.
func (b *Backend) PurgeLogs() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return 0, types.ErrStoreDetached
	}

	s, err := getSetting(b.db, types.SettingLogRetentionDuration)
	if err != nil || s == nil {
		return 0, err
	}
	retention, ok := types.RetentionDuration(s.Value)
	if !ok || retention <= 0 || retention == types.DurationForever {
		return 0, nil
	}

	res, err := b.db.Exec("DELETE FROM logs WHERE ? - timestamp > ?", b.now(), int64(retention))
	if err != nil {
		return 0, fmt.Errorf("purging logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if b.metrics != nil {
		b.metrics.CounterLogsPurged.Add(float64(n))
	}
	return int(n), b.commit(types.LogsTable)
}

// ClearLogs removes every entry.
func (b *Backend) ClearLogs() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	if _, err := b.db.Exec("DELETE FROM logs"); err != nil {
		return err
	}
	return b.commit(types.LogsTable)
}

// insertLogRow stores l. A zero AutoID is assigned by SQLite and written back
// into l; a set AutoID, as loaded from JSONL or a backup, replaces any entry
// with the same id.
func insertLogRow(q querier, l *types.Log) (int64, error) {
	if _, ok := types.ParseLogLevel(string(l.LogLevel)); !ok {
		return 0, fmt.Errorf("log level %q: %w", l.LogLevel, types.ErrInvalidData)
	}
	if l.Timestamp <= 0 {
		return 0, fmt.Errorf("log timestamp %d: %w", l.Timestamp, types.ErrInvalidData)
	}

	if l.AutoID == 0 {
		res, err := q.Exec("INSERT INTO logs (timestamp, data) VALUES (?, '{}')", l.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("inserting log: %w", err)
		}
		if l.AutoID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	}

	data, err := json.Marshal(l)
	if err != nil {
		return 0, fmt.Errorf("encoding log: %w", err)
	}
	_, err = q.Exec("INSERT OR REPLACE INTO logs (auto_id, timestamp, data) VALUES (?, ?, ?)",
		l.AutoID, l.Timestamp, string(data))
	if err != nil {
		return 0, fmt.Errorf("writing log %d: %w", l.AutoID, err)
	}
	return l.AutoID, nil
}

func queryLogs(q querier, query string, args ...any) ([]*types.Log, error) {
	lines, err := dataLines(q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	logs := make([]*types.Log, 0, len(lines))
	for _, line := range lines {
		var l types.Log
		if err := json.Unmarshal(line, &l); err != nil {
			return nil, fmt.Errorf("decoding log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, nil
}

func logLines(q querier) ([]json.RawMessage, error) {
	return dataLines(q, "SELECT data FROM logs ORDER BY auto_id")
}
