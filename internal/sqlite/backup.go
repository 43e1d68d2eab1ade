package sqlite

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// Backup exports settings, logs and every record table. Parents leave
// without their previous-child cache and no record is marked activated.
func (b *Backend) Backup() (*types.BackupData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	data := &types.BackupData{
		AppName:          types.AppName,
		DatabaseVersion:  types.DatabaseVersion,
		CreatedTimestamp: b.now(),
	}

	settings, err := allSettings(b.db)
	if err != nil {
		return nil, err
	}
	data.Settings = settings

	logs, err := queryLogs(b.db, "SELECT data FROM logs ORDER BY auto_id")
	if err != nil {
		return nil, err
	}
	data.Logs = make([]types.Log, 0, len(logs))
	for _, l := range logs {
		data.Logs = append(data.Logs, *l)
	}

	for _, t := range types.StandardTables {
		records, err := queryRecords(b.db, t, fmt.Sprintf("SELECT data FROM %s ORDER BY rowid", sqlTable(t)))
		if err != nil {
			return nil, err
		}
		if err := data.SetRecords(t, records); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Restore imports a backup on top of the current data: settings, then logs,
// then parent tables before their children so results find their parents.
// Invalid entries are skipped; the returned error combines every failure,
// including one *types.PartialImportError per table that skipped records.
func (b *Backend) Restore(data *types.BackupData) error {
	if data == nil {
		return fmt.Errorf("nil backup: %w", types.ErrInvalidData)
	}
	if data.AppName != types.AppName {
		return fmt.Errorf("backup from %q: %w", data.AppName, types.ErrInvalidData)
	}
	if data.DatabaseVersion > types.DatabaseVersion {
		return fmt.Errorf("backup database version %d is newer than %d: %w",
			data.DatabaseVersion, types.DatabaseVersion, types.ErrInvalidData)
	}

	var errs error
	for _, s := range data.Settings {
		errs = multierr.Append(errs, b.SetSetting(s.Key, s.Value))
	}
	errs = multierr.Append(errs, b.restoreLogs(data.Logs))

	for _, group := range [][]types.Table{types.ParentTables, types.ChildTables} {
		for _, t := range group {
			table, err := b.GetTable(t)
			if err != nil {
				return multierr.Append(errs, err)
			}
			errs = multierr.Append(errs, table.Import(data.Records(t)))
		}
	}

	if errs != nil {
		log.WithError(errs).Warn("backup restored with failures")
	}
	return errs
}

// restoreLogs appends the backup's log entries with fresh AutoIDs, keeping
// their timestamps.
func (b *Backend) restoreLogs(logs []types.Log) error {
	if len(logs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	skipped := 0
	err := b.withTx(func(tx *sql.Tx) error {
		skipped = 0
		for _, l := range logs {
			l.AutoID = 0
			if _, err := insertLogRow(tx, &l); err != nil {
				skipped++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := b.commit(types.LogsTable); err != nil {
		return err
	}
	if skipped > 0 {
		return fmt.Errorf("%d log entries skipped: %w", skipped, types.ErrInvalidData)
	}
	return nil
}
