package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// loadAllJSONL reads each JSONL file from dataDir and inserts its lines into
// the matching SQLite table. Loading is transactional: all files load or the
// database stays empty. Malformed lines are skipped; unknown JSON fields are
// ignored so older and newer files load alike.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range jsonlTables() {
		lines, err := readJSONL(jsonlFile(dataDir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		skipped := 0
		for _, line := range lines {
			if err := loadLine(tx, name, line); err != nil {
				skipped++
			}
		}
		if skipped > 0 {
			log.WithFields(log.Fields{"table": name, "skipped": skipped}).
				Warn("skipped unreadable JSONL lines")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// loadLine inserts one JSONL line into the table it belongs to.
func loadLine(tx *sql.Tx, name string, line json.RawMessage) error {
	switch name {
	case types.SettingsTable:
		var s types.Setting
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		return putSettingRow(tx, s.Key, s.Value)
	case types.LogsTable:
		var l types.Log
		if err := json.Unmarshal(line, &l); err != nil {
			return err
		}
		_, err := insertLogRow(tx, &l)
		return err
	case types.SessionTable:
		var s sessionRow
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		return putSessionRow(tx, &s)
	case types.SessionRecordsTable:
		var sr sessionRecordJSON
		if err := json.Unmarshal(line, &sr); err != nil {
			return err
		}
		r, err := types.DecodeRecord(sr.Table, sr.Data)
		if err != nil {
			return err
		}
		return putSessionRecord(tx, r, sr.Position)
	}

	t, err := types.ParseTable(name)
	if err != nil {
		return err
	}
	r, err := types.DecodeRecord(t, line)
	if err != nil {
		return err
	}
	if r.Base().ID == "" {
		return types.ErrInvalidID
	}
	return upsertRecord(tx, r)
}
