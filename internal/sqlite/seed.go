package sqlite

import (
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// seedSettings stores the default of every setting key missing after the
// JSONL load, then rewrites settings.jsonl when anything was added. On a
// fresh data directory this seeds every key; on later attaches it only fills
// keys introduced since the file was written.
func seedSettings(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	added, err := fillDefaultSettings(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	if added == 0 {
		return nil
	}

	log.WithField("added", added).Debug("seeded default settings")
	if err := persistTable(db, dataDir, types.SettingsTable); err != nil {
		return fmt.Errorf("persisting seeded settings: %w", err)
	}
	return nil
}
