package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

// InitSettings stores the default value of every setting key that has none.
func (b *Backend) InitSettings() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	if err := b.withTx(func(tx *sql.Tx) error { return initSettings(tx) }); err != nil {
		return err
	}
	return b.commit(types.SettingsTable)
}

// GetSetting returns the stored setting for key.
// Returns ErrNotFound when the key has never been stored.
func (b *Backend) GetSetting(key types.SettingKey) (*types.Setting, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	s, err := getSetting(b.db, key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("setting %s: %w", key, types.ErrNotFound)
	}
	return s, nil
}

// GetSettingValue returns the value stored for key, or nil when unset.
func (b *Backend) GetSettingValue(key types.SettingKey) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	s, err := getSetting(b.db, key)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Value, nil
}

// GetSettings returns every stored setting in key display order.
func (b *Backend) GetSettings() ([]types.Setting, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return allSettings(b.db)
}

// SetSetting validates value for key and stores it.
func (b *Backend) SetSetting(key types.SettingKey, value any) error {
	v, err := types.NormalizeSetting(key, value)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	if err := putSettingRow(b.db, key, v); err != nil {
		return err
	}
	return b.commit(types.SettingsTable)
}

// ClearSettings removes every setting, then restores the defaults.
func (b *Backend) ClearSettings() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	err := b.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM settings"); err != nil {
			return err
		}
		return initSettings(tx)
	})
	if err != nil {
		return err
	}
	return b.commit(types.SettingsTable)
}

// initSettings inserts the default of each missing key.
func initSettings(q querier) error {
	_, err := fillDefaultSettings(q)
	return err
}

// fillDefaultSettings inserts the default of each key without a stored value
// and returns the number inserted.
func fillDefaultSettings(q querier) (int, error) {
	defaults := types.DefaultSettings()
	added := 0
	for _, key := range types.SettingKeys {
		s, err := getSetting(q, key)
		if err != nil {
			return added, err
		}
		if s != nil {
			continue
		}
		if err := putSettingRow(q, key, defaults[key]); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func getSetting(q querier, key types.SettingKey) (*types.Setting, error) {
	var raw string
	err := q.QueryRow("SELECT value FROM settings WHERE key = ?", string(key)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading setting %s: %w", key, err)
	}
	s := &types.Setting{Key: key}
	if err := json.Unmarshal([]byte(raw), &s.Value); err != nil {
		return nil, fmt.Errorf("decoding setting %s: %w", key, err)
	}
	return s, nil
}

func allSettings(q querier) ([]types.Setting, error) {
	out := make([]types.Setting, 0, len(types.SettingKeys))
	for _, key := range types.SettingKeys {
		s, err := getSetting(q, key)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// putSettingRow stores value as JSON text. Unknown keys are rejected.
func putSettingRow(q querier, key types.SettingKey, value any) error {
	if !types.ValidSettingKey(key) {
		return fmt.Errorf("setting key %q: %w", key, types.ErrInvalidSetting)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	_, err = q.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", string(key), string(data))
	return err
}

func settingLines(q querier) ([]json.RawMessage, error) {
	settings, err := allSettings(q)
	if err != nil {
		return nil, err
	}
	lines := make([]json.RawMessage, 0, len(settings))
	for _, s := range settings {
		line, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
