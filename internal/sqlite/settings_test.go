package sqlite

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

func TestSettings_Defaults(t *testing.T) {
	b := setupBackend(t)

	for key, want := range types.DefaultSettings() {
		s, err := b.GetSetting(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, s.Value, key)
	}
}

func TestSettings_SetSetting(t *testing.T) {
	b := setupBackend(t)

	tests := []struct {
		name    string
		key     types.SettingKey
		value   any
		want    any
		wantErr error
	}{
		{name: "bool", key: types.SettingConsoleLogs, value: true, want: true},
		{name: "height as int", key: types.SettingUserHeightInches, value: 70, want: 70.0},
		{name: "height cleared", key: types.SettingUserHeightInches, value: nil, want: nil},
		{name: "retention", key: types.SettingLogRetentionDuration, value: types.DurationOneWeek, want: float64(types.DurationOneWeek)},
		{name: "bad type", key: types.SettingDarkMode, value: "yes", wantErr: types.ErrInvalidSetting},
		{name: "height out of range", key: types.SettingUserHeightInches, value: 900.0, wantErr: types.ErrInvalidSetting},
		{name: "unknown retention", key: types.SettingLogRetentionDuration, value: 12.0, wantErr: types.ErrInvalidSetting},
		{name: "unknown key", key: "theme", value: true, wantErr: types.ErrInvalidSetting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.SetSetting(tt.key, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, err := b.GetSettingValue(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_ClearRestoresDefaults(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.SetSetting(types.SettingWelcomeOverlay, false))

	require.NoError(t, b.ClearSettings())

	v, err := b.GetSettingValue(types.SettingWelcomeOverlay)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestSettings_InitKeepsStoredValues(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.SetSetting(types.SettingInfoMessages, false))
	_, err := b.db.Exec("DELETE FROM settings WHERE key = ?", string(types.SettingDarkMode))
	require.NoError(t, err)

	_, err = b.GetSetting(types.SettingDarkMode)
	require.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, b.InitSettings())
	v, err := b.GetSettingValue(types.SettingDarkMode)
	require.NoError(t, err)
	assert.Equal(t, true, v)
	v, err = b.GetSettingValue(types.SettingInfoMessages)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestLogs_AddAndGet(t *testing.T) {
	b := setupBackend(t, WithClock(func() int64 { return baseTime }))

	first := types.NewLog(types.LogInfo, "first", map[string]any{"n": 1.0})
	first.Timestamp = baseTime - 10
	require.NoError(t, b.AddLog(first))
	assert.Positive(t, first.AutoID)

	second := &types.Log{LogLevel: types.LogError, Label: "second", ErrorMessage: "boom"}
	require.NoError(t, b.AddLog(second))
	assert.Equal(t, baseTime, second.Timestamp, "missing timestamp comes from the clock")

	got, err := b.GetLog(first.AutoID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Label)
	assert.Equal(t, map[string]any{"n": 1.0}, got.Details)

	_, err = b.GetLog(9999)
	assert.ErrorIs(t, err, types.ErrNotFound)

	logs, err := b.GetLogs()
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "second", logs[0].Label, "newest first")

	assert.ErrorIs(t, b.AddLog(&types.Log{LogLevel: "LOUD", Label: "x"}), types.ErrInvalidData)

	require.NoError(t, b.ClearLogs())
	logs, err = b.GetLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestLogs_Purge(t *testing.T) {
	now := baseTime + int64(types.DurationOneYear)
	m := metrics.NewTestManager()
	b := setupBackend(t, WithClock(func() int64 { return now }), WithMetrics(m))

	ages := []types.Duration{types.DurationOneDay, types.DurationOneMonth, types.DurationSixMonths}
	for _, age := range ages {
		require.NoError(t, b.AddLog(&types.Log{
			Timestamp: now - int64(age),
			LogLevel:  types.LogInfo,
			Label:     "entry",
		}))
	}

	// Default retention is three months.
	n, err := b.PurgeLogs()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterLogsPurged))

	require.NoError(t, b.SetSetting(types.SettingLogRetentionDuration, types.DurationForever))
	n, err = b.PurgeLogs()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, b.SetSetting(types.SettingLogRetentionDuration, types.DurationOneWeek))
	n, err = b.PurgeLogs()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	logs, err := b.GetLogs()
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestLogs_SurviveRestart(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	l := types.NewLog(types.LogWarn, "kept", nil)
	require.NoError(t, b.AddLog(l))
	require.NoError(t, b.Detach())

	b2 := attachAt(t, dir, nil)
	got, err := b2.GetLog(l.AutoID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Label)

	next := types.NewLog(types.LogWarn, "next", nil)
	require.NoError(t, b2.AddLog(next))
	assert.Greater(t, next.AutoID, l.AutoID)
}
