package types

import (
	"fmt"
	"sort"
)

// SettingKey identifies an application setting.
type SettingKey string

// Setting keys.
const (
	SettingUserHeightInches      SettingKey = "user-height-inches"
	SettingWelcomeOverlay        SettingKey = "welcome-overlay"
	SettingDashboardDescriptions SettingKey = "dashboard-descriptions"
	SettingDarkMode              SettingKey = "dark-mode"
	SettingConsoleLogs           SettingKey = "console-logs"
	SettingInfoMessages          SettingKey = "info-messages"
	SettingLogRetentionDuration  SettingKey = "log-retention-duration"
)

// SettingKeys lists every setting key in display order.
var SettingKeys = []SettingKey{
	SettingUserHeightInches,
	SettingWelcomeOverlay,
	SettingDashboardDescriptions,
	SettingDarkMode,
	SettingConsoleLogs,
	SettingInfoMessages,
	SettingLogRetentionDuration,
}

// Setting is a key/value pair. Value is nil, a bool, or a float64 depending
// on the key.
type Setting struct {
	Key   SettingKey `json:"key"`
	Value any        `json:"value"`
}

// Duration is a retention period in milliseconds.
type Duration int64

// Retention durations.
const (
	DurationOneDay      Duration = 24 * 60 * 60 * 1000
	DurationOneWeek     Duration = 7 * DurationOneDay
	DurationOneMonth    Duration = 30 * DurationOneDay
	DurationThreeMonths Duration = 3 * DurationOneMonth
	DurationSixMonths   Duration = 6 * DurationOneMonth
	DurationOneYear     Duration = 365 * DurationOneDay
	DurationForever     Duration = MaxSafeInteger
)

// durationNames maps the display names of retention durations.
var durationNames = map[string]Duration{
	"One Day":      DurationOneDay,
	"One Week":     DurationOneWeek,
	"One Month":    DurationOneMonth,
	"Three Months": DurationThreeMonths,
	"Six Months":   DurationSixMonths,
	"One Year":     DurationOneYear,
	"Forever":      DurationForever,
}

// DurationNames returns the retention duration names sorted by length of the
// period.
func DurationNames() []string {
	names := make([]string, 0, len(durationNames))
	for n := range durationNames {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return durationNames[names[i]] < durationNames[names[j]] })
	return names
}

// ParseDuration resolves a retention duration display name.
func ParseDuration(name string) (Duration, error) {
	d, ok := durationNames[name]
	if !ok {
		return 0, fmt.Errorf("retention duration %q: %w", name, ErrInvalidSetting)
	}
	return d, nil
}

// Valid reports whether d is one of the retention durations.
func (d Duration) Valid() bool {
	for _, known := range durationNames {
		if d == known {
			return true
		}
	}
	return false
}

// DefaultSettings returns the value each key takes when unset.
func DefaultSettings() map[SettingKey]any {
	return map[SettingKey]any{
		SettingUserHeightInches:      nil,
		SettingWelcomeOverlay:        true,
		SettingDashboardDescriptions: true,
		SettingDarkMode:              true,
		SettingConsoleLogs:           false,
		SettingInfoMessages:          true,
		SettingLogRetentionDuration:  float64(DurationThreeMonths),
	}
}

// ValidSettingKey reports whether k is a known setting key.
func ValidSettingKey(k SettingKey) bool {
	for _, known := range SettingKeys {
		if k == known {
			return true
		}
	}
	return false
}

// NormalizeSetting checks value against the type its key expects and
// returns it in stored form: bools stay bools, numbers become float64.
func NormalizeSetting(key SettingKey, value any) (any, error) {
	switch key {
	case SettingWelcomeOverlay, SettingDashboardDescriptions, SettingDarkMode,
		SettingConsoleLogs, SettingInfoMessages:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%s expects a boolean: %w", key, ErrInvalidSetting)
		}
		return b, nil
	case SettingUserHeightInches:
		if value == nil {
			return nil, nil
		}
		f, ok := toFloat(value)
		if !ok || !inRange(f, MinInches, MaxInches) {
			return nil, fmt.Errorf("%s expects inches between %d and %d: %w", key, MinInches, MaxInches, ErrInvalidSetting)
		}
		return f, nil
	case SettingLogRetentionDuration:
		f, ok := toFloat(value)
		if !ok || !Duration(f).Valid() {
			return nil, fmt.Errorf("%s expects a retention duration: %w", key, ErrInvalidSetting)
		}
		return f, nil
	}
	return nil, fmt.Errorf("setting key %q: %w", key, ErrInvalidSetting)
}

// RetentionDuration reads the log retention duration from a setting value.
// ok is false when the value is unset or not a number.
func RetentionDuration(value any) (d Duration, ok bool) {
	f, ok := toFloat(value)
	if !ok {
		return 0, false
	}
	return Duration(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case Duration:
		return float64(n), true
	}
	return 0, false
}
