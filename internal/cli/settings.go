package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

func (a *app) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change application settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every setting",
			Args:  exactArgs(0),
			RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
				settings, err := s.GetSettings()
				if err != nil {
					return fmt.Errorf("get settings: %w", err)
				}
				return a.emit(cmd, settings, func(w io.Writer) { printSettings(w, settings) })
			}),
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  exactArgs(1),
			RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
				setting, err := s.GetSetting(types.SettingKey(args[0]))
				if err != nil {
					return fmt.Errorf("get setting %s: %w", args[0], err)
				}
				return a.emit(cmd, setting, func(w io.Writer) {
					fmt.Fprintln(w, formatSetting(setting.Key, setting.Value))
				})
			}),
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting",
			Long: "Set stores a new value for a setting. Values are JSON (true, false, 70,\n" +
				"null); the log retention also accepts a duration name such as\n" +
				"\"One Week\" or \"Forever\".",
			Args: exactArgs(2),
			RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
				key := types.SettingKey(args[0])
				value, err := parseSettingValue(key, args[1])
				if err != nil {
					return err
				}
				if err := s.SetSetting(key, value); err != nil {
					return fmt.Errorf("set setting %s: %w", key, err)
				}
				stored, err := s.GetSettingValue(key)
				if err != nil {
					return err
				}
				return a.emit(cmd, types.Setting{Key: key, Value: stored}, func(w io.Writer) {
					fmt.Fprintln(w, formatSetting(key, stored))
				})
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore every setting to its default",
			Args:  exactArgs(0),
			RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
				if err := s.ClearSettings(); err != nil {
					return fmt.Errorf("reset settings: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults")
				return nil
			}),
		},
	)
	return cmd
}

func parseSettingValue(key types.SettingKey, arg string) (any, error) {
	if key == types.SettingLogRetentionDuration {
		if d, err := types.ParseDuration(arg); err == nil {
			return float64(d), nil
		}
	}
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %q is not a JSON value", types.ErrInvalidSetting, key, arg)
	}
	return v, nil
}

func printSettings(w io.Writer, settings []types.Setting) {
	for _, s := range settings {
		fmt.Fprintln(w, formatSetting(s.Key, s.Value))
	}
}

// formatSetting renders a setting, naming retention durations.
func formatSetting(key types.SettingKey, value any) string {
	if key == types.SettingLogRetentionDuration {
		if d, ok := types.RetentionDuration(value); ok {
			for _, name := range types.DurationNames() {
				if known, _ := types.ParseDuration(name); known == d {
					return fmt.Sprintf("%s = %s", key, name)
				}
			}
		}
	}
	if value == nil {
		return fmt.Sprintf("%s = (unset)", key)
	}
	return fmt.Sprintf("%s = %v", key, value)
}
