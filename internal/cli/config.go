package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/repbook/internal/logging"
	"github.com/mesh-intelligence/repbook/internal/paths"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeySyncStrategy  = "sync_strategy"
	cfgKeyBatchSize     = "batch_size"
	cfgKeyBatchInterval = "batch_interval"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogFile       = "log_file"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# repbook configuration

# Backend selection
backend: sqlite

# Data directory (optional; overridable by --data-dir and REPBOOK_DATA_DIR)
# data_dir:

# JSONL persistence: immediate, on_close or batch
sync_strategy: immediate
# batch_size: 10
# batch_interval: 5

# Process log (stderr when log_file is empty)
log_level: warn
# log_file:
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. A missing config.yaml
// is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyBatchSize, types.DefaultBatchSize)
	v.SetDefault(cfgKeyBatchInterval, types.DefaultBatchInterval)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("REPBOOK")
	for _, key := range []string{cfgKeySyncStrategy, cfgKeyLogLevel, cfgKeyLogFile} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// setup resolves the configuration directory, loads config.yaml and
// configures the process logger. The version command needs none of it.
func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.noColor {
		color.NoColor = true
	}
	if a.flags.metrics {
		a.metricsOut = cmd.ErrOrStderr()
	}
	if cmd.Name() == "version" {
		return nil
	}
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(dir)
	if err != nil {
		return err
	}
	a.configDir = dir
	a.config = v

	level := a.flags.logLevel
	if level == "" {
		level = v.GetString(cfgKeyLogLevel)
	}
	a.logs = logging.Setup(logging.SetupParams{
		LogFileName: v.GetString(cfgKeyLogFile),
		LogLevel:    level,
	})
	log.WithField("config_dir", dir).Debug("configuration loaded")
	return nil
}

// dataDir resolves the data directory: flag, config.yaml, environment, then
// the platform default.
func (a *app) dataDir() (string, error) {
	return paths.ResolveDataDir(a.flags.dataDir, a.config.GetString(cfgKeyDataDir))
}

// backendConfig builds the store configuration from config.yaml.
func (a *app) backendConfig() (types.Config, error) {
	dir, err := a.dataDir()
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend: strings.ToLower(a.config.GetString(cfgKeyBackend)),
		DataDir: dir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  a.config.GetString(cfgKeySyncStrategy),
			BatchSize:     a.config.GetInt(cfgKeyBatchSize),
			BatchInterval: a.config.GetInt(cfgKeyBatchInterval),
		},
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("%w: config.yaml: %v", errUsage, err)
	}
	return cfg, nil
}
