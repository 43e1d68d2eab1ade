package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/mesh-intelligence/repbook/internal/logging"
	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/pkg/sqlite"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

// store is an attached backend plus the hook that mirrors process warnings
// into its log table and the registry its metrics live in.
type store struct {
	*sqlite.Backend
	hook     *logging.StoreHook
	registry *prometheus.Registry
}

// open attaches the backend described by config.yaml. Logs older than the
// retention setting are purged on every open, and the console-logs setting
// raises the process log to info level.
func (a *app) open() (*store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg, err := a.backendConfig()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewManager("repbook", "cli", reg)
	b := sqlite.NewBackend(sqlite.WithMetrics(m))
	if err := b.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}

	s := &store{Backend: b, hook: logging.NewStoreHook(b), registry: reg}
	log.AddHook(s.hook)
	a.store = s

	n, err := b.PurgeLogs()
	if err != nil {
		log.WithError(err).Warn("purge logs")
	} else if n > 0 {
		log.WithField("purged", n).Debug("expired logs removed")
	}
	if v, err := b.GetSettingValue(types.SettingConsoleLogs); err == nil && v == true && !log.IsLevelEnabled(log.InfoLevel) {
		log.SetLevel(log.InfoLevel)
	}
	return s, nil
}

// withStore adapts fn into a RunE that runs against an attached store and
// detaches it afterwards, also when fn fails.
func (a *app) withStore(fn func(cmd *cobra.Command, args []string, s *store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		s, err := a.open()
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, a.closeStore())
		}()
		return fn(cmd, args, s)
	}
}

// closeStore detaches the store after draining the log hook, then writes
// the metrics when --metrics is set.
func (a *app) closeStore() error {
	s := a.store
	if s == nil {
		return nil
	}
	a.store = nil
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	s.hook.Close()
	err := s.Detach()
	if a.metricsOut != nil {
		err = multierr.Append(err, writeMetrics(a.metricsOut, s.registry))
	}
	return err
}

// writeMetrics dumps every family in reg in the Prometheus text format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// close releases the log file.
func (a *app) close() error {
	err := a.closeStore()
	if a.logs != nil {
		err = multierr.Append(err, a.logs.Close())
		a.logs = nil
	}
	return err
}
