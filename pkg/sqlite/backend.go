// Package sqlite provides the public API for the repbook SQLite backend.
// It exposes the backend type and its constructor while keeping the
// implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/internal/sqlite"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

// Backend is the SQLite store. Beyond types.Store it offers the workout
// session, view, settings, log and backup operations.
type Backend = sqlite.Backend

// Option configures a Backend.
type Option = sqlite.Option

// WithMetrics records store activity on m.
func WithMetrics(m *metrics.Manager) Option { return sqlite.WithMetrics(m) }

// WithClock replaces the millisecond clock used for store-assigned
// timestamps.
func WithClock(now func() int64) Option { return sqlite.WithClock(now) }

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "~/.local/share/repbook",
//	})
//	defer backend.Detach()
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}

var _ types.Store = (*Backend)(nil)
