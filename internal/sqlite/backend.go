// Package sqlite implements the repbook storage backend. SQLite is the query
// engine; per-table JSONL files in the data directory are the source of
// truth and are loaded into a fresh database on every Attach.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/repbook/internal/live"
	"github.com/mesh-intelligence/repbook/internal/metrics"
	"github.com/mesh-intelligence/repbook/pkg/types"
)

// dbFileName is the query database rebuilt from JSONL on Attach.
const dbFileName = "repbook.db"

// querier is satisfied by *sql.DB and *sql.Tx. Helpers that run inside or
// outside a transaction take a querier.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Backend implements types.Store using SQLite as the query engine and JSONL
// files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB
	tables   map[types.Table]*Table

	hub     *live.Hub
	metrics *metrics.Manager
	now     func() int64

	// Sync strategy state
	syncStrategy  string         // effective sync strategy: immediate, on_close, batch
	batchSize     int            // number of writes before batch flush
	batchInterval time.Duration  // time between batch flushes
	pendingWrites []pendingWrite // queue of writes pending JSONL persist
	batchTimer    *time.Timer    // timer for interval-based batch flush
	batchMu       sync.Mutex     // protects pendingWrites and batchTimer
}

// pendingWrite is a deferred JSONL rewrite of one table. A table is queued at
// most once; the rewrite reads the table state at flush time.
type pendingWrite struct {
	tableName string
	persist   func() error
}

// Option configures a Backend.
type Option func(*Backend)

// WithMetrics records store activity on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(b *Backend) { b.metrics = m }
}

// WithClock replaces the millisecond clock used for timestamps the store
// assigns itself (session records, finish times, log purges).
func WithClock(now func() int64) Option {
	return func(b *Backend) { b.now = now }
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		tables: make(map[types.Table]*Table),
		now:    types.NowMillis,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetTable returns the RecordTable for t.
// Returns ErrTableNotFound if t is not a record table.
// Returns ErrStoreDetached if the backend is not attached.
func (b *Backend) GetTable(t types.Table) (types.RecordTable, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	table, ok := b.tables[t]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, builds the SQLite schema, loads the
// JSONL files and seeds default settings.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is a cache of the JSONL files; start from scratch.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)
	_ = os.Remove(dbPath + "-journal")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}

	for _, stmt := range schemaDDL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}

	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	if err := seedSettings(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("seed settings: %w", err)
	}

	active, err := hasSession(db)
	if err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.hub = live.NewHub()

	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	b.attached = true
	for _, t := range types.StandardTables {
		b.tables[t] = newTable(b, t)
	}
	b.setSessionGauge(active)

	log.WithFields(log.Fields{
		"data_dir": dataDir,
		"sync":     b.syncStrategy,
	}).Debug("store attached")
	return nil
}

// Detach releases all resources held by the backend.
// Flushes pending writes, closes live subscriptions and the SQLite
// connection. After Detach, all operations return ErrStoreDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWritesLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	b.hub.Close()

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[types.Table]*Table)
	return nil
}

// DataDir returns the directory holding the JSONL files.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dataDir
}

// Flush writes every queued JSONL rewrite now, regardless of sync strategy.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.flushPendingWritesLocked()
}

// withTx runs fn in a transaction, committing when fn returns nil.
// The caller must hold b.mu.
func (b *Backend) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// commit persists the JSONL files of the named tables and notifies live
// queries. It runs after a transaction commits. The caller must hold b.mu.
func (b *Backend) commit(names ...string) error {
	names = dedupe(names)
	b.hub.Publish(names...)

	if b.shouldPersistImmediately() {
		start := time.Now()
		defer b.observeFlush(start)
		for _, name := range names {
			if err := persistTable(b.db, b.dataDir, name); err != nil {
				return fmt.Errorf("persist %s: %w", name, err)
			}
		}
		return nil
	}

	for _, name := range names {
		b.queueWrite(name, func() error {
			return persistTable(b.db, b.dataDir, name)
		})
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Sync strategy methods

// shouldPersistImmediately returns true if JSONL writes should happen immediately.
// Returns true for "immediate" strategy (default), false for "on_close" and "batch".
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a table rewrite to the pending queue unless one is already
// queued. For the batch strategy the queue flushes once it reaches the batch
// size. The caller must hold b.mu.
func (b *Backend) queueWrite(tableName string, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	for _, pw := range b.pendingWrites {
		if pw.tableName == tableName {
			return
		}
	}
	b.pendingWrites = append(b.pendingWrites, pendingWrite{
		tableName: tableName,
		persist:   persist,
	})

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		if err := b.flushPendingWritesBatchLocked(); err != nil {
			log.WithError(err).Warn("batch flush failed")
		}
	}
}

// flushPendingWritesLocked flushes all pending writes to JSONL files.
// The caller must hold b.mu write lock.
func (b *Backend) flushPendingWritesLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked executes all pending writes. Writes that fail
// stay queued for the next flush.
// The caller must hold b.batchMu lock.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}
	start := time.Now()
	defer b.observeFlush(start)

	for i, pw := range b.pendingWrites {
		if err := pw.persist(); err != nil {
			b.pendingWrites = b.pendingWrites[i:]
			return fmt.Errorf("flush %s: %w", pw.tableName, err)
		}
	}

	b.pendingWrites = nil
	return nil
}

// startBatchTimer starts the batch interval timer for periodic flushes.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		if err := b.flushPendingWritesLocked(); err != nil {
			log.WithError(err).Warn("interval flush failed")
		}

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}

// Metrics helpers. A backend without a manager records nothing.

func (b *Backend) countWrite(t types.Table, op string, n int) {
	if b.metrics != nil && n > 0 {
		b.metrics.CounterWrites.WithLabelValues(string(t), op).Add(float64(n))
	}
}

func (b *Backend) countValidationFailure(t types.Table) {
	if b.metrics != nil {
		b.metrics.CounterValidationFailures.WithLabelValues(string(t)).Inc()
	}
}

func (b *Backend) countImportSkipped(t types.Table, n int) {
	if b.metrics != nil && n > 0 {
		b.metrics.CounterImportSkipped.WithLabelValues(string(t)).Add(float64(n))
	}
}

func (b *Backend) countTransition(transition string) {
	if b.metrics != nil {
		b.metrics.CounterSessionTransitions.WithLabelValues(transition).Inc()
	}
}

func (b *Backend) setSessionGauge(active bool) {
	if b.metrics == nil {
		return
	}
	if active {
		b.metrics.GaugeSessionActive.Set(1)
	} else {
		b.metrics.GaugeSessionActive.Set(0)
	}
}

func (b *Backend) observeFlush(start time.Time) {
	if b.metrics != nil {
		b.metrics.HistFlushDuration.Observe(time.Since(start).Seconds())
	}
}
