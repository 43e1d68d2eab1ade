package types

import "errors"

// Store is a backend-agnostic handle on the record tables. Callers attach to
// a backend, access tables by identifier, and detach when done.
type Store interface {
	// GetTable returns the RecordTable for t. Returns ErrTableNotFound if t
	// is not a record table.
	GetTable(t Table) (RecordTable, error)

	// Attach connects the Store to the backend described by config. Creates
	// the DataDir if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach,
	// operations return ErrStoreDetached.
	Detach() error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)
