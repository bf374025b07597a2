package store

import (
	"context"
	"errors"
)

// Row is one result row keyed by result column name.
type Row map[string]any

// Statement is a native statement with its bound arguments.
type Statement struct {
	Query string
	Args  []any
}

// Capabilities describes what a backend can guarantee.
type Capabilities struct {
	// Transactions reports multi-statement transactions with rollback.
	Transactions bool

	// AtomicBatch reports that Batch applies all statements or none.
	AtomicBatch bool

	// AffectedRows reports that Exec returns a meaningful row count.
	// Backends without it return -1.
	AffectedRows bool

	// AllowFiltering reports that selects on non-key columns need the
	// ALLOW FILTERING suffix.
	AllowFiltering bool

	// MultiKeyIn reports that one IN predicate may address many keys.
	MultiKeyIn bool
}

// Querier runs statements.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Tx is a native transaction.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// Conn is a long-lived store connection shared by concurrent requests.
// Implementations must be safe for concurrent use.
type Conn interface {
	Querier

	// Begin starts a transaction. Backends without Transactions return
	// ErrNoTransactions.
	Begin(ctx context.Context) (Tx, error)

	// Batch executes stmts together. It is atomic when AtomicBatch is set.
	Batch(ctx context.Context, stmts []Statement) error

	Capabilities() Capabilities
	Close() error
}

// ErrNoTransactions is returned by Begin on backends without transactions.
var ErrNoTransactions = errors.New("store does not support transactions")
