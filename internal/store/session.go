package store

import (
	"context"
	"errors"
	"log/slog"
)

// Session is the request-scoped view of a Conn. It tracks transaction depth
// so nested BeginTransaction/Commit pairs share one native transaction.
//
// A Session is not safe for concurrent use; each request owns one.
type Session struct {
	conn   Conn
	caps   Capabilities
	logger *slog.Logger

	tx    Tx
	depth int
}

// NewSession creates a Session over conn.
func NewSession(conn Conn, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{conn: conn, caps: conn.Capabilities(), logger: logger}
}

// Capabilities returns the backend capabilities.
func (s *Session) Capabilities() Capabilities {
	return s.caps
}

// SupportsAtomicBatch reports whether Batch is all-or-nothing.
func (s *Session) SupportsAtomicBatch() bool {
	return s.caps.AtomicBatch
}

// TransactionDepth returns the number of open BeginTransaction calls.
func (s *Session) TransactionDepth() int {
	return s.depth
}

// InTransaction reports whether statements run inside a native transaction.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

func (s *Session) querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// Query runs a select, inside the open transaction if there is one.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	s.logger.Debug("query", "statement", query, "args", len(args))
	rows, err := s.querier().Query(ctx, query, args...)
	if err != nil {
		s.logger.Error("query failed", "statement", query, "error", err)
		return nil, err
	}
	return rows, nil
}

// Exec runs a write, inside the open transaction if there is one.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	s.logger.Debug("exec", "statement", query, "args", len(args))
	n, err := s.querier().Exec(ctx, query, args...)
	if err != nil {
		s.logger.Error("exec failed", "statement", query, "error", err)
		return 0, err
	}
	return n, nil
}

// Batch runs stmts through the backend batch. Inside a native transaction
// the statements run in order on the transaction instead.
func (s *Session) Batch(ctx context.Context, stmts []Statement) error {
	if s.tx != nil {
		for _, st := range stmts {
			if _, err := s.Exec(ctx, st.Query, st.Args...); err != nil {
				return err
			}
		}
		return nil
	}
	s.logger.Debug("batch", "statements", len(stmts))
	if err := s.conn.Batch(ctx, stmts); err != nil {
		s.logger.Error("batch failed", "statements", len(stmts), "error", err)
		return err
	}
	return nil
}

// BeginTransaction opens a transaction level. The outermost level starts a
// native transaction when the backend supports one; otherwise only the depth
// is tracked and rollback is advisory.
func (s *Session) BeginTransaction(ctx context.Context) error {
	if s.depth == 0 && s.caps.Transactions {
		tx, err := s.conn.Begin(ctx)
		if err != nil && !errors.Is(err, ErrNoTransactions) {
			return err
		}
		s.tx = tx
	}
	s.depth++
	return nil
}

// Commit closes one transaction level, committing the native transaction
// when the outermost level closes.
func (s *Session) Commit() error {
	if s.depth == 0 {
		return nil
	}
	s.depth--
	if s.depth > 0 || s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

// Rollback abandons every open level. Without a native transaction it only
// resets the depth.
func (s *Session) Rollback() error {
	if s.depth == 0 {
		return nil
	}
	s.depth = 0
	if s.tx == nil {
		s.logger.Warn("rollback requested without a native transaction; writes already applied remain")
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}
