package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/schema"
)

// SQLite is an embedded Conn backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ Conn = (*SQLite)(nil)

// OpenSQLite creates or opens a SQLite database at the given path and
// applies the required pragmas. Use ":memory:" only with care: the pool is
// limited to one connection, so the database lives as long as the Conn.
func OpenSQLite(path string) (*SQLite, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Capabilities implements Conn.
func (s *SQLite) Capabilities() Capabilities {
	return Capabilities{
		Transactions: true,
		AtomicBatch:  true,
		AffectedRows: true,
		MultiKeyIn:   true,
	}
}

// Query implements Conn.
func (s *SQLite) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return sqliteQuery(ctx, s.db, query, args)
}

// Exec implements Conn.
func (s *SQLite) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqliteExec(ctx, s.db, query, args)
}

// Begin implements Conn.
func (s *SQLite) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeStore, "begin transaction")
	}
	return &sqliteTx{tx: tx}, nil
}

// Batch runs stmts in one transaction.
func (s *SQLite) Batch(ctx context.Context, stmts []Statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, dberr.CodeStore, "begin batch")
	}
	for i, st := range stmts {
		if _, err := sqliteExec(ctx, tx, st.Query, st.Args); err != nil {
			tx.Rollback()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dberr.Wrap(err, dberr.CodeStore, "commit batch")
	}
	return nil
}

// CreateTable creates the storage table for t if it does not exist.
// Virtual and computed columns are not stored.
func (s *SQLite) CreateTable(ctx context.Context, t *schema.Table) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(t)); err != nil {
		return fmt.Errorf("create table %q: %w", t.Name(), err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return sqliteQuery(ctx, t.tx, query, args)
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqliteExec(ctx, t.tx, query, args)
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return dberr.Wrap(err, dberr.CodeStore, "commit")
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return dberr.Wrap(err, dberr.CodeStore, "rollback")
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteQuery(ctx context.Context, db execer, query string, args []any) ([]Row, error) {
	bound, err := bindArgs(args)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, sqliteDialect(query), bound...)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeStore, "query")
	}
	defer rows.Close()
	return scanRows(rows)
}

func sqliteExec(ctx context.Context, db execer, query string, args []any) (int64, error) {
	bound, err := bindArgs(args)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, sqliteDialect(query), bound...)
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeStore, "exec")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// sqliteDialect rewrites the statements SQLite lacks.
func sqliteDialect(query string) string {
	q := strings.TrimSpace(query)
	const truncate = "TRUNCATE "
	if len(q) > len(truncate) && strings.EqualFold(q[:len(truncate)], truncate) {
		return "DELETE FROM " + strings.TrimSpace(q[len(truncate):])
	}
	return query
}

func createTableSQL(t *schema.Table) string {
	var defs []string
	for _, col := range t.Columns() {
		if col.IsVirtual() || col.Computed() {
			continue
		}
		def := cql.QuoteIdent(col.Name) + " " + storageType(col)
		if !col.AllowNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	if pk := t.PrimaryKey(); len(pk) > 0 {
		names := make([]string, len(pk))
		for i, col := range pk {
			names[i] = cql.QuoteIdent(col.Name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(names, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", cql.QuoteIdent(t.Name()), strings.Join(defs, ", "))
}

// storageType maps an abstract type to the SQLite storage class its native
// values are bound as.
func storageType(col *schema.Column) string {
	switch col.Type {
	case schema.TypeInteger, schema.TypeSmallInt, schema.TypeTinyInt,
		schema.TypeBoolean, schema.TypeDate, schema.TypeTime, schema.TypeTimestamp:
		return "INTEGER"
	case schema.TypeBigInt:
		if col.DBType == "varint" {
			return "TEXT"
		}
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	case schema.TypeBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
