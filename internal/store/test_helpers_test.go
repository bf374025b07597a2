package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gocql/gocql"

	"github.com/roach88/cqlgate/internal/schema"
)

// createTestStore creates a new SQLite store in a temporary directory.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTable creates the items table used across store tests.
func createTestTable(t *testing.T, s *SQLite) *schema.Table {
	t.Helper()
	tbl, err := schema.NewTable("items", []schema.Column{
		{Name: "id", Type: schema.TypeUUID, PrimaryKey: true},
		{Name: "name", Type: schema.TypeString},
		{Name: "qty", Type: schema.TypeInteger, AllowNull: true},
		{Name: "price", Type: schema.TypeDecimal, AllowNull: true},
		{Name: "ratio", Type: schema.TypeFloat, DBType: "float", AllowNull: true},
		{Name: "created", Type: schema.TypeTimestamp, AllowNull: true},
		{Name: "active", Type: schema.TypeBoolean, AllowNull: true},
		{Name: "upper_name", Type: schema.TypeString, Expression: "upper(name)"},
	}, nil)
	if err != nil {
		t.Fatalf("NewTable() failed: %v", err)
	}
	if err := s.CreateTable(context.Background(), tbl); err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	return tbl
}

// fakeConn is a non-transactional Conn that records statements.
type fakeConn struct {
	caps    Capabilities
	execs   []string
	batches [][]Statement
}

func (f *fakeConn) Query(_ context.Context, query string, _ ...any) ([]Row, error) {
	f.execs = append(f.execs, query)
	return []Row{}, nil
}

func (f *fakeConn) Exec(_ context.Context, query string, _ ...any) (int64, error) {
	f.execs = append(f.execs, query)
	return -1, nil
}

func (f *fakeConn) Begin(context.Context) (Tx, error) { return nil, ErrNoTransactions }

func (f *fakeConn) Batch(_ context.Context, stmts []Statement) error {
	f.batches = append(f.batches, stmts)
	return nil
}

func (f *fakeConn) Capabilities() Capabilities { return f.caps }
func (f *fakeConn) Close() error               { return nil }

func newID(t *testing.T) gocql.UUID {
	t.Helper()
	id, err := gocql.RandomUUID()
	if err != nil {
		t.Fatalf("RandomUUID() failed: %v", err)
	}
	return id
}
