package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/cqlgate/internal/dberr"
)

// Loader produces the full set of table snapshots.
type Loader interface {
	LoadTables(ctx context.Context) ([]*Table, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]*Table, error)

// LoadTables implements Loader.
func (f LoaderFunc) LoadTables(ctx context.Context) ([]*Table, error) {
	return f(ctx)
}

// Static returns a Loader that always yields the given tables.
func Static(tables ...*Table) Loader {
	return LoaderFunc(func(context.Context) ([]*Table, error) {
		return tables, nil
	})
}

type snapshot struct {
	tables map[string]*Table
}

// Catalog serves table snapshots to concurrent requests.
//
// The first lookup loads the snapshot lazily. Refresh swaps the snapshot
// wholesale; readers holding a *Table keep using the old one.
type Catalog struct {
	loader Loader
	logger *slog.Logger

	current atomic.Pointer[snapshot]
	mu      sync.Mutex // serializes loads
}

// NewCatalog creates a catalog backed by loader.
func NewCatalog(loader Loader, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{loader: loader, logger: logger}
}

// Refresh reloads every table and replaces the snapshot.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload(ctx)
}

func (c *Catalog) reload(ctx context.Context) error {
	tables, err := c.loader.LoadTables(ctx)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	snap := &snapshot{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		key := foldKey(t.Name())
		if _, dup := snap.tables[key]; dup {
			return fmt.Errorf("load schema: duplicate table %q", t.Name())
		}
		snap.tables[key] = t
	}

	c.current.Store(snap)
	c.logger.Debug("schema snapshot loaded", "tables", len(snap.tables))
	return nil
}

func (c *Catalog) snapshot(ctx context.Context) (*snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	if err := c.reload(ctx); err != nil {
		return nil, err
	}
	return c.current.Load(), nil
}

// Table returns the snapshot for name. Unknown tables are NotFound.
func (c *Catalog) Table(ctx context.Context, name string) (*Table, error) {
	s, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := s.tables[foldKey(name)]
	if !ok {
		return nil, dberr.NotFoundf("table %q does not exist", name)
	}
	return t, nil
}

// ListColumns returns the columns of name in declaration order.
func (c *Catalog) ListColumns(ctx context.Context, name string) ([]*Column, error) {
	t, err := c.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	return t.Columns(), nil
}

// PrimaryKeyColumns returns the identity columns of name.
func (c *Catalog) PrimaryKeyColumns(ctx context.Context, name string) ([]*Column, error) {
	t, err := c.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	return t.PrimaryKey(), nil
}

// TableNames returns the sorted names of all tables.
func (c *Catalog) TableNames(ctx context.Context) ([]string, error) {
	s, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names, nil
}
