package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cqlgate/internal/dberr"
)

func mustTable(t *testing.T, name string, cols ...Column) *Table {
	t.Helper()
	tbl, err := NewTable(name, cols, nil)
	require.NoError(t, err)
	return tbl
}

func TestCatalogLazyLoad(t *testing.T) {
	calls := 0
	loader := LoaderFunc(func(context.Context) ([]*Table, error) {
		calls++
		return []*Table{mustTable(t, "Users", Column{Name: "id", Type: TypeUUID, PrimaryKey: true})}, nil
	})
	cat := NewCatalog(loader, nil)
	ctx := context.Background()

	tbl, err := cat.Table(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "Users", tbl.Name())

	_, err = cat.Table(ctx, "USERS")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	cols, err := cat.ListColumns(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, cols, 1)

	pk, err := cat.PrimaryKeyColumns(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, "id", pk[0].Name)
}

func TestCatalogUnknownTable(t *testing.T) {
	cat := NewCatalog(Static(), nil)

	_, err := cat.Table(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, dberr.IsNotFound(err))
}

func TestCatalogLoadError(t *testing.T) {
	cat := NewCatalog(LoaderFunc(func(context.Context) ([]*Table, error) {
		return nil, errors.New("unreachable")
	}), nil)

	_, err := cat.Table(context.Background(), "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestCatalogRefreshSwapsSnapshot(t *testing.T) {
	version := 1
	loader := LoaderFunc(func(context.Context) ([]*Table, error) {
		cols := []Column{{Name: "id", Type: TypeInteger, PrimaryKey: true}}
		if version > 1 {
			cols = append(cols, Column{Name: "added", Type: TypeString})
		}
		return []*Table{mustTable(t, "t", cols...)}, nil
	})
	cat := NewCatalog(loader, nil)
	ctx := context.Background()

	before, err := cat.Table(ctx, "t")
	require.NoError(t, err)

	version = 2
	require.NoError(t, cat.Refresh(ctx))

	after, err := cat.Table(ctx, "t")
	require.NoError(t, err)

	_, ok := before.Column("added")
	assert.False(t, ok, "old snapshot must stay unchanged")
	_, ok = after.Column("added")
	assert.True(t, ok)
}

func TestCatalogDuplicateTables(t *testing.T) {
	col := Column{Name: "id", Type: TypeInteger}
	cat := NewCatalog(Static(mustTable(t, "a", col), mustTable(t, "A", col)), nil)

	err := cat.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table")
}

func TestCatalogConcurrentReaders(t *testing.T) {
	cat := NewCatalog(Static(mustTable(t, "t", Column{Name: "id", Type: TypeInteger})), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if j%10 == 0 {
					_ = cat.Refresh(ctx)
				}
				tbl, err := cat.Table(ctx, "t")
				if assert.NoError(t, err) {
					_, ok := tbl.Column("id")
					assert.True(t, ok)
				}
			}
		}()
	}
	wg.Wait()

	names, err := cat.TableNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, names)
}
