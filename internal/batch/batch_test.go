package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/logging"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
	"github.com/roach88/cqlgate/internal/testutil"
)

var (
	sqlCaps = store.Capabilities{Transactions: true, AtomicBatch: true, AffectedRows: true, MultiKeyIn: true}
	cqlCaps = store.Capabilities{AtomicBatch: true, AllowFiltering: true, MultiKeyIn: true}
)

var (
	idA = testutil.UUIDString(101)
	idB = testutil.UUIDString(102)
	idC = testutil.UUIDString(103)
)

func newCoordinator(t *testing.T, conn store.Conn, mutate func(*Config)) *Coordinator {
	t.Helper()
	cfg := Config{
		Table:      testutil.ThingsTable(),
		Session:    store.NewSession(conn, nil),
		Marshaller: marshal.New(marshal.WithUUIDSource(testutil.NewSequentialUUIDs().Next)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func column(t *testing.T, tbl *schema.Table, name string) *schema.Column {
	t.Helper()
	col, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	return col
}

func TestContinueRecordsFailuresInOrder(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		OnArg("UPDATE", idB, testutil.Response{Affected: 0})
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Continue = true })

	for _, id := range []string{idA, idB, idC} {
		v, err := c.AddUnit(ctx, Patch, id, record.Record{"qty": 7})
		require.NoError(t, err)
		if id == idB {
			assert.Nil(t, v)
		}
	}

	outcomes, err := c.Commit(ctx)
	require.Len(t, outcomes, 3)

	var be *dberr.BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 3, be.Size)
	assert.Len(t, be.Succeeded, 2)
	assert.Len(t, be.Failed, 1)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, record.Record{"id": idA}, outcomes[0].Value)
	assert.True(t, dberr.IsNotFound(outcomes[1].Err))
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, record.Record{"id": idC}, outcomes[2].Value)

	results := be.Results()
	assert.Equal(t, record.Record{"id": idA}, results[0])
	assert.Error(t, results[1].(error))

	assert.Equal(t, Failed, c.State())
	assert.Len(t, conn.Statements("exec"), 3)
}

func TestRollbackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		OnArg("UPDATE", idB, testutil.Response{Affected: 0})
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Rollback = true })

	_, err := c.AddUnit(ctx, Patch, idA, record.Record{"qty": 1})
	require.NoError(t, err)

	_, err = c.AddUnit(ctx, Patch, idB, record.Record{"qty": 2})
	require.Error(t, err)
	assert.True(t, dberr.IsNotFound(err))

	var e *dberr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "1", e.Details["index"])

	assert.Equal(t, RolledBack, c.State())
	assert.Equal(t, 1, conn.Rollbacks())
	assert.Equal(t, 0, conn.Commits())
	assert.Len(t, conn.Statements("tx-exec"), 2)

	_, err = c.AddUnit(ctx, Patch, idC, record.Record{"qty": 3})
	assert.Error(t, err, "no units after rollback")
}

func TestSingleRollbackFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger, err := logging.New(&logs, "debug", "text")
	require.NoError(t, err)

	conn := testutil.NewScriptedConn(sqlCaps).
		OnArg("UPDATE", idA, testutil.Response{Affected: 0}).
		FailRollback(errors.New("connection reset"))
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Single = true
		cfg.Rollback = true
		cfg.Logger = logger
	})

	_, err = c.AddUnit(ctx, Patch, idA, record.Record{"qty": 1})
	require.Error(t, err)
	assert.True(t, dberr.IsNotFound(err), "the unit's own error is returned")

	assert.Equal(t, RolledBack, c.State())
	assert.Equal(t, 1, conn.Rollbacks())
	assert.Contains(t, logs.String(), "rollback failed")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestRollbackTakesPrecedenceOverContinue(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		OnArg("UPDATE", idA, testutil.Response{Affected: 0})
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Rollback = true
		cfg.Continue = true
	})

	_, err := c.AddUnit(ctx, Patch, idA, record.Record{"qty": 1})
	require.Error(t, err)
	assert.Equal(t, RolledBack, c.State())
}

func TestCommitTransaction(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps)
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Rollback = true })

	_, err := c.AddUnit(ctx, Delete, idA, nil)
	require.NoError(t, err)
	_, err = c.AddUnit(ctx, Delete, idB, nil)
	require.NoError(t, err)

	outcomes, err := c.Commit(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, record.Record{"id": idB}, outcomes[1].Value)
	assert.Equal(t, 1, conn.Commits())
	assert.Equal(t, Committed, c.State())
}

func TestQueueModeDefersWritesToAtomicBatch(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(cqlCaps).
		OnArg("SELECT", idA, testutil.Response{Rows: []store.Row{{"id": idA}}}).
		OnArg("SELECT", idB, testutil.Response{Rows: []store.Row{{"id": idB}}})
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Rollback = true })

	_, err := c.AddUnit(ctx, Patch, idA, record.Record{"qty": 1})
	require.NoError(t, err)
	_, err = c.AddUnit(ctx, Delete, idB, nil)
	require.NoError(t, err)

	assert.Empty(t, conn.Statements("exec"), "writes wait for commit")
	assert.Empty(t, conn.Statements("batch"))

	_, err = c.Commit(ctx)
	require.NoError(t, err)

	batched := conn.Statements("batch")
	require.Len(t, batched, 2)
	assert.Contains(t, batched[0], "UPDATE things SET qty = ?")
	assert.Contains(t, batched[1], "DELETE FROM things")
}

func TestQueueModeFailureDropsQueuedWrites(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(cqlCaps).
		OnArg("SELECT", idA, testutil.Response{Rows: []store.Row{{"id": idA}}})
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Rollback = true })

	_, err := c.AddUnit(ctx, Patch, idA, record.Record{"qty": 1})
	require.NoError(t, err)
	_, err = c.AddUnit(ctx, Patch, idB, record.Record{"qty": 2})
	require.Error(t, err)

	assert.Equal(t, RolledBack, c.State())
	assert.Empty(t, conn.Statements("batch"))
	assert.Empty(t, conn.Statements("exec"))
}

func TestBestEffortRollbackKeepsAppliedWrites(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(store.Capabilities{AffectedRows: true}).
		OnArg("UPDATE", idB, testutil.Response{Affected: 0})
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Rollback = true })

	_, err := c.AddUnit(ctx, Patch, idA, record.Record{"qty": 1})
	require.NoError(t, err)
	_, err = c.AddUnit(ctx, Patch, idB, record.Record{"qty": 2})
	require.Error(t, err)

	assert.Equal(t, RolledBack, c.State())
	assert.Len(t, conn.Statements("exec"), 2)
	assert.Equal(t, 0, conn.Rollbacks())
}

func TestDeferredGetPartialResults(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		On("SELECT", testutil.Response{Rows: []store.Row{
			{"id": idA, "name": "alpha"},
			{"id": idC, "name": "gamma"},
		}})

	tbl := testutil.ThingsTable()
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Continue = true
		cfg.Fields = []*schema.Column{column(t, tbl, "id"), column(t, tbl, "name")}
		cfg.Table = tbl
	})

	for _, id := range []string{idA, idB, idC} {
		v, err := c.AddUnit(ctx, Get, id, nil)
		require.NoError(t, err)
		assert.IsType(t, Deferred{}, v)
	}
	assert.Empty(t, conn.Calls(), "deferred units issue nothing before commit")

	outcomes, err := c.Commit(ctx)
	var be *dberr.BatchError
	require.True(t, errors.As(err, &be))

	assert.Equal(t, record.Record{"id": idA, "name": "alpha"}, outcomes[0].Value)
	assert.True(t, dberr.IsNotFound(outcomes[1].Err))
	assert.Equal(t, record.Record{"id": idC, "name": "gamma"}, outcomes[2].Value)

	queries := conn.Statements("query")
	require.Len(t, queries, 1, "one multi-key select")
	assert.Contains(t, queries[0], "id IN (?,?,?)")
}

func TestDeferredDeleteWithoutMultiKeyIn(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(store.Capabilities{AffectedRows: true}).
		OnArg("SELECT", idA, testutil.Response{Rows: []store.Row{{"id": idA}}})
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Continue = true })

	_, err := c.AddUnit(ctx, Delete, idA, nil)
	require.NoError(t, err)
	_, err = c.AddUnit(ctx, Delete, idB, nil)
	require.NoError(t, err)

	outcomes, err := c.Commit(ctx)
	require.Error(t, err)
	assert.Equal(t, record.Record{"id": idA}, outcomes[0].Value)
	assert.True(t, dberr.IsNotFound(outcomes[1].Err))

	assert.Len(t, conn.Statements("query"), 2, "one select per key")
	deletes := conn.Statements("exec")
	require.Len(t, deletes, 1)
	assert.Contains(t, deletes[0], "id = ?")
}

func TestDeferredDeleteKeepsRowsWithBadSnapshot(t *testing.T) {
	ctx := context.Background()
	tbl := testutil.ThingsTable()
	conn := testutil.NewScriptedConn(sqlCaps).
		On("SELECT", testutil.Response{Rows: []store.Row{
			{"id": idA, "created": int64(1468252636123)},
			{"id": idB, "created": struct{}{}},
		}})
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Continue = true
		cfg.RequireMore = true
		cfg.Table = tbl
		cfg.Fields = []*schema.Column{column(t, tbl, "id"), column(t, tbl, "created")}
	})

	for _, id := range []string{idA, idB} {
		_, err := c.AddUnit(ctx, Delete, id, nil)
		require.NoError(t, err)
	}

	outcomes, err := c.Commit(ctx)
	var be *dberr.BatchError
	require.True(t, errors.As(err, &be))
	assert.Len(t, be.Failed, 1)

	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, idA, outcomes[0].Value.(record.Record)["id"])
	assert.True(t, dberr.IsMarshal(outcomes[1].Err))

	var deleteArgs [][]any
	for _, call := range conn.Calls() {
		if call.Kind == "exec" {
			deleteArgs = append(deleteArgs, call.Args)
		}
	}
	require.Len(t, deleteArgs, 1)
	require.Len(t, deleteArgs[0], 1, "the row whose snapshot failed is not deleted")
	assert.Equal(t, idA, fmt.Sprint(deleteArgs[0][0]))
}

func TestDeferredSharedUpdate(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		On("SELECT", testutil.Response{Rows: []store.Row{{"id": idA}, {"id": idB}}})
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Continue = true
		cfg.Updates = record.Record{"owner": "ops"}
	})

	for _, id := range []string{idA, idB} {
		v, err := c.AddUnit(ctx, Put, id, nil)
		require.NoError(t, err)
		assert.IsType(t, Deferred{}, v)
	}

	outcomes, err := c.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": idB}, outcomes[1].Value)

	updates := conn.Statements("exec")
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0], "UPDATE things SET owner = ? WHERE id IN (?,?)")
}

func TestPostGeneratesKey(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps)
	c := newCoordinator(t, conn, func(cfg *Config) { cfg.Single = true })

	v, err := c.AddUnit(ctx, Post, nil, record.Record{"name": "widget", "qty": 3})
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": testutil.UUIDString(1)}, v)

	calls := conn.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Query, "INSERT INTO things (id, name, qty)")
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		rec  record.Record
	}{
		{name: "missing required field", rec: record.Record{"qty": 1}},
		{name: "empty name", rec: record.Record{"name": ""}},
		{name: "name too long", rec: record.Record{"name": "abcdefghijklmnopqrstuvwxyzabcdefgh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := testutil.NewScriptedConn(sqlCaps)
			c := newCoordinator(t, conn, func(cfg *Config) { cfg.Single = true })

			_, err := c.AddUnit(ctx, Post, nil, tt.rec)
			require.Error(t, err)
			assert.True(t, dberr.IsBadRequest(err))
			assert.Empty(t, conn.Calls())
		})
	}
}

func TestPutUpsertsMissingRow(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		OnArg("UPDATE", idA, testutil.Response{Affected: 0})
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Single = true
		cfg.AllowUpsert = true
	})

	v, err := c.AddUnit(ctx, Put, idA, record.Record{"name": "new"})
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": idA}, v)

	execs := conn.Statements("exec")
	require.Len(t, execs, 2)
	assert.Contains(t, execs[0], "UPDATE things")
	assert.Contains(t, execs[1], "INSERT INTO things")
}

func TestPatchDoesNotUpsert(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps).
		OnArg("UPDATE", idA, testutil.Response{Affected: 0})
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Single = true
		cfg.AllowUpsert = true
	})

	_, err := c.AddUnit(ctx, Patch, idA, record.Record{"name": "new"})
	require.Error(t, err)
	assert.True(t, dberr.IsNotFound(err))

	var e *dberr.Error
	require.True(t, errors.As(err, &e))
	assert.NotContains(t, e.Details, "index", "single requests report errors as-is")
}

func TestServerFilterGuardsWrites(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps)
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Single = true
		cfg.Server = &filter.ServerFilter{Filters: []filter.ServerCondition{
			{Name: "owner", Operator: "=", Value: "alice"},
		}}
	})

	_, err := c.AddUnit(ctx, Delete, idA, nil)
	require.Error(t, err)
	assert.True(t, dberr.IsNotFound(err))

	queries := conn.Statements("query")
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0], "(id = ?) AND ((owner = ?))")
	assert.Empty(t, conn.Statements("exec"), "rows outside the server filter are never written")
}

func TestRequireMoreReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	tbl := testutil.ThingsTable()
	conn := testutil.NewScriptedConn(sqlCaps).
		On("SELECT", testutil.Response{Rows: []store.Row{{"id": idA, "email": "a@example.com"}}})
	c := newCoordinator(t, conn, func(cfg *Config) {
		cfg.Single = true
		cfg.RequireMore = true
		cfg.Table = tbl
		cfg.Fields = []*schema.Column{column(t, tbl, "id"), column(t, tbl, "mail_addr")}
	})

	v, err := c.AddUnit(ctx, Patch, idA, record.Record{"email": "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": idA, "email": "a@example.com"}, v)

	execs := conn.Statements("exec")
	require.Len(t, execs, 1)
	assert.Contains(t, execs[0], "SET mail_addr = ?")
	assert.Contains(t, conn.Statements("query")[0], "mail_addr AS email")
}

func TestCompositeKeyRequiresRecord(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewScriptedConn(sqlCaps)
	c, err := New(Config{
		Table:   testutil.EventsTable(),
		Session: store.NewSession(conn, nil),
		Single:  true,
	})
	require.NoError(t, err)

	_, err = c.AddUnit(ctx, Get, "2016-07-11", nil)
	require.Error(t, err)
	assert.True(t, dberr.IsBadRequest(err))
}

func TestInvalidVerb(t *testing.T) {
	c := newCoordinator(t, testutil.NewScriptedConn(sqlCaps), nil)
	_, err := c.AddUnit(context.Background(), Verb("HEAD"), idA, nil)
	require.Error(t, err)
	assert.True(t, dberr.IsBadRequest(err))
	assert.Equal(t, Idle, c.State())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "rolled_back", RolledBack.String())
	assert.True(t, Committed.Terminal())
	assert.False(t, Accumulating.Terminal())
}
