package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/cqlgate/internal/store"
)

// Call is one statement recorded by ScriptedConn.
type Call struct {
	// Kind is "query", "exec" or "batch". Statements issued inside a
	// transaction are prefixed "tx-".
	Kind  string
	Query string
	Args  []any
}

// Response is what a scripted rule answers.
type Response struct {
	Rows     []store.Row
	Affected int64
	Err      error
}

type rule struct {
	contains string
	arg      any
	hasArg   bool
	once     bool
	used     bool
	resp     Response
}

func (r *rule) matches(query string, args []any) bool {
	if r.once && r.used {
		return false
	}
	if !strings.Contains(query, r.contains) {
		return false
	}
	if !r.hasArg {
		return true
	}
	want := fmt.Sprint(r.arg)
	for _, a := range args {
		if fmt.Sprint(a) == want {
			return true
		}
	}
	return false
}

// ScriptedConn is an in-memory store.Conn whose answers are scripted by
// query substring. It records every statement for later assertions.
//
// Unmatched queries return no rows. Unmatched execs report one affected row
// when AffectedRows is set and -1 otherwise.
//
// Thread-safety: safe for concurrent use.
type ScriptedConn struct {
	mu    sync.Mutex
	caps  store.Capabilities
	rules []*rule
	calls []Call

	commits     int
	rollbacks   int
	rollbackErr error
}

var _ store.Conn = (*ScriptedConn)(nil)

// NewScriptedConn creates a connection reporting caps.
func NewScriptedConn(caps store.Capabilities) *ScriptedConn {
	return &ScriptedConn{caps: caps}
}

// On answers every statement containing substr with resp. Rules are tried
// in the order they were added.
func (c *ScriptedConn) On(substr string, resp Response) *ScriptedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, &rule{contains: substr, resp: resp})
	return c
}

// OnArg answers statements containing substr that bind arg (compared by
// its printed form).
func (c *ScriptedConn) OnArg(substr string, arg any, resp Response) *ScriptedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, &rule{contains: substr, arg: arg, hasArg: true, resp: resp})
	return c
}

// Once answers only the first statement containing substr.
func (c *ScriptedConn) Once(substr string, resp Response) *ScriptedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, &rule{contains: substr, once: true, resp: resp})
	return c
}

// FailRollback makes every transaction rollback return err after it is
// counted.
func (c *ScriptedConn) FailRollback(err error) *ScriptedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollbackErr = err
	return c
}

// Calls returns every recorded statement in order.
func (c *ScriptedConn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Statements returns the query text of recorded calls of the given kind.
func (c *ScriptedConn) Statements(kind string) []string {
	var out []string
	for _, call := range c.Calls() {
		if call.Kind == kind {
			out = append(out, call.Query)
		}
	}
	return out
}

// Commits returns the number of committed transactions.
func (c *ScriptedConn) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Rollbacks returns the number of rolled back transactions.
func (c *ScriptedConn) Rollbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbacks
}

func (c *ScriptedConn) answer(kind, query string, args []any) Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Kind: kind, Query: query, Args: args})
	for _, r := range c.rules {
		if r.matches(query, args) {
			r.used = true
			return r.resp
		}
	}
	resp := Response{Affected: -1}
	if c.caps.AffectedRows {
		resp.Affected = 1
	}
	return resp
}

// Query implements store.Conn.
func (c *ScriptedConn) Query(_ context.Context, query string, args ...any) ([]store.Row, error) {
	return c.query("query", query, args)
}

// Exec implements store.Conn.
func (c *ScriptedConn) Exec(_ context.Context, query string, args ...any) (int64, error) {
	return c.exec("exec", query, args)
}

func (c *ScriptedConn) query(kind, query string, args []any) ([]store.Row, error) {
	resp := c.answer(kind, query, args)
	if resp.Err != nil {
		return nil, resp.Err
	}
	rows := resp.Rows
	if rows == nil {
		rows = []store.Row{}
	}
	return rows, nil
}

func (c *ScriptedConn) exec(kind, query string, args []any) (int64, error) {
	resp := c.answer(kind, query, args)
	if resp.Err != nil {
		return 0, resp.Err
	}
	return resp.Affected, nil
}

// Batch implements store.Conn. Each statement is recorded as a "batch" call;
// the first scripted error fails the whole batch.
func (c *ScriptedConn) Batch(_ context.Context, stmts []store.Statement) error {
	for _, st := range stmts {
		if resp := c.answer("batch", st.Query, st.Args); resp.Err != nil {
			return resp.Err
		}
	}
	return nil
}

// Begin implements store.Conn.
func (c *ScriptedConn) Begin(context.Context) (store.Tx, error) {
	if !c.caps.Transactions {
		return nil, store.ErrNoTransactions
	}
	return &scriptedTx{conn: c}, nil
}

// Capabilities implements store.Conn.
func (c *ScriptedConn) Capabilities() store.Capabilities {
	return c.caps
}

// Close implements store.Conn.
func (c *ScriptedConn) Close() error {
	return nil
}

type scriptedTx struct {
	conn *ScriptedConn
}

func (t *scriptedTx) Query(_ context.Context, query string, args ...any) ([]store.Row, error) {
	return t.conn.query("tx-query", query, args)
}

func (t *scriptedTx) Exec(_ context.Context, query string, args ...any) (int64, error) {
	return t.conn.exec("tx-exec", query, args)
}

func (t *scriptedTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t *scriptedTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rollbacks++
	return t.conn.rollbackErr
}
