package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

// Config configures a Coordinator.
type Config struct {
	// Table is the target table snapshot.
	Table *schema.Table

	// Session is the request-scoped store session.
	Session *store.Session

	// Marshaller converts values; defaults to marshal.New().
	Marshaller *marshal.Marshaller

	// Compiler compiles the server filter; defaults to one over Marshaller.
	Compiler *filter.Compiler

	// Server constrains every unit to the rows the caller may see.
	Server *filter.ServerFilter

	// Fields are returned in GET snapshots and require-more results.
	// Defaults to the primary key.
	Fields []*schema.Column

	// Single marks a one-record request: errors are returned as-is.
	Single bool

	// Continue records per-unit failures instead of aborting.
	Continue bool

	// Rollback aborts on the first failure and undoes prior units.
	Rollback bool

	// RequireMore returns Fields snapshots instead of bare identifiers.
	RequireMore bool

	// Updates is the payload shared by PUT/PATCH units that carry no record.
	Updates record.Record

	// AllowUpsert inserts PUT records whose identifier matches nothing.
	AllowUpsert bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Deferred is returned by AddUnit for units resolved at Commit.
type Deferred struct {
	Index int
}

// Outcome is the result of one unit: a value, or the error that failed it.
type Outcome struct {
	Value any
	Err   error
}

type unit struct {
	index    int
	verb     Verb
	key      record.Key
	rec      record.Record
	deferred bool
	value    any
	err      error
}

// Coordinator runs the units of one request. It is not safe for concurrent
// use.
type Coordinator struct {
	cfg    Config
	table  *schema.Table
	sess   *store.Session
	m      *marshal.Marshaller
	caps   store.Capabilities
	logger *slog.Logger

	state  State
	mode   rollbackMode
	units  []*unit
	queued []store.Statement

	server         *filter.Compiled
	serverCompiled bool
}

// New creates a Coordinator in the Idle state.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("batch: table is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("batch: session is required")
	}
	if len(cfg.Table.PrimaryKey()) == 0 {
		return nil, dberr.BadRequestf("table %q has no primary key", cfg.Table.Name())
	}
	if cfg.Marshaller == nil {
		cfg.Marshaller = marshal.New()
	}
	if cfg.Compiler == nil {
		cfg.Compiler = filter.NewCompiler(cfg.Marshaller)
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = cfg.Table.PrimaryKey()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Coordinator{
		cfg:    cfg,
		table:  cfg.Table,
		sess:   cfg.Session,
		m:      cfg.Marshaller,
		caps:   cfg.Session.Capabilities(),
		logger: cfg.Logger.With("table", cfg.Table.Name()),
	}, nil
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	return c.state
}

// Size returns the number of units added.
func (c *Coordinator) Size() int {
	return len(c.units)
}

// AddUnit adds one unit. id identifies the target row (a scalar, or a record
// for composite keys); rec is the record payload. When id is nil the key is
// taken from rec.
//
// It returns the unit's result, or Deferred when the unit is resolved at
// Commit. In continue mode a failed unit returns (nil, nil); its error is
// reported by Commit.
func (c *Coordinator) AddUnit(ctx context.Context, verb Verb, id any, rec record.Record) (any, error) {
	if c.state.Terminal() || c.state == Committing {
		return nil, fmt.Errorf("batch: cannot add units in state %s", c.state)
	}
	if !verb.Valid() {
		return nil, dberr.BadRequestf("unsupported verb %q", verb)
	}
	if c.state == Idle {
		if err := c.begin(ctx); err != nil {
			return nil, err
		}
	}

	u := &unit{index: len(c.units), verb: verb, rec: rec}
	c.units = append(c.units, u)

	if verb != Post {
		key, err := c.resolveKey(id, rec)
		if err != nil {
			return c.fail(ctx, u, err)
		}
		u.key = key
	}

	if c.canDefer(u) {
		u.deferred = true
		c.logger.Debug("batch unit deferred", "verb", verb, "index", u.index)
		return Deferred{Index: u.index}, nil
	}

	c.logger.Debug("batch unit", "verb", verb, "index", u.index)
	value, err := c.execute(ctx, u)
	if err != nil {
		return c.fail(ctx, u, err)
	}
	u.value = value
	return value, nil
}

// Commit resolves deferred units, finishes the transaction or atomic batch
// and returns one Outcome per unit in submission order.
//
// When any unit failed the outcomes are returned together with a
// *dberr.BatchError.
func (c *Coordinator) Commit(ctx context.Context) ([]Outcome, error) {
	if c.state.Terminal() || c.state == Committing {
		return nil, fmt.Errorf("batch: cannot commit in state %s", c.state)
	}
	c.state = Committing

	c.commitDeferred(ctx)

	switch c.mode {
	case rollbackQueue:
		stmts := c.queued
		c.queued = nil
		if len(stmts) > 0 {
			if err := c.sess.Batch(ctx, stmts); err != nil {
				c.state = Failed
				return nil, err
			}
		}
	case rollbackTx:
		if err := c.sess.Commit(); err != nil {
			c.state = Failed
			return nil, err
		}
	}

	outcomes := make([]Outcome, len(c.units))
	succeeded := make(map[int]any)
	failed := make(map[int]error)
	for i, u := range c.units {
		outcomes[i] = Outcome{Value: u.value, Err: u.err}
		if u.err != nil {
			failed[i] = u.err
		} else {
			succeeded[i] = u.value
		}
	}

	if len(failed) > 0 {
		c.state = Failed
		c.logger.Info("batch committed with failures", "units", len(c.units), "failed", len(failed))
		return outcomes, &dberr.BatchError{
			Message:   "batch request failed",
			Size:      len(c.units),
			Succeeded: succeeded,
			Failed:    failed,
		}
	}

	c.state = Committed
	c.logger.Debug("batch committed", "units", len(c.units))
	return outcomes, nil
}

// Rollback abandons the request. Queued writes are dropped and a native
// transaction is rolled back; anything else already written remains.
func (c *Coordinator) Rollback(ctx context.Context) error {
	if c.state.Terminal() {
		return nil
	}
	return c.abort()
}

func (c *Coordinator) begin(ctx context.Context) error {
	if c.cfg.Rollback {
		switch {
		case c.caps.Transactions:
			if err := c.sess.BeginTransaction(ctx); err != nil {
				return err
			}
			c.mode = rollbackTx
		case c.caps.AtomicBatch:
			c.mode = rollbackQueue
		default:
			c.mode = rollbackBestEffort
			c.logger.Warn("rollback requested but the store supports neither transactions nor atomic batches; rollback is best-effort")
		}
	}
	c.state = Accumulating
	return nil
}

func (c *Coordinator) abort() error {
	c.queued = nil
	c.state = RolledBack
	if c.mode == rollbackTx {
		return c.sess.Rollback()
	}
	return nil
}

// fail records err against u and applies the request's error policy.
func (c *Coordinator) fail(ctx context.Context, u *unit, err error) (any, error) {
	u.err = err

	if c.cfg.Single {
		if c.cfg.Rollback {
			if rerr := c.abort(); rerr != nil {
				c.logger.Error("rollback failed", "error", rerr)
			}
		} else {
			c.state = Failed
		}
		return nil, err
	}

	switch {
	case c.cfg.Rollback:
		c.logger.Info("batch unit failed; rolling back", "index", u.index, "error", err)
		if rerr := c.abort(); rerr != nil {
			c.logger.Error("rollback failed", "error", rerr)
		}
	case c.cfg.Continue:
		c.logger.Debug("batch unit failed; continuing", "index", u.index, "error", err)
		return nil, nil
	default:
		c.state = Failed
	}
	return nil, withIndex(err, u.index)
}

func withIndex(err error, index int) error {
	var e *dberr.Error
	if errors.As(err, &e) && e == err {
		return e.With("index", strconv.Itoa(index))
	}
	return fmt.Errorf("record %d: %w", index, err)
}

// canDefer reports whether u can wait for one multi-key statement at
// commit. Only continue-mode identifier units on single-column keys qualify.
func (c *Coordinator) canDefer(u *unit) bool {
	if c.cfg.Single || !c.cfg.Continue || c.cfg.Rollback {
		return false
	}
	if len(c.table.PrimaryKey()) > 1 {
		return false
	}
	switch u.verb {
	case Get, Delete:
		return true
	case Put, Patch:
		return u.rec == nil && len(c.cfg.Updates) > 0
	}
	return false
}

func (c *Coordinator) resolveKey(id any, rec record.Record) (record.Key, error) {
	if id == nil {
		if rec == nil {
			return nil, dberr.BadRequestf("no identifier given")
		}
		key, ok := record.KeyFromRecord(c.table, rec)
		if !ok {
			return nil, dberr.BadRequestf("record does not contain the primary key of %q", c.table.Name())
		}
		return key, nil
	}
	return record.KeyFrom(c.table, id)
}

// serverFilter compiles the server filter once.
func (c *Coordinator) serverFilter() (*filter.Compiled, error) {
	if !c.serverCompiled {
		compiled, err := c.cfg.Compiler.Compile("", nil, c.cfg.Server, c.table)
		if err != nil {
			return nil, err
		}
		c.server = compiled
		c.serverCompiled = true
	}
	return c.server, nil
}

// needsExistenceCheck reports whether writes must confirm the row first:
// the store cannot count affected rows, writes are queued, or a server
// filter limits which rows are visible.
func (c *Coordinator) needsExistenceCheck() bool {
	return !c.caps.AffectedRows || c.mode == rollbackQueue || !c.cfg.Server.Empty()
}

func notFound(t *schema.Table, key record.Key) error {
	return dberr.NotFoundf("record %v not found in %q", map[string]any(key.Record(t)), t.Name())
}
