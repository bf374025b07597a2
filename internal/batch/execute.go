package batch

import (
	"context"

	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

func (c *Coordinator) execute(ctx context.Context, u *unit) (any, error) {
	switch u.verb {
	case Get:
		return c.get(ctx, u)
	case Post:
		return c.insert(ctx, u)
	case Put, Patch:
		return c.update(ctx, u)
	case Delete:
		return c.remove(ctx, u)
	}
	return nil, dberr.BadRequestf("unsupported verb %q", u.verb)
}

func (c *Coordinator) get(ctx context.Context, u *unit) (any, error) {
	snap, ok, err := c.snapshot(ctx, u.key, c.cfg.Fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(c.table, u.key)
	}
	return snap, nil
}

func (c *Coordinator) insert(ctx context.Context, u *unit) (any, error) {
	if u.rec == nil {
		return nil, dberr.BadRequestf("record is required")
	}

	var cols []string
	var values []any
	key := make(record.Key, 0, len(c.table.PrimaryKey()))

	for _, col := range storedColumns(c.table) {
		v, present := u.rec.Lookup(col)

		if col.PrimaryKey {
			if !present || v == nil || marshal.IsGenerator(v) {
				if !generated(col) {
					return nil, dberr.BadRequestf("primary key field %q is required", col.Label())
				}
				v = ""
			}
		} else if !present {
			if err := col.Check(nil); err != nil {
				return nil, err
			}
			continue
		} else if err := col.Check(v); err != nil {
			return nil, err
		}

		native, err := c.m.ToNative(v, col)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col.Name)
		values = append(values, native)

		if col.PrimaryKey {
			p, err := c.m.ToPortable(native, col)
			if err != nil {
				return nil, err
			}
			key = append(key, p)
		}
	}

	q, args := cql.Insert{Table: c.table.Name(), Columns: cols, Values: values}.Build()
	if _, err := c.write(ctx, q, args); err != nil {
		return nil, err
	}
	u.key = key
	return c.result(ctx, key)
}

func (c *Coordinator) update(ctx context.Context, u *unit) (any, error) {
	payload := u.rec
	if payload == nil {
		payload = c.cfg.Updates
	}
	if len(payload) == 0 {
		return nil, dberr.BadRequestf("no values given to update")
	}

	check := c.needsExistenceCheck()
	if check {
		ok, err := c.exists(ctx, u.key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return c.upsertOrNotFound(ctx, u)
		}
	}

	cols, setArgs, err := c.assignments(payload)
	if err != nil {
		return nil, err
	}
	keyArgs, err := u.key.Native(c.m, c.table)
	if err != nil {
		return nil, err
	}

	q, args := cql.Update{
		Table:     c.table.Name(),
		Columns:   cols,
		SetArgs:   setArgs,
		Where:     cql.KeyEquals(c.table.PrimaryKey()),
		WhereArgs: keyArgs,
	}.Build()
	n, err := c.write(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if !check && n == 0 {
		return c.upsertOrNotFound(ctx, u)
	}
	return c.result(ctx, u.key)
}

func (c *Coordinator) upsertOrNotFound(ctx context.Context, u *unit) (any, error) {
	if c.cfg.AllowUpsert && u.verb == Put && u.rec != nil {
		rec := make(record.Record, len(u.rec))
		for k, v := range u.rec {
			rec[k] = v
		}
		for k, v := range u.key.Record(c.table) {
			rec[k] = v
		}
		return c.insert(ctx, &unit{index: u.index, verb: Post, rec: rec})
	}
	return nil, notFound(c.table, u.key)
}

func (c *Coordinator) remove(ctx context.Context, u *unit) (any, error) {
	check := c.needsExistenceCheck()

	var snap record.Record
	if check || c.cfg.RequireMore {
		s, ok, err := c.snapshot(ctx, u.key, c.cfg.Fields)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notFound(c.table, u.key)
		}
		snap = s
	}

	keyArgs, err := u.key.Native(c.m, c.table)
	if err != nil {
		return nil, err
	}
	q, args := cql.Delete{
		Table: c.table.Name(),
		Where: cql.KeyEquals(c.table.PrimaryKey()),
		Args:  keyArgs,
	}.Build()
	n, err := c.write(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if !check && n == 0 {
		return nil, notFound(c.table, u.key)
	}

	if c.cfg.RequireMore {
		return snap, nil
	}
	return u.key.Record(c.table), nil
}

// result returns the bare identifier, or a fresh snapshot when more is
// required. Queued writes are not visible yet, so they return identifiers.
func (c *Coordinator) result(ctx context.Context, key record.Key) (any, error) {
	if !c.cfg.RequireMore || c.mode == rollbackQueue {
		return key.Record(c.table), nil
	}
	snap, ok, err := c.snapshot(ctx, key, c.cfg.Fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(c.table, key)
	}
	return snap, nil
}

// assignments marshals the non-key stored columns present in payload.
func (c *Coordinator) assignments(payload record.Record) ([]string, []any, error) {
	var cols []string
	var args []any
	for _, col := range storedColumns(c.table) {
		if col.PrimaryKey {
			continue
		}
		v, ok := payload.Lookup(col)
		if !ok {
			continue
		}
		if err := col.Check(v); err != nil {
			return nil, nil, err
		}
		native, err := c.m.ToNative(v, col)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, col.Name)
		args = append(args, native)
	}
	if len(cols) == 0 {
		return nil, nil, dberr.BadRequestf("no valid fields to update in %q", c.table.Name())
	}
	return cols, args, nil
}

func (c *Coordinator) exists(ctx context.Context, key record.Key) (bool, error) {
	_, ok, err := c.snapshot(ctx, key, c.table.PrimaryKey())
	return ok, err
}

// snapshot reads fields of the row identified by key under the server filter.
func (c *Coordinator) snapshot(ctx context.Context, key record.Key, fields []*schema.Column) (record.Record, bool, error) {
	keyArgs, err := key.Native(c.m, c.table)
	if err != nil {
		return nil, false, err
	}
	rows, err := c.selectRows(ctx, fields, cql.KeyEquals(c.table.PrimaryKey()), keyArgs)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	rec, err := record.FromRow(c.m, rows[0], fields)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (c *Coordinator) selectRows(ctx context.Context, fields []*schema.Column, where string, args []any) ([]store.Row, error) {
	server, err := c.serverFilter()
	if err != nil {
		return nil, err
	}

	exprs := make([]string, len(fields))
	for i, col := range fields {
		exprs[i] = cql.SelectExpr(col)
	}
	allArgs := append(append([]any{}, args...), server.Params...)
	q, qargs := cql.Select{
		Table:          c.table.Name(),
		Columns:        exprs,
		Where:          cql.And(where, server.Text),
		Args:           allArgs,
		AllowFiltering: c.caps.AllowFiltering && !server.Empty(),
	}.Build()
	return c.sess.Query(ctx, q, qargs...)
}

// write runs a statement now, or queues it for the atomic commit batch.
// Queued statements report -1 affected rows.
func (c *Coordinator) write(ctx context.Context, q string, args []any) (int64, error) {
	if c.mode == rollbackQueue {
		c.queued = append(c.queued, store.Statement{Query: q, Args: args})
		return -1, nil
	}
	return c.sess.Exec(ctx, q, args...)
}

// storedColumns returns the columns that hold stored values.
func storedColumns(t *schema.Table) []*schema.Column {
	var out []*schema.Column
	for _, col := range t.Columns() {
		if col.IsVirtual() || col.Computed() {
			continue
		}
		out = append(out, col)
	}
	return out
}

// generated reports whether a missing key value can be generated.
func generated(col *schema.Column) bool {
	switch col.Type {
	case schema.TypeUUID, schema.TypeTimeUUID, schema.TypeTimestamp:
		return true
	}
	return false
}
