package batch

import (
	"context"

	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

// commitDeferred resolves deferred units one verb at a time with multi-key
// statements. Identifiers absent from the store fail with NotFound.
func (c *Coordinator) commitDeferred(ctx context.Context) {
	groups := make(map[Verb][]*unit)
	for _, u := range c.units {
		if u.deferred && u.err == nil {
			groups[u.verb] = append(groups[u.verb], u)
		}
	}

	for _, verb := range []Verb{Get, Put, Patch, Delete} {
		units := groups[verb]
		if len(units) == 0 {
			continue
		}
		c.logger.Debug("resolving deferred units", "verb", verb, "count", len(units))

		var err error
		switch verb {
		case Get:
			err = c.deferredGet(ctx, units)
		case Put, Patch:
			err = c.deferredUpdate(ctx, units)
		case Delete:
			err = c.deferredDelete(ctx, units)
		}
		if err != nil {
			for _, u := range units {
				if u.err == nil {
					u.err = err
					u.value = nil
				}
			}
		}
	}
}

func (c *Coordinator) deferredGet(ctx context.Context, units []*unit) error {
	found, err := c.fetch(ctx, units, c.withKey(c.cfg.Fields))
	if err != nil {
		return err
	}
	for _, u := range units {
		if u.err != nil {
			continue
		}
		row, ok := found[u]
		if !ok {
			u.err = notFound(c.table, u.key)
			continue
		}
		rec, err := record.FromRow(c.m, row, c.cfg.Fields)
		if err != nil {
			u.err = err
			continue
		}
		u.value = rec
	}
	return nil
}

func (c *Coordinator) deferredUpdate(ctx context.Context, units []*unit) error {
	cols, setArgs, err := c.assignments(c.cfg.Updates)
	if err != nil {
		return err
	}
	present, err := c.fetch(ctx, units, c.table.PrimaryKey())
	if err != nil {
		return err
	}
	hits := c.markMissing(units, present)

	err = c.eachKeySet(hits, func(where string, keyArgs []any) error {
		q, args := cql.Update{
			Table:     c.table.Name(),
			Columns:   cols,
			SetArgs:   setArgs,
			Where:     where,
			WhereArgs: keyArgs,
		}.Build()
		_, err := c.sess.Exec(ctx, q, args...)
		return err
	})
	if err != nil {
		return err
	}

	if !c.cfg.RequireMore {
		for _, u := range hits {
			u.value = u.key.Record(c.table)
		}
		return nil
	}
	return c.deferredGet(ctx, hits)
}

func (c *Coordinator) deferredDelete(ctx context.Context, units []*unit) error {
	fields := c.table.PrimaryKey()
	if c.cfg.RequireMore {
		fields = c.withKey(c.cfg.Fields)
	}
	present, err := c.fetch(ctx, units, fields)
	if err != nil {
		return err
	}
	hits := c.markMissing(units, present)

	for _, u := range hits {
		if c.cfg.RequireMore {
			rec, err := record.FromRow(c.m, present[u], c.cfg.Fields)
			if err != nil {
				u.err = err
				continue
			}
			u.value = rec
		} else {
			u.value = u.key.Record(c.table)
		}
	}

	// A unit whose snapshot failed keeps its row.
	doomed := hits[:0]
	for _, u := range hits {
		if u.err == nil {
			doomed = append(doomed, u)
		}
	}

	return c.eachKeySet(doomed, func(where string, keyArgs []any) error {
		q, args := cql.Delete{Table: c.table.Name(), Where: where, Args: keyArgs}.Build()
		_, err := c.sess.Exec(ctx, q, args...)
		return err
	})
}

// markMissing fails units absent from present and returns the rest.
func (c *Coordinator) markMissing(units []*unit, present map[*unit]store.Row) []*unit {
	var hits []*unit
	for _, u := range units {
		if u.err != nil {
			continue
		}
		if _, ok := present[u]; !ok {
			u.err = notFound(c.table, u.key)
			continue
		}
		hits = append(hits, u)
	}
	return hits
}

// fetch reads fields for the units' keys under the server filter and maps
// each unit to its row. Units whose key does not marshal are failed.
func (c *Coordinator) fetch(ctx context.Context, units []*unit, fields []*schema.Column) (map[*unit]store.Row, error) {
	byKey := make(map[string][]*unit)
	var live []*unit
	for _, u := range units {
		if u.err != nil {
			continue
		}
		canon, err := u.key.Canonical(c.m, c.table)
		if err != nil {
			u.err = err
			continue
		}
		byKey[canon] = append(byKey[canon], u)
		live = append(live, u)
	}

	found := make(map[*unit]store.Row)
	err := c.eachKeySet(live, func(where string, keyArgs []any) error {
		rows, err := c.selectRows(ctx, fields, where, keyArgs)
		if err != nil {
			return err
		}
		for _, row := range rows {
			canon, err := record.RowKey(c.m, c.table, row)
			if err != nil {
				return err
			}
			for _, u := range byKey[canon] {
				found[u] = row
			}
		}
		return nil
	})
	return found, err
}

// eachKeySet calls fn with a key predicate covering units: one IN list when
// the store supports it, otherwise one equality per distinct key.
func (c *Coordinator) eachKeySet(units []*unit, fn func(where string, keyArgs []any) error) error {
	if len(units) == 0 {
		return nil
	}
	pk := c.table.PrimaryKey()

	seen := make(map[string]bool)
	var keys [][]any
	for _, u := range units {
		native, err := u.key.Native(c.m, c.table)
		if err != nil {
			return err
		}
		canon, err := u.key.Canonical(c.m, c.table)
		if err != nil {
			return err
		}
		if seen[canon] {
			continue
		}
		seen[canon] = true
		keys = append(keys, native)
	}

	if c.caps.MultiKeyIn && len(pk) == 1 {
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k[0]
		}
		return fn(cql.KeyIn(pk[0], len(args)), args)
	}
	for _, k := range keys {
		if err := fn(cql.KeyEquals(pk), k); err != nil {
			return err
		}
	}
	return nil
}

// withKey returns fields extended with any missing key columns.
func (c *Coordinator) withKey(fields []*schema.Column) []*schema.Column {
	out := append([]*schema.Column{}, fields...)
	for _, k := range c.table.PrimaryKey() {
		have := false
		for _, f := range fields {
			if f == k {
				have = true
				break
			}
		}
		if !have {
			out = append(out, k)
		}
	}
	return out
}
