// Package record converts between store rows, portable records and primary
// key values.
package record

import (
	"fmt"
	"strings"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

// Record is a portable record keyed by column label.
type Record map[string]any

// Key holds primary key values in the table's key order.
type Key []any

// FromRow converts a store row into a record holding fields. Row values are
// looked up by label, then by stored name.
func FromRow(m *marshal.Marshaller, row store.Row, fields []*schema.Column) (Record, error) {
	rec := make(Record, len(fields))
	for _, col := range fields {
		v, ok := row[col.Label()]
		if !ok {
			v = row[col.Name]
		}
		p, err := m.ToPortable(v, col)
		if err != nil {
			return nil, err
		}
		rec[col.Label()] = p
	}
	return rec, nil
}

// Lookup finds the value a record holds for col, by label or name, ignoring
// case.
func (r Record) Lookup(col *schema.Column) (any, bool) {
	if v, ok := r[col.Label()]; ok {
		return v, true
	}
	if v, ok := r[col.Name]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, col.Label()) || strings.EqualFold(k, col.Name) {
			return v, true
		}
	}
	return nil, false
}

// KeyFrom normalizes a request identifier. Single-column keys accept a
// scalar or a record; composite keys require a record holding every key
// field.
func KeyFrom(t *schema.Table, id any) (Key, error) {
	pk := t.PrimaryKey()
	if len(pk) == 0 {
		return nil, dberr.BadRequestf("table %q has no primary key", t.Name())
	}

	rec, isRecord := asRecord(id)
	if !isRecord {
		if len(pk) > 1 {
			return nil, dberr.BadRequestf("table %q has a composite key; identifiers must be records with %s",
				t.Name(), labels(pk))
		}
		if id == nil || id == "" {
			return nil, dberr.BadRequestf("identifier for %q is empty", pk[0].Label())
		}
		return Key{id}, nil
	}

	key, ok := KeyFromRecord(t, rec)
	if !ok {
		return nil, dberr.BadRequestf("identifier must contain %s", labels(pk))
	}
	return key, nil
}

// KeyFromRecord extracts the primary key from rec. It reports false when a
// key field is missing or null.
func KeyFromRecord(t *schema.Table, rec Record) (Key, bool) {
	pk := t.PrimaryKey()
	key := make(Key, len(pk))
	for i, col := range pk {
		v, ok := rec.Lookup(col)
		if !ok || v == nil {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

// Record returns the key as a record keyed by key column labels.
func (k Key) Record(t *schema.Table) Record {
	pk := t.PrimaryKey()
	rec := make(Record, len(pk))
	for i, col := range pk {
		if i < len(k) {
			rec[col.Label()] = k[i]
		}
	}
	return rec
}

// Native marshals the key for binding.
func (k Key) Native(m *marshal.Marshaller, t *schema.Table) ([]any, error) {
	pk := t.PrimaryKey()
	if len(k) != len(pk) {
		return nil, dberr.BadRequestf("identifier has %d values, table %q key has %d", len(k), t.Name(), len(pk))
	}
	out := make([]any, len(pk))
	for i, col := range pk {
		v, err := m.ToNative(k[i], col)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Canonical renders the key in a form that compares equal for the same row
// whatever spelling the caller used ("5" and 5, upper and lower case uuids).
func (k Key) Canonical(m *marshal.Marshaller, t *schema.Table) (string, error) {
	native, err := k.Native(m, t)
	if err != nil {
		return "", err
	}
	return canonicalNative(m, t.PrimaryKey(), native)
}

// RowKey returns the canonical key of a store row holding the key columns.
func RowKey(m *marshal.Marshaller, t *schema.Table, row store.Row) (string, error) {
	pk := t.PrimaryKey()
	native := make([]any, len(pk))
	for i, col := range pk {
		v, ok := row[col.Label()]
		if !ok {
			v = row[col.Name]
		}
		native[i] = v
	}
	return canonicalNative(m, pk, native)
}

func canonicalNative(m *marshal.Marshaller, pk []*schema.Column, native []any) (string, error) {
	parts := make([]string, len(pk))
	for i, col := range pk {
		p, err := m.ToPortable(native[i], col)
		if err != nil {
			return "", err
		}
		parts[i] = strings.ToLower(fmt.Sprint(p))
	}
	return strings.Join(parts, "\x00"), nil
}

func asRecord(v any) (Record, bool) {
	switch x := v.(type) {
	case Record:
		return x, true
	case map[string]any:
		return Record(x), true
	}
	return nil, false
}

func labels(cols []*schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Label()
	}
	return strings.Join(names, ", ")
}
