package schema

import (
	"fmt"

	"golang.org/x/text/cases"
)

// Table is an immutable schema snapshot for one table.
type Table struct {
	name    string
	columns []*Column
	pk      []*Column
	index   map[string]*Column
}

// NewTable builds a snapshot from column descriptors. The columns are copied,
// so later changes by the caller do not leak into the snapshot.
//
// primaryKey lists identity columns in key order. When empty, columns flagged
// PrimaryKey are used in declaration order.
func NewTable(name string, columns []Column, primaryKey []string) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: at least one column is required", name)
	}

	t := &Table{
		name:  name,
		index: make(map[string]*Column, len(columns)*2),
	}

	for i := range columns {
		col := columns[i]
		if col.Name == "" {
			return nil, fmt.Errorf("table %q: column %d has no name", name, i)
		}
		if !col.Type.Valid() {
			return nil, fmt.Errorf("table %q: column %q has unknown type %q", name, col.Name, col.Type)
		}
		if col.DBType == "" {
			col.DBType = DefaultDBType(col.Type)
		}
		if col.Validation != nil {
			v := *col.Validation
			if err := v.compile(); err != nil {
				return nil, fmt.Errorf("table %q: column %q: %w", name, col.Name, err)
			}
			col.Validation = &v
		}

		c := &col
		for _, key := range []string{c.Name, c.Alias} {
			if key == "" {
				continue
			}
			k := foldKey(key)
			if prev, dup := t.index[k]; dup && prev != c {
				return nil, fmt.Errorf("table %q: duplicate column name %q", name, key)
			}
			t.index[k] = c
		}
		t.columns = append(t.columns, c)
	}

	if len(primaryKey) > 0 {
		for _, key := range primaryKey {
			c, ok := t.index[foldKey(key)]
			if !ok {
				return nil, fmt.Errorf("table %q: primary key column %q not found", name, key)
			}
			c.PrimaryKey = true
			t.pk = append(t.pk, c)
		}
	} else {
		for _, c := range t.columns {
			if c.PrimaryKey {
				t.pk = append(t.pk, c)
			}
		}
	}

	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// PrimaryKey returns the identity columns in key order.
func (t *Table) PrimaryKey() []*Column {
	out := make([]*Column, len(t.pk))
	copy(out, t.pk)
	return out
}

// Column looks up a column by name or alias, ignoring case.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.index[foldKey(name)]
	return c, ok
}

// Describe returns a portable description of the table for response metadata.
func (t *Table) Describe() map[string]any {
	fields := make([]map[string]any, 0, len(t.columns))
	for _, c := range t.columns {
		f := map[string]any{
			"name":        c.Label(),
			"type":        string(c.Type),
			"db_type":     c.DBType,
			"allow_null":  c.AllowNull,
			"primary_key": c.PrimaryKey,
		}
		if c.Alias != "" {
			f["alias"] = c.Alias
			f["name"] = c.Name
		}
		fields = append(fields, f)
	}

	pk := make([]string, 0, len(t.pk))
	for _, c := range t.pk {
		pk = append(pk, c.Name)
	}

	return map[string]any{
		"name":        t.name,
		"primary_key": pk,
		"field":       fields,
	}
}

// foldKey normalizes a column name for case-insensitive lookup.
// A Caser holds state, so a fresh one is built per call.
func foldKey(s string) string {
	return cases.Fold().String(s)
}
