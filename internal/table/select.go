package table

import (
	"strings"

	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/schema"
)

// allFields selects every field.
const allFields = "*"

// splitList splits a comma-separated option, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// selectFields resolves the requested fields. Without a field list the
// identifier fields are returned.
func selectFields(t *schema.Table, opts Options) ([]*schema.Column, error) {
	spec := strings.TrimSpace(opts.Fields)
	if spec == "" {
		if ids := strings.TrimSpace(opts.IDFields); ids != "" {
			return resolveFields(t, splitList(ids))
		}
		return t.PrimaryKey(), nil
	}
	if spec == allFields {
		var out []*schema.Column
		for _, col := range t.Columns() {
			if selectable(col) {
				out = append(out, col)
			}
		}
		return out, nil
	}
	return resolveFields(t, splitList(spec))
}

func resolveFields(t *schema.Table, names []string) ([]*schema.Column, error) {
	out := make([]*schema.Column, 0, len(names))
	seen := make(map[*schema.Column]bool, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok || !selectable(col) {
			return nil, dberr.BadRequestf("invalid field requested: %s", name).With("field", name)
		}
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	return out, nil
}

// selectable reports whether a column can appear in a select list.
func selectable(col *schema.Column) bool {
	return !col.IsVirtual() || col.Computed()
}

func selectExprs(fields []*schema.Column) []string {
	out := make([]string, len(fields))
	for i, col := range fields {
		out[i] = cql.SelectExpr(col)
	}
	return out
}

// parseOrder validates "field [ASC|DESC], ..." and renders it natively.
func parseOrder(t *schema.Table, order string) ([]string, error) {
	order = strings.TrimSpace(order)
	if order == "" {
		return nil, nil
	}
	if strings.Contains(order, ";") {
		return nil, dberr.BadRequestf("invalid order by clause in request")
	}

	var out []string
	for _, term := range splitList(order) {
		parts := strings.Fields(term)
		if len(parts) > 2 {
			return nil, dberr.BadRequestf("invalid order by clause in request: %q", term)
		}
		col, ok := t.Column(parts[0])
		if !ok {
			return nil, dberr.BadRequestf("invalid order by field: %s", parts[0]).With("field", parts[0])
		}
		dir := "ASC"
		if len(parts) == 2 {
			dir = strings.ToUpper(parts[1])
			if dir != "ASC" && dir != "DESC" {
				return nil, dberr.BadRequestf("invalid order by direction %q", parts[1])
			}
		}
		out = append(out, cql.ColumnRef(col)+" "+dir)
	}
	return out, nil
}

// parseGroup validates a comma-separated group list.
func parseGroup(t *schema.Table, group string) ([]string, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return nil, nil
	}
	if strings.Contains(group, ";") {
		return nil, dberr.BadRequestf("invalid group by clause in request")
	}

	var out []string
	for _, name := range splitList(group) {
		col, ok := t.Column(name)
		if !ok {
			return nil, dberr.BadRequestf("invalid group by field: %s", name).With("field", name)
		}
		out = append(out, cql.ColumnRef(col))
	}
	return out, nil
}
