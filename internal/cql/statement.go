package cql

import (
	"fmt"
	"strings"

	"github.com/roach88/cqlgate/internal/schema"
)

// Select describes a SELECT statement.
type Select struct {
	Table   string
	Columns []string // rendered select expressions; empty selects *
	Where   string
	Args    []any
	GroupBy []string
	OrderBy []string
	Limit   int
	Offset  int

	// AllowFiltering appends ALLOW FILTERING for dialects that require it
	// on non-key predicates.
	AllowFiltering bool
}

// Build renders the statement and its arguments. OFFSET is emitted as given;
// the paging layer rewrites it for stores without native offsets.
func (s Select) Build() (string, []any) {
	var b strings.Builder

	b.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(s.Columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(QuoteIdent(s.Table))

	if s.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.OrderBy, ", "))
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	if s.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", s.Offset)
	}
	if s.AllowFiltering {
		b.WriteString(" ALLOW FILTERING")
	}

	return b.String(), s.Args
}

// Count describes a SELECT COUNT(*) statement.
type Count struct {
	Table          string
	Where          string
	Args           []any
	AllowFiltering bool
}

// Build renders the statement and its arguments.
func (c Count) Build() (string, []any) {
	q := "SELECT COUNT(*) FROM " + QuoteIdent(c.Table)
	if c.Where != "" {
		q += " WHERE " + c.Where
	}
	if c.AllowFiltering {
		q += " ALLOW FILTERING"
	}
	return q, c.Args
}

// Insert describes an INSERT statement.
type Insert struct {
	Table   string
	Columns []string
	Values  []any
}

// Build renders the statement and its arguments.
func (i Insert) Build() (string, []any) {
	cols := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		cols[n] = QuoteIdent(c)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(i.Table), strings.Join(cols, ", "), Placeholders(len(i.Values)))
	return q, i.Values
}

// Update describes an UPDATE statement. Set arguments precede Where arguments.
type Update struct {
	Table     string
	Columns   []string
	SetArgs   []any
	Where     string
	WhereArgs []any
}

// Build renders the statement and its arguments.
func (u Update) Build() (string, []any) {
	sets := make([]string, len(u.Columns))
	for n, c := range u.Columns {
		sets[n] = QuoteIdent(c) + " = ?"
	}
	q := fmt.Sprintf("UPDATE %s SET %s", QuoteIdent(u.Table), strings.Join(sets, ", "))
	if u.Where != "" {
		q += " WHERE " + u.Where
	}

	args := make([]any, 0, len(u.SetArgs)+len(u.WhereArgs))
	args = append(args, u.SetArgs...)
	args = append(args, u.WhereArgs...)
	return q, args
}

// Delete describes a DELETE statement.
type Delete struct {
	Table string
	Where string
	Args  []any
}

// Build renders the statement and its arguments.
func (d Delete) Build() (string, []any) {
	q := "DELETE FROM " + QuoteIdent(d.Table)
	if d.Where != "" {
		q += " WHERE " + d.Where
	}
	return q, d.Args
}

// Truncate renders a TRUNCATE statement.
func Truncate(table string) string {
	return "TRUNCATE " + QuoteIdent(table)
}

// KeyEquals renders "k1 = ? AND k2 = ?" for the given key columns.
func KeyEquals(keys []*schema.Column) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = ColumnRef(k) + " = ?"
	}
	return strings.Join(parts, " AND ")
}

// KeyIn renders "k IN (?,?,...)" for n values.
func KeyIn(key *schema.Column, n int) string {
	return ColumnRef(key) + " IN (" + Placeholders(n) + ")"
}

// And conjoins non-empty fragments, parenthesizing each when there is more
// than one.
func And(fragments ...string) string {
	var parts []string
	for _, f := range fragments {
		if f != "" {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return "(" + strings.Join(parts, ") AND (") + ")"
	}
}
