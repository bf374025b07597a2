package cql

import (
	"regexp"
	"strings"

	"github.com/roach88/cqlgate/internal/schema"
)

var bareIdent = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reserved holds CQL keywords that can not be used as bare identifiers.
var reserved = map[string]bool{
	"add": true, "allow": true, "alter": true, "and": true, "apply": true,
	"asc": true, "authorize": true, "batch": true, "begin": true, "by": true,
	"columnfamily": true, "create": true, "delete": true, "desc": true,
	"describe": true, "drop": true, "entries": true, "execute": true,
	"from": true, "full": true, "grant": true, "if": true, "in": true,
	"index": true, "infinity": true, "insert": true, "into": true, "is": true,
	"keyspace": true, "limit": true, "materialized": true, "modify": true,
	"nan": true, "norecursive": true, "not": true, "null": true, "of": true,
	"on": true, "or": true, "order": true, "primary": true, "rename": true,
	"replace": true, "revoke": true, "schema": true, "select": true,
	"set": true, "table": true, "to": true, "token": true, "truncate": true,
	"unlogged": true, "update": true, "use": true, "using": true,
	"view": true, "where": true, "with": true,
}

// QuoteIdent renders an identifier so the store reads it back unchanged.
func QuoteIdent(name string) string {
	if bareIdent.MatchString(name) && !reserved[name] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnRef renders a column for use in predicates: the expression of a
// computed column, else its quoted name.
func ColumnRef(col *schema.Column) string {
	if col.Computed() {
		return col.Expression
	}
	return QuoteIdent(col.Name)
}

// SelectExpr renders a column for a select list, aliasing it to its label
// when the stored name differs.
func SelectExpr(col *schema.Column) string {
	if col.Computed() {
		return col.Expression + " AS " + QuoteIdent(col.Label())
	}
	if col.Alias != "" {
		return QuoteIdent(col.Name) + " AS " + QuoteIdent(col.Alias)
	}
	return QuoteIdent(col.Name)
}

// Placeholders returns n comma-separated placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
