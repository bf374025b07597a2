// Package session carries the per-request authorization context: lookup
// values substituted into filters and records, and the server filters
// enforced per table.
package session

import (
	"regexp"
	"strings"

	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/record"
)

var lookupRef = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// Context is the authorization context of one request. The zero value has
// no lookups and no server filters.
type Context struct {
	// Lookups maps names to the values substituted for {name}.
	Lookups map[string]string `yaml:"lookups" json:"lookups"`

	// ServerFilters holds the filter enforced on each table, keyed by table
	// name (matched case-insensitively).
	ServerFilters map[string]*filter.ServerFilter `yaml:"server_filters" json:"server_filters"`
}

// ReplaceLookups substitutes every {name} with its lookup value. Unknown
// names are left in place.
func (c *Context) ReplaceLookups(s string) string {
	if c == nil || len(c.Lookups) == 0 || !strings.Contains(s, "{") {
		return s
	}
	return lookupRef.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := c.Lookups[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// ResolveValue substitutes lookups in string values, including strings
// inside lists. Other values are returned unchanged.
func (c *Context) ResolveValue(v any) any {
	switch x := v.(type) {
	case string:
		return c.ReplaceLookups(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = c.ResolveValue(e)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = c.ReplaceLookups(e)
		}
		return out
	}
	return v
}

// ResolveParams returns a copy of params with lookups substituted.
func (c *Context) ResolveParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = c.ResolveValue(v)
	}
	return out
}

// ResolveRecord returns a copy of rec with lookups substituted.
func (c *Context) ResolveRecord(rec record.Record) record.Record {
	if rec == nil {
		return nil
	}
	out := make(record.Record, len(rec))
	for k, v := range rec {
		out[k] = c.ResolveValue(v)
	}
	return out
}

// ServerFilter returns the filter enforced on table with lookups resolved,
// or nil when the table is unrestricted.
func (c *Context) ServerFilter(table string) *filter.ServerFilter {
	if c == nil {
		return nil
	}
	sf, ok := c.ServerFilters[table]
	if !ok {
		for name, f := range c.ServerFilters {
			if strings.EqualFold(name, table) {
				sf, ok = f, true
				break
			}
		}
	}
	if !ok || sf.Empty() {
		return nil
	}

	out := &filter.ServerFilter{
		Combiner: sf.Combiner,
		Filters:  make([]filter.ServerCondition, len(sf.Filters)),
	}
	for i, cond := range sf.Filters {
		out.Filters[i] = filter.ServerCondition{
			Name:     cond.Name,
			Operator: cond.Operator,
			Value:    c.ResolveValue(cond.Value),
		}
	}
	return out
}
