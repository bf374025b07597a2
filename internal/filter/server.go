package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/cqlgate/internal/dberr"
)

// ServerFilter is an authorization-injected constraint applied to every
// request against a table.
type ServerFilter struct {
	// Filters are the individual conditions.
	Filters []ServerCondition `yaml:"filters" json:"filters"`

	// Combiner joins the conditions: "AND" (default) or "OR".
	Combiner string `yaml:"filter_op" json:"filter_op"`
}

// ServerCondition is one {name, operator, value} triple.
type ServerCondition struct {
	Name     string `yaml:"name" json:"name"`
	Operator string `yaml:"operator" json:"operator"`
	Value    any    `yaml:"value" json:"value"`
}

// Empty reports whether sf carries no conditions.
func (sf *ServerFilter) Empty() bool {
	return sf == nil || len(sf.Filters) == 0
}

// RenderServerFilter renders sf as filter text of "(name OP value)" fragments
// joined by the combiner. Values are written as quoted literals so the
// compiler binds them as parameters like any client value.
func RenderServerFilter(sf *ServerFilter) (string, error) {
	if sf.Empty() {
		return "", nil
	}

	combiner := strings.ToUpper(strings.TrimSpace(sf.Combiner))
	switch combiner {
	case "":
		combiner = "AND"
	case "AND", "OR":
	default:
		return "", dberr.Newf(dberr.CodeInternal, "invalid server filter combiner %q", sf.Combiner)
	}

	parts := make([]string, 0, len(sf.Filters))
	for i, f := range sf.Filters {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return "", dberr.Newf(dberr.CodeInternal, "server filter %d: name is required", i)
		}
		op, ok := LookupOperator(f.Operator)
		if !ok {
			return "", dberr.Newf(dberr.CodeInternal, "server filter %d: invalid operator %q", i, f.Operator)
		}

		switch {
		case op.NoValue:
			parts = append(parts, fmt.Sprintf("(%s %s)", name, op.Name))
		case op.List:
			list, err := literalList(f.Value)
			if err != nil {
				return "", dberr.Wrap(err, dberr.CodeInternal, fmt.Sprintf("server filter %d", i))
			}
			parts = append(parts, fmt.Sprintf("(%s %s %s)", name, op.Name, list))
		default:
			lit, err := literal(f.Value)
			if err != nil {
				return "", dberr.Wrap(err, dberr.CodeInternal, fmt.Sprintf("server filter %d", i))
			}
			parts = append(parts, fmt.Sprintf("(%s %s %s)", name, op.Name, lit))
		}
	}

	return strings.Join(parts, " "+combiner+" "), nil
}

// literal renders v as a quoted filter literal.
func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("value is required")
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		return "'" + strconv.FormatBool(x) + "'", nil
	case fmt.Stringer:
		return literal(x.String())
	default:
		return literal(fmt.Sprint(x))
	}
}

// literalList renders a slice, or a comma-separated string optionally wrapped
// in parentheses, as a parenthesized literal list.
func literalList(v any) (string, error) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case []string:
		for _, s := range x {
			items = append(items, s)
		}
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		for _, part := range strings.Split(s, ",") {
			items = append(items, strings.Trim(strings.TrimSpace(part), `'"`))
		}
	default:
		return "", fmt.Errorf("list value must be a list or comma-separated string, got %T", v)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("list value is empty")
	}

	lits := make([]string, len(items))
	for i, item := range items {
		lit, err := literal(item)
		if err != nil {
			return "", err
		}
		lits[i] = lit
	}
	return "(" + strings.Join(lits, ",") + ")", nil
}
