package filter

import (
	"fmt"
	"strings"

	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/schema"
)

// Columns resolves filter field names to column descriptors.
// *schema.Table satisfies it.
type Columns interface {
	Column(name string) (*schema.Column, bool)
}

// Compiled is a native WHERE fragment with its ordered parameters.
type Compiled struct {
	Text   string
	Params []any
}

// Empty reports whether the filter matched everything (no WHERE clause).
func (c *Compiled) Empty() bool {
	return c == nil || c.Text == ""
}

// Compiler compiles filter text against a table's columns.
// It is stateless and safe for concurrent use.
type Compiler struct {
	marshaller *marshal.Marshaller
}

// NewCompiler creates a Compiler that converts values with m.
func NewCompiler(m *marshal.Marshaller) *Compiler {
	if m == nil {
		m = marshal.New()
	}
	return &Compiler{marshaller: m}
}

// Compile compiles filterText into a native fragment.
//
// params supplies values for :name references (keys with or without the
// leading colon). server, when non-empty, is rendered and conjoined as
// "(<filterText>) AND (<server>)". An empty filter with no server filter
// compiles to an empty fragment.
//
// CRITICAL: values are never interpolated; each becomes a ? placeholder.
func (c *Compiler) Compile(filterText string, params map[string]any, server *ServerFilter, columns Columns) (*Compiled, error) {
	text := strings.TrimSpace(filterText)

	if !server.Empty() {
		serverText, err := RenderServerFilter(server)
		if err != nil {
			return nil, err
		}
		if text == "" {
			text = serverText
		} else {
			text = "(" + text + ") AND (" + serverText + ")"
		}
	}

	if text == "" {
		return &Compiled{}, nil
	}

	node, err := Parse(text)
	if err != nil {
		return nil, err
	}

	r := &renderer{
		marshaller: c.marshaller,
		columns:    columns,
		params:     params,
	}
	var b strings.Builder
	if err := r.render(&b, node); err != nil {
		return nil, err
	}
	return &Compiled{Text: b.String(), Params: r.out}, nil
}

// renderer walks a Node tree in source order, so parameters are appended in
// the order their placeholders appear.
type renderer struct {
	marshaller *marshal.Marshaller
	columns    Columns
	params     map[string]any
	out        []any
}

func (r *renderer) render(b *strings.Builder, n Node) error {
	switch n := n.(type) {
	case *Logical:
		if err := r.render(b, n.Left); err != nil {
			return err
		}
		b.WriteString(" " + n.Op + " ")
		return r.render(b, n.Right)

	case *Not:
		b.WriteString("NOT ")
		return r.render(b, n.Expr)

	case *Group:
		b.WriteString("(")
		if err := r.render(b, n.Expr); err != nil {
			return err
		}
		b.WriteString(")")
		return nil

	case *Comparison:
		return r.renderComparison(b, n)

	default:
		return fmt.Errorf("unsupported filter node %T", n)
	}
}

func (r *renderer) renderComparison(b *strings.Builder, cmp *Comparison) error {
	if r.columns == nil {
		return unknownField(cmp)
	}
	col, ok := r.columns.Column(cmp.Field)
	if !ok {
		return unknownField(cmp)
	}

	if cmp.Negate {
		b.WriteString("NOT ")
	}
	b.WriteString(cql.ColumnRef(col))
	b.WriteString(" ")
	b.WriteString(cmp.Op.Native)

	switch {
	case cmp.Op.NoValue:
		return nil

	case cmp.Op.List:
		for _, v := range cmp.Values {
			if err := r.bind(v, cmp.Op, col); err != nil {
				return err
			}
		}
		b.WriteString(" (" + cql.Placeholders(len(cmp.Values)) + ")")
		return nil

	default:
		if err := r.bind(cmp.Values[0], cmp.Op, col); err != nil {
			return err
		}
		b.WriteString(" ?")
		return nil
	}
}

// bind resolves v, converts it to the column's native type and appends it
// to the parameter list.
func (r *renderer) bind(v Value, op *Operator, col *schema.Column) error {
	var raw any
	switch v.Kind {
	case ValueParam:
		val, ok := r.lookupParam(v.Text)
		if !ok {
			return dberr.Compilef("unbound parameter :%s", v.Text).With("position", itoa(v.Pos))
		}
		raw = val
	default:
		raw = v.Text
	}

	if op.like != likeNone {
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprint(raw)
		}
		raw = op.wrap(s)
	}

	native, err := r.marshaller.ToNative(raw, col)
	if err != nil {
		return err
	}
	r.out = append(r.out, native)
	return nil
}

func (r *renderer) lookupParam(name string) (any, bool) {
	if r.params == nil {
		return nil, false
	}
	if v, ok := r.params[":"+name]; ok {
		return v, true
	}
	v, ok := r.params[name]
	return v, ok
}

func unknownField(cmp *Comparison) error {
	return dberr.Compilef("invalid or unparsable field in filter request: %q", cmp.Field).
		With("field", cmp.Field).
		With("position", itoa(cmp.FieldPos))
}
