package filter

// Node is a parsed filter expression.
//
// Node is a sealed interface: only types in this package implement it.
type Node interface {
	node()
}

// Logical joins two expressions with AND or OR.
type Logical struct {
	Op    string // "AND" | "OR"
	Left  Node
	Right Node
}

// Not negates a parenthesized expression.
type Not struct {
	Expr Node
}

// Group is an explicitly parenthesized expression. Groups are kept so the
// output mirrors the input's grouping.
type Group struct {
	Expr Node
}

// Comparison tests one field.
type Comparison struct {
	Field    string
	FieldPos int
	Op       *Operator

	// Negate is set by a NOT between field and operator (status NOT = 1).
	Negate bool

	// Values holds one entry for scalar operators, one per element for list
	// operators and none for no-value operators.
	Values []Value
}

// ValueKind tells how a comparison value was written.
type ValueKind int

const (
	// ValueText is bare text, taken verbatim.
	ValueText ValueKind = iota
	// ValueQuoted is a quoted literal with its quotes removed.
	ValueQuoted
	// ValueParam is a :name reference to a bound parameter.
	ValueParam
)

// Value is an unresolved comparison value.
type Value struct {
	Kind ValueKind
	Text string // literal text, or the parameter name without ':'
	Pos  int
}

func (Logical) node()    {}
func (Not) node()        {}
func (Group) node()      {}
func (Comparison) node() {}
