package filter

import "strconv"

// likeWrap says where % wildcards are added to the value of a LIKE-family
// operator.
type likeWrap int

const (
	likeNone likeWrap = iota
	likePrefix
	likeSuffix
	likeContains
)

// Operator is a comparison operator accepted in filter text.
type Operator struct {
	// Name is the canonical spelling.
	Name string

	// Native is the operator written to the native query.
	Native string

	// List operators take a parenthesized value list.
	List bool

	// NoValue operators take no value at all.
	NoValue bool

	tokens []string
	like   likeWrap
}

// operators are matched in this order: multi-token and longer spellings come
// before any operator that is a prefix of them.
var operators = []*Operator{
	{Name: "NOT IN", Native: "NOT IN", List: true, tokens: []string{"NOT", "IN"}},
	{Name: "IN", Native: "IN", List: true, tokens: []string{"IN"}},
	{Name: "STARTS WITH", Native: "LIKE", tokens: []string{"STARTS", "WITH"}, like: likePrefix},
	{Name: "ENDS WITH", Native: "LIKE", tokens: []string{"ENDS", "WITH"}, like: likeSuffix},
	{Name: "CONTAINS", Native: "LIKE", tokens: []string{"CONTAINS"}, like: likeContains},
	{Name: "IS NOT NULL", Native: "IS NOT NULL", NoValue: true, tokens: []string{"IS", "NOT", "NULL"}},
	{Name: "IS NULL", Native: "IS NULL", NoValue: true, tokens: []string{"IS", "NULL"}},
	{Name: "DOES NOT EXIST", Native: "IS NULL", NoValue: true, tokens: []string{"DOES", "NOT", "EXIST"}},
	{Name: "DOES EXIST", Native: "IS NOT NULL", NoValue: true, tokens: []string{"DOES", "EXIST"}},
	{Name: "NOT LIKE", Native: "NOT LIKE", tokens: []string{"NOT", "LIKE"}},
	{Name: "LIKE", Native: "LIKE", tokens: []string{"LIKE"}},
	{Name: ">=", Native: ">=", tokens: []string{">="}},
	{Name: "<=", Native: "<=", tokens: []string{"<="}},
	{Name: "!=", Native: "!=", tokens: []string{"!="}},
	{Name: "<>", Native: "!=", tokens: []string{"<>"}},
	{Name: "=", Native: "=", tokens: []string{"="}},
	{Name: ">", Native: ">", tokens: []string{">"}},
	{Name: "<", Native: "<", tokens: []string{"<"}},
	{Name: "GTE", Native: ">=", tokens: []string{"GTE"}},
	{Name: "LTE", Native: "<=", tokens: []string{"LTE"}},
	{Name: "NE", Native: "!=", tokens: []string{"NE"}},
	{Name: "EQ", Native: "=", tokens: []string{"EQ"}},
	{Name: "GT", Native: ">", tokens: []string{"GT"}},
	{Name: "LT", Native: "<", tokens: []string{"LT"}},
}

// LookupOperator finds an operator by spelling, ignoring case and repeated
// spaces.
func LookupOperator(name string) (*Operator, bool) {
	toks, err := tokenize(name)
	if err != nil {
		return nil, false
	}
	op, n := matchOperator(toks, 0)
	if op == nil || toks[n].kind != tokEOF {
		return nil, false
	}
	return op, true
}

// matchOperator returns the first operator whose tokens start at toks[i],
// and the index just past it.
func matchOperator(toks []token, i int) (*Operator, int) {
	for _, op := range operators {
		if i+len(op.tokens) > len(toks) {
			continue
		}
		ok := true
		for k, want := range op.tokens {
			t := toks[i+k]
			if t.kind != tokWord && t.kind != tokOp {
				ok = false
				break
			}
			if !equalFoldASCII(t.text, want) {
				ok = false
				break
			}
		}
		if ok {
			return op, i + len(op.tokens)
		}
	}
	return nil, i
}

func (op *Operator) wrap(s string) string {
	switch op.like {
	case likePrefix:
		return s + "%"
	case likeSuffix:
		return "%" + s
	case likeContains:
		return "%" + s + "%"
	default:
		return s
	}
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
