package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cqlgate/internal/schema"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"id", "id"},
		{"first_name", "first_name"},
		{"firstName", `"firstName"`},
		{"select", `"select"`},
		{"order", `"order"`},
		{"2fa", `"2fa"`},
		{`we"ird`, `"we""ird"`},
		{"with space", `"with space"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteIdent(tt.in))
		})
	}
}

func TestSelectExpr(t *testing.T) {
	plain := &schema.Column{Name: "name", Type: schema.TypeString}
	aliased := &schema.Column{Name: "mail_addr", Alias: "email", Type: schema.TypeString}
	computed := &schema.Column{Name: "n", Alias: "nameLen", Type: schema.TypeVirtual, Expression: "length(name)"}

	assert.Equal(t, "name", SelectExpr(plain))
	assert.Equal(t, "mail_addr AS email", SelectExpr(aliased))
	assert.Equal(t, `length(name) AS "nameLen"`, SelectExpr(computed))
	assert.Equal(t, "length(name)", ColumnRef(computed))
	assert.Equal(t, "mail_addr", ColumnRef(aliased))
}

func TestSelectBuild(t *testing.T) {
	q, args := Select{
		Table:          "users",
		Columns:        []string{"id", "name"},
		Where:          "age > ?",
		Args:           []any{int32(21)},
		OrderBy:        []string{"name DESC"},
		Limit:          10,
		Offset:         5,
		AllowFiltering: true,
	}.Build()

	assert.Equal(t, "SELECT id, name FROM users WHERE age > ? ORDER BY name DESC LIMIT 10 OFFSET 5 ALLOW FILTERING", q)
	assert.Equal(t, []any{int32(21)}, args)

	// Values never reach the statement text.
	assert.NotContains(t, q, "21")
}

func TestSelectBuildMinimal(t *testing.T) {
	q, args := Select{Table: "Users", GroupBy: []string{"kind"}}.Build()
	assert.Equal(t, `SELECT * FROM "Users" GROUP BY kind`, q)
	assert.Nil(t, args)
}

func TestCountBuild(t *testing.T) {
	q, args := Count{Table: "users", Where: "a = ?", Args: []any{1}, AllowFiltering: true}.Build()
	assert.Equal(t, "SELECT COUNT(*) FROM users WHERE a = ? ALLOW FILTERING", q)
	assert.Equal(t, []any{1}, args)

	q, _ = Count{Table: "users"}.Build()
	assert.Equal(t, "SELECT COUNT(*) FROM users", q)
}

func TestInsertBuild(t *testing.T) {
	q, args := Insert{Table: "users", Columns: []string{"id", "firstName"}, Values: []any{1, "a"}}.Build()
	assert.Equal(t, `INSERT INTO users (id, "firstName") VALUES (?,?)`, q)
	assert.Equal(t, []any{1, "a"}, args)
}

func TestUpdateBuild(t *testing.T) {
	q, args := Update{
		Table:     "users",
		Columns:   []string{"name", "age"},
		SetArgs:   []any{"bob", 3},
		Where:     "id = ?",
		WhereArgs: []any{"k"},
	}.Build()
	assert.Equal(t, "UPDATE users SET name = ?, age = ? WHERE id = ?", q)
	assert.Equal(t, []any{"bob", 3, "k"}, args)
}

func TestDeleteAndTruncate(t *testing.T) {
	q, args := Delete{Table: "users", Where: "id IN (?,?)", Args: []any{1, 2}}.Build()
	assert.Equal(t, "DELETE FROM users WHERE id IN (?,?)", q)
	assert.Equal(t, []any{1, 2}, args)

	assert.Equal(t, "TRUNCATE users", Truncate("users"))
}

func TestKeyPredicates(t *testing.T) {
	a := &schema.Column{Name: "a", Type: schema.TypeInteger}
	b := &schema.Column{Name: "B", Type: schema.TypeInteger}

	assert.Equal(t, `a = ? AND "B" = ?`, KeyEquals([]*schema.Column{a, b}))
	assert.Equal(t, "a IN (?,?,?)", KeyIn(a, 3))
	assert.Equal(t, "", Placeholders(0))
}

func TestAnd(t *testing.T) {
	assert.Equal(t, "", And())
	assert.Equal(t, "a = ?", And("", "a = ?"))
	assert.Equal(t, "(a = ?) AND (b = ? OR c = ?)", And("a = ?", "", "b = ? OR c = ?"))
}
