package testutil

import (
	"github.com/roach88/cqlgate/internal/schema"
)

// ThingsTable returns a single-key table covering the common column kinds:
//
//	id uuid (key), name text (required, at most 32 characters), qty int,
//	owner text, created timestamp, mail_addr text exposed as "email",
//	lname computed as lower(name).
func ThingsTable() *schema.Table {
	return mustTable("things", []schema.Column{
		{Name: "id", Type: schema.TypeUUID, PrimaryKey: true},
		{Name: "name", Type: schema.TypeString, Validation: &schema.Validation{NotEmpty: true, MaxLength: 32}},
		{Name: "qty", Type: schema.TypeInteger, AllowNull: true},
		{Name: "owner", Type: schema.TypeString, AllowNull: true},
		{Name: "created", Type: schema.TypeTimestamp, AllowNull: true},
		{Name: "mail_addr", Alias: "email", Type: schema.TypeString, AllowNull: true},
		{Name: "lname", Type: schema.TypeString, Expression: "lower(name)"},
	}, nil)
}

// EventsTable returns a table with the composite key (day, seq).
func EventsTable() *schema.Table {
	return mustTable("events", []schema.Column{
		{Name: "day", Type: schema.TypeDate},
		{Name: "seq", Type: schema.TypeInteger},
		{Name: "kind", Type: schema.TypeString, AllowNull: true},
	}, []string{"day", "seq"})
}

func mustTable(name string, cols []schema.Column, pk []string) *schema.Table {
	t, err := schema.NewTable(name, cols, pk)
	if err != nil {
		panic(err)
	}
	return t
}
