package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/record"
)

func TestReplaceLookups(t *testing.T) {
	c := &Context{Lookups: map[string]string{"user_id": "42", "user.email": "a@example.com"}}

	tests := []struct {
		in, want string
	}{
		{"owner = {user_id}", "owner = 42"},
		{"mail = '{user.email}' AND owner = {user_id}", "mail = 'a@example.com' AND owner = 42"},
		{"owner = {unknown}", "owner = {unknown}"},
		{"no lookups here", "no lookups here"},
		{"{ user_id }", "{ user_id }"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ReplaceLookups(tt.in))
		})
	}
}

func TestNilContext(t *testing.T) {
	var c *Context
	assert.Equal(t, "{x}", c.ReplaceLookups("{x}"))
	assert.Nil(t, c.ServerFilter("things"))
}

func TestResolveRecordAndParams(t *testing.T) {
	c := &Context{Lookups: map[string]string{"team": "ops"}}

	rec := record.Record{"owner": "{team}", "qty": 3, "tags": []any{"{team}", 1}}
	got := c.ResolveRecord(rec)
	assert.Equal(t, record.Record{"owner": "ops", "qty": 3, "tags": []any{"ops", 1}}, got)
	assert.Equal(t, "{team}", rec["owner"], "input is not modified")

	params := c.ResolveParams(map[string]any{":owner": "{team}"})
	assert.Equal(t, map[string]any{":owner": "ops"}, params)
	assert.Nil(t, c.ResolveParams(nil))
}

func TestServerFilter(t *testing.T) {
	c := &Context{
		Lookups: map[string]string{"user_id": "42"},
		ServerFilters: map[string]*filter.ServerFilter{
			"Things": {
				Combiner: "OR",
				Filters: []filter.ServerCondition{
					{Name: "owner", Operator: "=", Value: "{user_id}"},
					{Name: "status", Operator: "IN", Value: []any{"open", "{user_id}"}},
				},
			},
			"empty": {},
		},
	}

	sf := c.ServerFilter("things")
	require.NotNil(t, sf)
	assert.Equal(t, "OR", sf.Combiner)
	assert.Equal(t, "42", sf.Filters[0].Value)
	assert.Equal(t, []any{"open", "42"}, sf.Filters[1].Value)
	assert.Equal(t, "{user_id}", c.ServerFilters["Things"].Filters[0].Value, "stored filter is not modified")

	assert.Nil(t, c.ServerFilter("empty"))
	assert.Nil(t, c.ServerFilter("other"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lookups:
  user_id: "42"
server_filters:
  things:
    filter_op: AND
    filters:
      - name: owner
        operator: "="
        value: "{user_id}"
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "42", c.Lookups["user_id"])

	sf := c.ServerFilter("things")
	require.NotNil(t, sf)
	require.Len(t, sf.Filters, 1)
	assert.Equal(t, "42", sf.Filters[0].Value)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("lookups: [1, 2"))
	assert.Error(t, err)
}
