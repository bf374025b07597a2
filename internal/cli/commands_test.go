package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "--format", "json", "schema", "--create")
		require.NoError(t, err)

		resp := decode(t, out)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]any{"tables": []any{"things"}}, resp.Data)
	})

	t.Run("describe", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "--format", "json", "schema", "things")
		require.NoError(t, err)

		data := decode(t, out).Data.(map[string]any)
		assert.Equal(t, "things", data["name"])
		assert.Equal(t, []any{"id"}, data["primary_key"])
		assert.Len(t, data["field"], 4)
	})

	t.Run("unknown_table", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "--format", "json", "schema", "nope")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "NOT_FOUND", decode(t, out).Error.Code)
	})
}

func TestCompileCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)

	out, err := execute(t, "--config", cfgPath, "--format", "json",
		"compile", "things", "name = 'alpha' AND qty > :min", "--param", "min=2")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, "things", data["table"])
	assert.Equal(t, "name = ? AND qty > ?", data["where"])
	assert.Equal(t, []any{"alpha", "2"}, data["params"])
}

func TestCompileCommandWithSession(t *testing.T) {
	cfgPath := setupWorkspace(t)

	sess := writeFile(t, "session.yaml", `
lookups:
  user: bob
server_filters:
  things:
    filters:
      - {name: owner, operator: "=", value: "{user}"}
`)
	out, err := execute(t, "--config", cfgPath, "--format", "json",
		"compile", "things", "qty > 1", "--session", sess)
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, "(qty > ?) AND ((owner = ?))", data["where"])
	assert.Equal(t, []any{"1", "bob"}, data["params"])
}

func TestCompileCommandErrors(t *testing.T) {
	cfgPath := setupWorkspace(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown_field", []string{"compile", "things", "nope = 1"}, "COMPILE_ERROR"},
		{"unbound_param", []string{"compile", "things", "qty = :missing"}, "COMPILE_ERROR"},
		{"bad_param_flag", []string{"compile", "things", "qty = 1", "--param", "novalue"}, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath, "--format", "json"}, tt.args...)
			out, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decode(t, out)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestGetCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	out, err := execute(t, "--config", cfgPath, "--format", "json",
		"get", "things", "owner = :owner", "--param", "owner=alice",
		"--fields", "name,qty", "--order", "qty DESC", "--include-count")
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, []any{
		map[string]any{"name": "charlie", "qty": float64(3)},
		map[string]any{"name": "alpha", "qty": float64(1)},
	}, data["resource"])
	assert.Equal(t, map[string]any{"count": float64(2)}, data["meta"])
}

func TestGetCommandTextOutput(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	out, err := execute(t, "--config", cfgPath, "get", "things", "--count-only")
	require.NoError(t, err)
	assert.Contains(t, out, "count: 3")
}

func TestGetCommandSessionServerFilter(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	sess := writeFile(t, "session.yaml", `
lookups:
  user: bob
server_filters:
  things:
    filters:
      - {name: owner, operator: "=", value: "{user}"}
`)
	out, err := execute(t, "--config", cfgPath, "--format", "json",
		"get", "things", "--fields", "name", "--session", sess)
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, []any{map[string]any{"name": "bravo"}}, data["resource"])
}

func TestBatchCommand(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	patch := writeFile(t, "patch.yaml", `
table: things
verb: PATCH
records:
  - {id: "`+idAlpha+`", qty: 10}
options:
  fields: name,qty
`)
	out, err := execute(t, "--config", cfgPath, "--format", "json", "batch", patch)
	require.NoError(t, err)

	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, []any{map[string]any{"name": "alpha", "qty": float64(10)}}, data["resource"])

	del := writeFile(t, "delete.yaml", `
table: things
verb: DELETE
filter: "owner = :owner"
params: {owner: alice}
`)
	_, err = execute(t, "--config", cfgPath, "--format", "json", "batch", del)
	require.NoError(t, err)

	out, err = execute(t, "--config", cfgPath, "--format", "json", "get", "things", "--fields", "name")
	require.NoError(t, err)
	data = decode(t, out).Data.(map[string]any)
	assert.Equal(t, []any{map[string]any{"name": "bravo"}}, data["resource"])
}

func TestBatchCommandPartialFailure(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	req := writeFile(t, "get.yaml", `
table: things
verb: GET
ids: ["`+idAlpha+`", "`+idMissing+`", "`+idBravo+`"]
options: {continue: true}
`)
	out, err := execute(t, "--config", cfgPath, "--format", "json", "batch", req)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode(t, out)
	assert.Equal(t, "BATCH_PARTIAL_FAILURE", resp.Error.Code)
	details := resp.Error.Details.([]any)
	require.Len(t, details, 1)
	assert.Equal(t, float64(1), details[0].(map[string]any)["index"])
	assert.Equal(t, "NOT_FOUND", details[0].(map[string]any)["code"])
}

func TestBatchCommandRollback(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	req := writeFile(t, "post.yaml", `
table: things
verb: POST
records:
  - {name: delta, qty: 4}
  - {qty: 5}
options: {rollback: true}
`)
	_, err := execute(t, "--config", cfgPath, "--format", "json", "batch", req)
	require.Error(t, err)

	out, err := execute(t, "--config", cfgPath, "--format", "json", "get", "things", "--count-only")
	require.NoError(t, err)
	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, map[string]any{"count": float64(3)}, data["meta"])
}

func TestBatchCommandTruncate(t *testing.T) {
	cfgPath := setupWorkspace(t)
	seedWorkspace(t, cfgPath)

	req := writeFile(t, "truncate.yaml", "table: things\nverb: DELETE\ntruncate: true\n")
	_, err := execute(t, "--config", cfgPath, "batch", req)
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "--format", "json", "get", "things", "--count-only")
	require.NoError(t, err)
	data := decode(t, out).Data.(map[string]any)
	assert.Equal(t, map[string]any{"count": float64(0)}, data["meta"])
}

func TestLoadBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no_table", "verb: GET\nids: [1]\n", "no table"},
		{"bad_yaml", "table: [\n", "parse batch request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBatchRequest(writeFile(t, "req.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	req, err := LoadBatchRequest(writeFile(t, "req.yaml", "table: things\nverb: patch\nids: [a]\nupdates: {qty: 1}\n"))
	require.NoError(t, err)
	assert.Equal(t, "PATCH", req.Verb)
	assert.Equal(t, []any{"a"}, req.IDs)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"a=1", "b = x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": " x=y", "c": ""}, params)

	_, err = parseParams([]string{"=1"})
	assert.Error(t, err)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}
