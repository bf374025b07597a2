package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/store"
	"github.com/roach88/cqlgate/internal/testutil"
)

func TestFromRow(t *testing.T) {
	m := marshal.New()
	tbl := testutil.ThingsTable()

	created := time.Date(2020, 5, 6, 7, 8, 9, 250000000, time.UTC)
	row := store.Row{
		"id":      "00000000-0000-4000-8000-000000000001",
		"name":    "Widget",
		"qty":     int64(3),
		"created": created.UnixMilli(),
		"email":   "a@b.c",
		"lname":   "widget",
	}
	rec, err := FromRow(m, row, tbl.Columns())
	require.NoError(t, err)

	assert.Equal(t, Record{
		"id":      "00000000-0000-4000-8000-000000000001",
		"name":    "Widget",
		"qty":     int64(3),
		"owner":   nil,
		"created": "2020-05-06 07:08:09.250",
		"email":   "a@b.c",
		"lname":   "widget",
	}, rec)
}

func TestRecordLookup(t *testing.T) {
	tbl := testutil.ThingsTable()
	email, _ := tbl.Column("email")

	v, ok := Record{"EMAIL": "x"}.Lookup(email)
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	v, ok = Record{"mail_addr": "y"}.Lookup(email)
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = Record{"other": 1}.Lookup(email)
	assert.False(t, ok)
}

func TestKeyFrom(t *testing.T) {
	things := testutil.ThingsTable()
	events := testutil.EventsTable()

	k, err := KeyFrom(things, "abc")
	require.NoError(t, err)
	assert.Equal(t, Key{"abc"}, k)

	k, err = KeyFrom(things, map[string]any{"ID": "abc", "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, Key{"abc"}, k)

	k, err = KeyFrom(events, map[string]any{"seq": 2, "day": "2020-01-01"})
	require.NoError(t, err)
	assert.Equal(t, Key{"2020-01-01", 2}, k)

	_, err = KeyFrom(events, "2020-01-01")
	assert.True(t, dberr.IsBadRequest(err))

	_, err = KeyFrom(events, map[string]any{"day": "2020-01-01"})
	assert.True(t, dberr.IsBadRequest(err))

	_, err = KeyFrom(things, "")
	assert.True(t, dberr.IsBadRequest(err))
}

func TestKeyRecordAndNative(t *testing.T) {
	m := marshal.New()
	events := testutil.EventsTable()
	k := Key{"2020-01-01", "7"}

	assert.Equal(t, Record{"day": "2020-01-01", "seq": "7"}, k.Record(events))

	native, err := k.Native(m, events)
	require.NoError(t, err)
	assert.Equal(t, []any{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), int32(7)}, native)

	_, err = Key{"2020-01-01"}.Native(m, events)
	assert.Error(t, err)
}

func TestCanonicalMatchesRowKey(t *testing.T) {
	m := marshal.New()
	things := testutil.ThingsTable()
	events := testutil.EventsTable()

	a, err := Key{"00000000-0000-4000-8000-00000000000A"}.Canonical(m, things)
	require.NoError(t, err)
	b, err := RowKey(m, things, store.Row{"id": "00000000-0000-4000-8000-00000000000a"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := Key{"2020-01-01", 7}.Canonical(m, events)
	require.NoError(t, err)
	d, err := RowKey(m, events, store.Row{"day": day.UnixMilli(), "seq": int64(7)})
	require.NoError(t, err)
	assert.Equal(t, c, d)
}
