package store

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cqlgate/internal/schema"
)

func TestClusterConfig(t *testing.T) {
	cluster, err := clusterConfig(CassandraOptions{
		Hosts:       []string{"10.0.0.1", "10.0.0.2"},
		Port:        9142,
		Keyspace:    "app",
		Username:    "cassandra",
		Password:    "secret",
		Consistency: "local_quorum",
		Timeout:     3 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cluster.Hosts)
	assert.Equal(t, 9142, cluster.Port)
	assert.Equal(t, "app", cluster.Keyspace)
	assert.Equal(t, gocql.LocalQuorum, cluster.Consistency)
	assert.Equal(t, 3*time.Second, cluster.Timeout)
	assert.Equal(t, gocql.PasswordAuthenticator{Username: "cassandra", Password: "secret"}, cluster.Authenticator)
}

func TestClusterConfigErrors(t *testing.T) {
	_, err := clusterConfig(CassandraOptions{Keyspace: "app"})
	assert.ErrorContains(t, err, "host")

	_, err = clusterConfig(CassandraOptions{Hosts: []string{"h"}})
	assert.ErrorContains(t, err, "keyspace")

	_, err = clusterConfig(CassandraOptions{Hosts: []string{"h"}, Keyspace: "app", Consistency: "sometimes"})
	assert.Error(t, err)
}

func TestCassandraCapabilities(t *testing.T) {
	caps := (&Cassandra{}).Capabilities()
	assert.False(t, caps.Transactions)
	assert.True(t, caps.AtomicBatch)
	assert.False(t, caps.AffectedRows)
	assert.True(t, caps.AllowFiltering)
}

func TestTablesFromSystemSchema(t *testing.T) {
	rows := []Row{
		{"table_name": "events", "column_name": "payload", "kind": "regular", "position": -1, "type": "blob"},
		{"table_name": "events", "column_name": "seq", "kind": "clustering", "position": 0, "type": "timeuuid"},
		{"table_name": "events", "column_name": "day", "kind": "partition_key", "position": 0, "type": "date"},
		{"table_name": "events", "column_name": "bucket", "kind": "partition_key", "position": 1, "type": "int"},
		{"table_name": "accounts", "column_name": "id", "kind": "partition_key", "position": 0, "type": "uuid"},
		{"table_name": "accounts", "column_name": "balance", "kind": "regular", "position": -1, "type": "varint"},
		{"table_name": "accounts", "column_name": "addr", "kind": "regular", "position": -1, "type": "inet"},
	}

	tables, err := tablesFromSystemSchema(rows)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	accounts, events := tables[0], tables[1]
	assert.Equal(t, "accounts", accounts.Name())
	assert.Equal(t, "events", events.Name())

	var names []string
	for _, c := range events.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"day", "bucket", "seq", "payload"}, names)

	var pk []string
	for _, c := range events.PrimaryKey() {
		pk = append(pk, c.Name)
	}
	assert.Equal(t, []string{"day", "bucket", "seq"}, pk)

	seq, ok := events.Column("seq")
	require.True(t, ok)
	assert.Equal(t, schema.TypeTimeUUID, seq.Type)
	assert.False(t, seq.AllowNull)

	balance, ok := accounts.Column("balance")
	require.True(t, ok)
	assert.Equal(t, schema.TypeBigInt, balance.Type)
	assert.Equal(t, "varint", balance.DBType)
	assert.True(t, balance.AllowNull)

	addr, _ := accounts.Column("addr")
	assert.Equal(t, schema.TypeString, addr.Type)
	assert.Equal(t, "inet", addr.DBType)
}

func TestTablesFromSystemSchemaRejectsBadRows(t *testing.T) {
	_, err := tablesFromSystemSchema([]Row{{"column_name": "x"}})
	assert.Error(t, err)
}
