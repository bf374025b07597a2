package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/schema"
)

// CassandraOptions configures a Cassandra connection.
type CassandraOptions struct {
	// Hosts are the contact points.
	Hosts []string

	// Port is the native protocol port (default 9042).
	Port int

	// Keyspace is the keyspace every statement runs in.
	Keyspace string

	// Username and Password enable password authentication when Username
	// is set.
	Username string
	Password string

	// Consistency is a gocql consistency name such as "QUORUM".
	Consistency string

	// Timeout bounds each round trip.
	Timeout time.Duration
}

// Cassandra is a Conn backed by a gocql session.
type Cassandra struct {
	session  *gocql.Session
	keyspace string
}

var _ Conn = (*Cassandra)(nil)

// OpenCassandra connects to the cluster described by opts.
func OpenCassandra(opts CassandraOptions) (*Cassandra, error) {
	cluster, err := clusterConfig(opts)
	if err != nil {
		return nil, err
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeStore, "connect to cassandra")
	}
	return &Cassandra{session: session, keyspace: opts.Keyspace}, nil
}

func clusterConfig(opts CassandraOptions) (*gocql.ClusterConfig, error) {
	if len(opts.Hosts) == 0 {
		return nil, fmt.Errorf("cassandra: at least one host is required")
	}
	if opts.Keyspace == "" {
		return nil, fmt.Errorf("cassandra: keyspace is required")
	}

	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = opts.Keyspace
	if opts.Port > 0 {
		cluster.Port = opts.Port
	}
	if opts.Timeout > 0 {
		cluster.Timeout = opts.Timeout
		cluster.ConnectTimeout = opts.Timeout
	}
	if opts.Consistency != "" {
		c, err := gocql.ParseConsistencyWrapper(opts.Consistency)
		if err != nil {
			return nil, fmt.Errorf("cassandra: %w", err)
		}
		cluster.Consistency = c
	}
	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		}
	}
	return cluster, nil
}

// Close implements Conn.
func (c *Cassandra) Close() error {
	c.session.Close()
	return nil
}

// Capabilities implements Conn.
func (c *Cassandra) Capabilities() Capabilities {
	return Capabilities{
		AtomicBatch:    true,
		AllowFiltering: true,
		MultiKeyIn:     true,
	}
}

// Query implements Conn.
func (c *Cassandra) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	iter := c.session.Query(query, args...).WithContext(ctx).Iter()
	maps, err := iter.SliceMap()
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeStore, "query")
	}

	rows := make([]Row, len(maps))
	for i, m := range maps {
		rows[i] = Row(m)
	}
	return rows, nil
}

// Exec implements Conn. Cassandra does not report affected rows; the result
// is always -1.
func (c *Cassandra) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if err := c.session.Query(query, args...).WithContext(ctx).Exec(); err != nil {
		return 0, dberr.Wrap(err, dberr.CodeStore, "exec")
	}
	return -1, nil
}

// Begin implements Conn.
func (c *Cassandra) Begin(context.Context) (Tx, error) {
	return nil, ErrNoTransactions
}

// Batch runs stmts as one logged batch.
func (c *Cassandra) Batch(ctx context.Context, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	b := c.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, st := range stmts {
		b.Query(st.Query, st.Args...)
	}
	if err := c.session.ExecuteBatch(b); err != nil {
		return dberr.Wrap(err, dberr.CodeStore, "batch")
	}
	return nil
}

// LoadTables introspects system_schema for the connection's keyspace.
// It makes *Cassandra a schema.Loader.
func (c *Cassandra) LoadTables(ctx context.Context) ([]*schema.Table, error) {
	rows, err := c.Query(ctx,
		"SELECT table_name, column_name, kind, position, type FROM system_schema.columns WHERE keyspace_name = ?",
		c.keyspace)
	if err != nil {
		return nil, err
	}
	return tablesFromSystemSchema(rows)
}

type systemColumn struct {
	table    string
	name     string
	kind     string
	position int
	cqlType  string
}

// kindOrder sorts partition keys before clustering keys before regular
// columns.
var kindOrder = map[string]int{
	"partition_key": 0,
	"clustering":    1,
	"static":        2,
	"regular":       3,
}

// tablesFromSystemSchema builds table snapshots from system_schema.columns
// rows. Tables come back sorted by name.
func tablesFromSystemSchema(rows []Row) ([]*schema.Table, error) {
	byTable := make(map[string][]systemColumn)
	for _, r := range rows {
		sc := systemColumn{
			table:    asString(r["table_name"]),
			name:     asString(r["column_name"]),
			kind:     asString(r["kind"]),
			position: asInt(r["position"]),
			cqlType:  asString(r["type"]),
		}
		if sc.table == "" || sc.name == "" {
			return nil, fmt.Errorf("system_schema row without table or column name")
		}
		byTable[sc.table] = append(byTable[sc.table], sc)
	}

	names := make([]string, 0, len(byTable))
	for name := range byTable {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		cols := byTable[name]
		sort.SliceStable(cols, func(i, j int) bool {
			ki, kj := kindOrder[cols[i].kind], kindOrder[cols[j].kind]
			if ki != kj {
				return ki < kj
			}
			if cols[i].position != cols[j].position {
				return cols[i].position < cols[j].position
			}
			return cols[i].name < cols[j].name
		})

		var columns []schema.Column
		var pk []string
		for _, sc := range cols {
			typ, dbType := schema.FromCQLType(sc.cqlType)
			key := sc.kind == "partition_key" || sc.kind == "clustering"
			columns = append(columns, schema.Column{
				Name:       sc.name,
				Type:       typ,
				DBType:     dbType,
				AllowNull:  !key,
				PrimaryKey: key,
			})
			if key {
				pk = append(pk, sc.name)
			}
		}

		t, err := schema.NewTable(name, columns, pk)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
