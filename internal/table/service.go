// Package table is the request-facing surface of the adapter. A Service
// resolves table snapshots, compiles filters, emulates paging and drives the
// batch coordinator for record operations.
package table

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/paging"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/session"
	"github.com/roach88/cqlgate/internal/store"
)

// DefaultMaxRecords is the row ceiling applied when Config.MaxRecords is zero.
const DefaultMaxRecords = 1000

// Config configures a Service.
type Config struct {
	Catalog    *schema.Catalog
	Conn       store.Conn
	Marshaller *marshal.Marshaller

	// MaxRecords bounds every read. Requests without a limit, or with a
	// larger one, are truncated to it and told so through Meta.
	MaxRecords int

	// AllowUpsert lets PUT insert records whose identifier matches nothing.
	AllowUpsert bool

	Logger *slog.Logger
}

// Options are the per-request query and batch options.
type Options struct {
	// Fields is a comma-separated field list. Empty selects the identifier
	// fields; "*" selects every field.
	Fields string

	// IDFields overrides the fields returned when Fields is empty.
	IDFields string

	// Order is "field [ASC|DESC], ...".
	Order string

	// Group is a comma-separated list of fields to group by.
	Group string

	Limit         int
	Offset        int
	IncludeCount  bool
	CountOnly     bool
	IncludeSchema bool

	// Continue records per-record failures and carries on.
	Continue bool

	// Rollback undoes prior records when one fails. It wins over Continue.
	Rollback bool

	// RequireMore returns the requested fields of written records rather
	// than their identifiers.
	RequireMore bool

	// Updates is applied to every identifier by UpdateByIDs.
	Updates record.Record

	// Session supplies lookups and the server filters of the caller.
	Session *session.Context
}

// Result is the response of a read or filtered write.
type Result struct {
	Records []record.Record `json:"resource" yaml:"resource"`
	Meta    paging.Meta     `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Service serves table requests. It is safe for concurrent use; each call
// opens its own store session.
type Service struct {
	catalog     *schema.Catalog
	conn        store.Conn
	marshaller  *marshal.Marshaller
	compiler    *filter.Compiler
	maxRecords  int
	allowUpsert bool
	logger      *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("table: catalog is required")
	}
	if cfg.Conn == nil {
		return nil, fmt.Errorf("table: store connection is required")
	}
	if cfg.Marshaller == nil {
		cfg.Marshaller = marshal.New()
	}
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		catalog:     cfg.Catalog,
		conn:        cfg.Conn,
		marshaller:  cfg.Marshaller,
		compiler:    filter.NewCompiler(cfg.Marshaller),
		maxRecords:  cfg.MaxRecords,
		allowUpsert: cfg.AllowUpsert,
		logger:      cfg.Logger,
	}, nil
}

func (s *Service) session() *store.Session {
	return store.NewSession(s.conn, s.logger)
}

// CompileFilter compiles filterText against table the way every request
// does: lookups from sess are replaced, params resolved and the server
// filter of sess for the table conjoined.
func (s *Service) CompileFilter(ctx context.Context, table, filterText string, params map[string]any, sess *session.Context) (*filter.Compiled, error) {
	t, err := s.catalog.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	return s.compile(t, filterText, params, Options{Session: sess})
}

// compile resolves lookups and compiles filterText under the caller's
// server filter for t.
func (s *Service) compile(t *schema.Table, filterText string, params map[string]any, opts Options) (*filter.Compiled, error) {
	auth := opts.Session
	return s.compiler.Compile(
		auth.ReplaceLookups(filterText),
		auth.ResolveParams(params),
		auth.ServerFilter(t.Name()),
		t,
	)
}
