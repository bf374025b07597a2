package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cqlgate/internal/config"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/logging"
	"github.com/roach88/cqlgate/internal/marshal"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
	"github.com/roach88/cqlgate/internal/table"
)

// env is everything a command needs to serve one invocation.
type env struct {
	cfg        *config.Config
	logger     *slog.Logger
	conn       store.Conn
	sqlite     *store.SQLite // set for the sqlite driver
	catalog    *schema.Catalog
	marshaller *marshal.Marshaller
	service    *table.Service
	formatter  *OutputFormatter
}

// openEnv loads configuration and connects to the store. Failures are
// reported through the formatter and returned as command errors.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*env, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	e := &env{formatter: formatter}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, e.configError(err)
	}
	if opts.SchemaDir != "" {
		cfg.Schema.Dir = opts.SchemaDir
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	e.cfg = cfg

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, e.configError(err)
	}
	e.logger = logger

	if err := e.connect(); err != nil {
		return nil, formatter.Fail("failed to open store", err)
	}
	formatter.VerboseLog("Connected to %s store", cfg.Store.Driver)

	loader, err := e.schemaLoader()
	if err != nil {
		e.Close()
		return nil, e.configError(err)
	}
	e.catalog = schema.NewCatalog(loader, logger)
	if err := e.catalog.Refresh(ctx); err != nil {
		e.Close()
		return nil, formatter.Fail("failed to load schema", err)
	}

	e.marshaller = marshal.New()
	e.service, err = table.New(table.Config{
		Catalog:     e.catalog,
		Conn:        e.conn,
		Marshaller:  e.marshaller,
		MaxRecords:  cfg.Query.MaxRecords,
		AllowUpsert: cfg.Query.AllowUpsert,
		Logger:      logger,
	})
	if err != nil {
		e.Close()
		return nil, e.configError(err)
	}
	return e, nil
}

func (e *env) connect() error {
	sc := e.cfg.Store
	switch strings.ToLower(sc.Driver) {
	case config.DriverSQLite:
		db, err := store.OpenSQLite(sc.Path)
		if err != nil {
			return err
		}
		e.sqlite = db
		e.conn = db
	case config.DriverCassandra:
		c, err := store.OpenCassandra(store.CassandraOptions{
			Hosts:       sc.Hosts,
			Port:        sc.Port,
			Keyspace:    sc.Keyspace,
			Username:    sc.Username,
			Password:    sc.Password,
			Consistency: sc.Consistency,
			Timeout:     sc.Timeout,
		})
		if err != nil {
			return err
		}
		e.conn = c
	default:
		return fmt.Errorf("unsupported store driver %q", sc.Driver)
	}
	return nil
}

// schemaLoader prefers CUE definitions. Without a schema directory the
// Cassandra driver introspects the keyspace.
func (e *env) schemaLoader() (schema.Loader, error) {
	if dir := e.cfg.Schema.Dir; dir != "" {
		return schema.CUEDir(dir), nil
	}
	if loader, ok := e.conn.(schema.Loader); ok {
		return loader, nil
	}
	return nil, fmt.Errorf("schema.dir is required for the %s driver", e.cfg.Store.Driver)
}

func (e *env) configError(err error) error {
	if outErr := e.formatter.Error(string(dberr.CodeInternal), err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "invalid configuration", err)
}

// Close releases the store connection.
func (e *env) Close() {
	if e.conn == nil {
		return
	}
	if err := e.conn.Close(); err != nil && e.logger != nil {
		e.logger.Warn("closing store", "error", err)
	}
}
