package table

import (
	"context"

	"github.com/roach88/cqlgate/internal/batch"
	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

// UpdateByFilter applies rec to every record matching filterText. Matching
// keys are read first and each record is updated by its primary key, so
// stores that only update by key are served too.
func (s *Service) UpdateByFilter(ctx context.Context, table string, rec record.Record, filterText string, params map[string]any, opts Options) (*Result, error) {
	return s.writeByFilter(ctx, table, batch.Put, rec, filterText, params, opts)
}

// PatchByFilter merges rec into every record matching filterText.
func (s *Service) PatchByFilter(ctx context.Context, table string, rec record.Record, filterText string, params map[string]any, opts Options) (*Result, error) {
	return s.writeByFilter(ctx, table, batch.Patch, rec, filterText, params, opts)
}

// DeleteByFilter deletes every record matching filterText. An empty filter
// is rejected; use Truncate to empty a table.
func (s *Service) DeleteByFilter(ctx context.Context, table, filterText string, params map[string]any, opts Options) (*Result, error) {
	if filterText == "" {
		return nil, dberr.BadRequestf("filter for delete request can not be empty")
	}
	return s.writeByFilter(ctx, table, batch.Delete, nil, filterText, params, opts)
}

// Truncate removes every record of table the caller may see. Under a server
// filter only the matching records are deleted.
func (s *Service) Truncate(ctx context.Context, table string, opts Options) error {
	t, err := s.catalog.Table(ctx, table)
	if err != nil {
		return err
	}

	if opts.Session.ServerFilter(t.Name()) != nil {
		_, err := s.writeByFilter(ctx, table, batch.Delete, nil, "", nil, Options{
			Session:  opts.Session,
			Continue: opts.Continue,
			Rollback: opts.Rollback,
		})
		return err
	}

	_, err = s.session().Exec(ctx, cql.Truncate(t.Name()))
	return err
}

func (s *Service) writeByFilter(ctx context.Context, table string, verb batch.Verb, rec record.Record, filterText string, params map[string]any, opts Options) (*Result, error) {
	if verb != batch.Delete && len(rec) == 0 {
		return nil, dberr.BadRequestf("there are no fields in the record")
	}

	t, err := s.catalog.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	compiled, err := s.compile(t, filterText, params, opts)
	if err != nil {
		return nil, err
	}

	sess := s.session()
	keys, err := s.matchingKeys(ctx, sess, t, compiled)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return &Result{Records: []record.Record{}}, nil
	}

	items := make([]item, len(keys))
	for i, k := range keys {
		items[i] = item{id: map[string]any(k)}
	}
	opts.Updates = rec

	records, err := s.runBatch(ctx, sess, t, verb, items, opts)
	if records == nil {
		return nil, err
	}
	return &Result{Records: records}, err
}

// matchingKeys returns the key records of the rows matching compiled, up to
// the service's MaxRecords.
func (s *Service) matchingKeys(ctx context.Context, sess *store.Session, t *schema.Table, compiled *filter.Compiled) ([]record.Record, error) {
	pk := t.PrimaryKey()
	q, args := cql.Select{
		Table:          t.Name(),
		Columns:        selectExprs(pk),
		Where:          compiled.Text,
		Args:           compiled.Params,
		Limit:          s.maxRecords,
		AllowFiltering: sess.Capabilities().AllowFiltering && !compiled.Empty(),
	}.Build()

	rows, err := sess.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	keys := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		k, err := record.FromRow(s.marshaller, row, pk)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
