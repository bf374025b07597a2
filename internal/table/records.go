package table

import (
	"context"

	"github.com/roach88/cqlgate/internal/batch"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

// item is one unit of a record request: an identifier, a record, or both.
type item struct {
	id  any
	rec record.Record
}

// CreateRecords inserts recs and returns their identifiers (or the
// requested fields) in submission order. Missing uuid, timeuuid and
// timestamp keys are generated.
func (s *Service) CreateRecords(ctx context.Context, table string, recs []record.Record, opts Options) ([]record.Record, error) {
	return s.records(ctx, table, batch.Post, recordItems(recs), opts)
}

// RetrieveByIDs returns the records identified by ids in submission order.
// Composite keys are identified by records holding every key field.
func (s *Service) RetrieveByIDs(ctx context.Context, table string, ids []any, opts Options) ([]record.Record, error) {
	return s.records(ctx, table, batch.Get, idItems(ids), opts)
}

// UpdateByIDs applies opts.Updates to every record identified by ids.
func (s *Service) UpdateByIDs(ctx context.Context, table string, ids []any, opts Options) ([]record.Record, error) {
	if len(opts.Updates) == 0 {
		return nil, dberr.BadRequestf("no record fields given to update")
	}
	return s.records(ctx, table, batch.Put, idItems(ids), opts)
}

// UpdateRecords replaces the given fields of each record, identified by the
// key fields it carries. When the service allows upserts, records matching
// nothing are inserted.
func (s *Service) UpdateRecords(ctx context.Context, table string, recs []record.Record, opts Options) ([]record.Record, error) {
	return s.records(ctx, table, batch.Put, recordItems(recs), opts)
}

// PatchRecords merges the given fields into each existing record.
func (s *Service) PatchRecords(ctx context.Context, table string, recs []record.Record, opts Options) ([]record.Record, error) {
	return s.records(ctx, table, batch.Patch, recordItems(recs), opts)
}

// DeleteByIDs deletes the records identified by ids.
func (s *Service) DeleteByIDs(ctx context.Context, table string, ids []any, opts Options) ([]record.Record, error) {
	return s.records(ctx, table, batch.Delete, idItems(ids), opts)
}

// DeleteRecords deletes the records identified by the key fields of recs.
func (s *Service) DeleteRecords(ctx context.Context, table string, recs []record.Record, opts Options) ([]record.Record, error) {
	return s.records(ctx, table, batch.Delete, recordItems(recs), opts)
}

func idItems(ids []any) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{id: id}
	}
	return out
}

func recordItems(recs []record.Record) []item {
	out := make([]item, len(recs))
	for i, rec := range recs {
		out[i] = item{rec: rec}
	}
	return out
}

func (s *Service) records(ctx context.Context, table string, verb batch.Verb, items []item, opts Options) ([]record.Record, error) {
	if len(items) == 0 {
		return nil, dberr.BadRequestf("no records in request")
	}
	t, err := s.catalog.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	return s.runBatch(ctx, s.session(), t, verb, items, opts)
}

// runBatch drives one coordinator over items. On partial failure the
// returned slice holds nil for failed units and the error is a
// *dberr.BatchError.
func (s *Service) runBatch(ctx context.Context, sess *store.Session, t *schema.Table, verb batch.Verb, items []item, opts Options) ([]record.Record, error) {
	fields, err := selectFields(t, opts)
	if err != nil {
		return nil, err
	}

	auth := opts.Session
	coord, err := batch.New(batch.Config{
		Table:       t,
		Session:     sess,
		Marshaller:  s.marshaller,
		Compiler:    s.compiler,
		Server:      auth.ServerFilter(t.Name()),
		Fields:      fields,
		Single:      len(items) == 1,
		Continue:    opts.Continue,
		Rollback:    opts.Rollback,
		RequireMore: opts.RequireMore || beyondKey(t, fields),
		Updates:     auth.ResolveRecord(opts.Updates),
		AllowUpsert: s.allowUpsert,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := coord.AddUnit(ctx, verb, auth.ResolveValue(it.id), auth.ResolveRecord(it.rec)); err != nil {
			if rerr := coord.Rollback(ctx); rerr != nil {
				s.logger.Error("batch rollback failed", "table", t.Name(), "error", rerr)
			}
			return nil, err
		}
	}

	outcomes, err := coord.Commit(ctx)
	if outcomes == nil {
		return nil, err
	}
	out := make([]record.Record, len(outcomes))
	for i, o := range outcomes {
		if rec, ok := o.Value.(record.Record); ok {
			out[i] = rec
		}
	}
	return out, err
}

// beyondKey reports whether fields ask for more than the primary key.
func beyondKey(t *schema.Table, fields []*schema.Column) bool {
	for _, col := range fields {
		if !col.PrimaryKey {
			return true
		}
	}
	return false
}
