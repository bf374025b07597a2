package table

import (
	"context"
	"fmt"

	"github.com/roach88/cqlgate/internal/cql"
	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/filter"
	"github.com/roach88/cqlgate/internal/paging"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/schema"
	"github.com/roach88/cqlgate/internal/store"
)

// RetrieveByFilter returns the records of table matching filterText.
//
// Reads are bounded by the service's MaxRecords. When the bound replaces or
// reduces the requested limit, or IncludeCount is set, the total is counted
// and reported in Meta together with the next offset. CountOnly returns
// just the count. An offset at or past MaxRecords reads nothing and returns
// an empty page with the count.
func (s *Service) RetrieveByFilter(ctx context.Context, table, filterText string, params map[string]any, opts Options) (*Result, error) {
	t, err := s.catalog.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	compiled, err := s.compile(t, filterText, params, opts)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, s.session(), t, compiled, opts)
}

func (s *Service) query(ctx context.Context, sess *store.Session, t *schema.Table, compiled *filter.Compiled, opts Options) (*Result, error) {
	window := paging.NewWindow(opts.Limit, opts.Offset, s.maxRecords)
	allowFiltering := sess.Capabilities().AllowFiltering && !compiled.Empty()

	count := 0
	counted := opts.CountOnly || opts.IncludeCount || window.Imposed
	if counted {
		n, err := s.count(ctx, sess, t, compiled, allowFiltering)
		if err != nil {
			return nil, err
		}
		count = n
	}
	if opts.CountOnly {
		return &Result{Records: []record.Record{}, Meta: paging.Meta{Count: &count}}, nil
	}

	fields, err := selectFields(t, opts)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(t, opts.Order)
	if err != nil {
		return nil, err
	}
	group, err := parseGroup(t, opts.Group)
	if err != nil {
		return nil, err
	}

	if window.Exhausted {
		res := &Result{Records: []record.Record{}, Meta: paging.NewMeta(count, window, opts.IncludeCount)}
		if opts.IncludeSchema {
			res.Meta.Schema = t.Describe()
		}
		return res, nil
	}

	// The window guarantees a LIMIT whenever a ceiling is set; Rewrite folds
	// the offset into it.
	q, args := cql.Select{
		Table:          t.Name(),
		Columns:        selectExprs(fields),
		Where:          compiled.Text,
		Args:           compiled.Params,
		GroupBy:        group,
		OrderBy:        order,
		Limit:          window.Limit,
		Offset:         window.Offset,
		AllowFiltering: allowFiltering,
	}.Build()
	q, _ = paging.Rewrite(q, window.Limit, window.Offset)

	rows, err := sess.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	rows = paging.Slice(rows, window.Offset, window.Limit)

	records := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := record.FromRow(s.marshaller, row, fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	res := &Result{Records: records}
	if counted {
		res.Meta = paging.NewMeta(count, window, opts.IncludeCount)
	}
	if opts.IncludeSchema {
		res.Meta.Schema = t.Describe()
	}
	return res, nil
}

func (s *Service) count(ctx context.Context, sess *store.Session, t *schema.Table, compiled *filter.Compiled, allowFiltering bool) (int, error) {
	q, args := cql.Count{
		Table:          t.Name(),
		Where:          compiled.Text,
		Args:           compiled.Params,
		AllowFiltering: allowFiltering,
	}.Build()
	rows, err := sess.Query(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, v := range rows[0] {
		return countValue(v)
	}
	return 0, nil
}

func countValue(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case nil:
		return 0, nil
	}
	return 0, dberr.New(dberr.CodeStore, fmt.Sprintf("unexpected count value %T", v))
}
