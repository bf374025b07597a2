package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/record"
	"github.com/roach88/cqlgate/internal/session"
	"github.com/roach88/cqlgate/internal/table"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	SessionPath string
}

// BatchRequest is the YAML document the batch command executes.
//
//	table: things
//	verb: PATCH
//	records:
//	  - {id: "...", qty: 3}
//	options: {continue: true}
//
// Exactly one of ids, records, filter or truncate selects the targets.
type BatchRequest struct {
	Table    string          `yaml:"table"`
	Verb     string          `yaml:"verb"`
	IDs      []any           `yaml:"ids"`
	Records  []record.Record `yaml:"records"`
	Updates  record.Record   `yaml:"updates"`
	Filter   string          `yaml:"filter"`
	Params   map[string]any  `yaml:"params"`
	Truncate bool            `yaml:"truncate"`
	Options  BatchFlags      `yaml:"options"`
}

// BatchFlags are the per-request options of a BatchRequest.
type BatchFlags struct {
	Fields      string `yaml:"fields"`
	IDFields    string `yaml:"id_fields"`
	Continue    bool   `yaml:"continue"`
	Rollback    bool   `yaml:"rollback"`
	RequireMore bool   `yaml:"require_more"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <request.yaml>",
		Short: "Execute a record batch from a YAML request",
		Long: `Execute a batch of record operations (POST, GET, PUT, PATCH, DELETE)
described by a YAML request file. Per-record failures are reported by
index; with rollback set, one failure undoes the whole batch.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionPath, "session", "", "session file with lookups and server filters")
	return cmd
}

func runBatch(opts *BatchOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	req, err := LoadBatchRequest(path)
	if err != nil {
		return e.formatter.Fail("invalid batch request", err)
	}
	_, sess, err := requestContext(nil, opts.SessionPath)
	if err != nil {
		return e.formatter.Fail("invalid batch request", err)
	}

	e.formatter.VerboseLog("Executing %s on %s", req.Verb, req.Table)
	res, err := executeBatch(ctx, e.service, req, sess)
	if err != nil {
		if res != nil && e.formatter.Format == "text" {
			// Partial results precede the error in text mode.
			if outErr := e.formatter.Success(res); outErr != nil {
				return outErr
			}
		}
		return e.formatter.Fail("batch failed", err)
	}
	return e.formatter.Success(res)
}

// LoadBatchRequest reads and validates a batch request file.
func LoadBatchRequest(path string) (*BatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch request: %w", err)
	}
	var req BatchRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, dberr.BadRequestf("parse batch request %s: %v", path, err)
	}
	req.Verb = strings.ToUpper(strings.TrimSpace(req.Verb))
	if req.Table == "" {
		return nil, dberr.BadRequestf("batch request has no table")
	}
	return &req, nil
}

// executeBatch dispatches req to the matching service operation.
func executeBatch(ctx context.Context, svc *table.Service, req *BatchRequest, sess *session.Context) (*table.Result, error) {
	opts := table.Options{
		Fields:      req.Options.Fields,
		IDFields:    req.Options.IDFields,
		Continue:    req.Options.Continue,
		Rollback:    req.Options.Rollback,
		RequireMore: req.Options.RequireMore,
		Updates:     req.Updates,
		Session:     sess,
	}

	var recs []record.Record
	var err error
	switch {
	case req.Truncate:
		if req.Verb != "DELETE" {
			return nil, dberr.BadRequestf("truncate requires verb DELETE, got %q", req.Verb)
		}
		if err := svc.Truncate(ctx, req.Table, opts); err != nil {
			return nil, err
		}
		return &table.Result{Records: []record.Record{}}, nil

	case req.Filter != "":
		switch req.Verb {
		case "PUT":
			return svc.UpdateByFilter(ctx, req.Table, req.Updates, req.Filter, req.Params, opts)
		case "PATCH":
			return svc.PatchByFilter(ctx, req.Table, req.Updates, req.Filter, req.Params, opts)
		case "DELETE":
			return svc.DeleteByFilter(ctx, req.Table, req.Filter, req.Params, opts)
		case "GET":
			return svc.RetrieveByFilter(ctx, req.Table, req.Filter, req.Params, opts)
		}
		return nil, dberr.BadRequestf("unsupported verb %q for a filtered request", req.Verb)

	case len(req.IDs) > 0:
		switch req.Verb {
		case "GET":
			recs, err = svc.RetrieveByIDs(ctx, req.Table, req.IDs, opts)
		case "PUT", "PATCH":
			recs, err = svc.UpdateByIDs(ctx, req.Table, req.IDs, opts)
		case "DELETE":
			recs, err = svc.DeleteByIDs(ctx, req.Table, req.IDs, opts)
		default:
			return nil, dberr.BadRequestf("unsupported verb %q for identifiers", req.Verb)
		}

	case len(req.Records) > 0:
		switch req.Verb {
		case "POST":
			recs, err = svc.CreateRecords(ctx, req.Table, req.Records, opts)
		case "PUT":
			recs, err = svc.UpdateRecords(ctx, req.Table, req.Records, opts)
		case "PATCH":
			recs, err = svc.PatchRecords(ctx, req.Table, req.Records, opts)
		case "DELETE":
			recs, err = svc.DeleteRecords(ctx, req.Table, req.Records, opts)
		default:
			return nil, dberr.BadRequestf("unsupported verb %q for records", req.Verb)
		}

	default:
		return nil, dberr.BadRequestf("batch request needs ids, records, filter or truncate")
	}

	if recs == nil {
		return nil, err
	}
	return &table.Result{Records: recs}, err
}
