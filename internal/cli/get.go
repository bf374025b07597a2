package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/cqlgate/internal/table"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Params      []string
	SessionPath string

	Fields        string
	Order         string
	Group         string
	Limit         int
	Offset        int
	IncludeCount  bool
	CountOnly     bool
	IncludeSchema bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <table> [filter]",
		Short: "Read records matching a filter",
		Long: `Read the records of a table matching an optional filter string.

Reads are bounded by query.max_records. When the bound truncates the
result the total count and the next offset are reported in meta.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filterText := ""
			if len(args) == 2 {
				filterText = args[1]
			}
			return runGet(opts, args[0], filterText, cmd)
		},
	}

	addParamFlags(cmd, &opts.Params, &opts.SessionPath)
	cmd.Flags().StringVar(&opts.Fields, "fields", "", `comma-separated fields; "*" for all`)
	cmd.Flags().StringVar(&opts.Order, "order", "", "order, e.g. \"name DESC\"")
	cmd.Flags().StringVar(&opts.Group, "group", "", "comma-separated group fields")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to return")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&opts.IncludeCount, "include-count", false, "report the total count")
	cmd.Flags().BoolVar(&opts.CountOnly, "count-only", false, "return only the count")
	cmd.Flags().BoolVar(&opts.IncludeSchema, "include-schema", false, "describe the table in meta")

	return cmd
}

func runGet(opts *GetOptions, tableName, filterText string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	params, sess, err := requestContext(opts.Params, opts.SessionPath)
	if err != nil {
		return e.formatter.Fail("invalid request", err)
	}

	res, err := e.service.RetrieveByFilter(ctx, tableName, filterText, params, table.Options{
		Fields:        opts.Fields,
		Order:         opts.Order,
		Group:         opts.Group,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
		IncludeCount:  opts.IncludeCount,
		CountOnly:     opts.CountOnly,
		IncludeSchema: opts.IncludeSchema,
		Session:       sess,
	})
	if err != nil {
		return e.formatter.Fail("retrieve failed", err)
	}
	e.formatter.VerboseLog("Retrieved %d record(s) from %s", len(res.Records), tableName)
	return e.formatter.Success(res)
}
