package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/cqlgate/internal/dberr"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Create bool
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema [table]",
		Short: "List tables or describe one",
		Long: `Without arguments, list the tables of the loaded schema. With a table
name, describe its fields. --create creates the storage tables in an
SQLite database.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runSchema(opts, name, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Create, "create", false, "create storage tables (sqlite only)")
	return cmd
}

func runSchema(opts *SchemaOptions, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	names := []string{name}
	if name == "" {
		names, err = e.catalog.TableNames(ctx)
		if err != nil {
			return e.formatter.Fail("failed to list tables", err)
		}
	}

	if opts.Create {
		if e.sqlite == nil {
			return e.formatter.Fail("schema create failed",
				dberr.BadRequestf("--create is only supported by the sqlite driver"))
		}
		for _, n := range names {
			t, err := e.catalog.Table(ctx, n)
			if err != nil {
				return e.formatter.Fail("schema create failed", err)
			}
			if err := e.sqlite.CreateTable(ctx, t); err != nil {
				return e.formatter.Fail("schema create failed", err)
			}
			e.formatter.VerboseLog("Created table %s", t.Name())
		}
	}

	if name == "" {
		return e.formatter.Success(map[string]any{"tables": names})
	}
	t, err := e.catalog.Table(ctx, name)
	if err != nil {
		return e.formatter.Fail("describe failed", err)
	}
	return e.formatter.Success(t.Describe())
}
