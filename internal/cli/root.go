// Package cli implements the cqlgate command line: filter compilation,
// filtered reads, record batches and schema inspection against a configured
// store.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigPath is an optional YAML configuration file.
	ConfigPath string

	// SchemaDir overrides schema.dir from the configuration.
	SchemaDir string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cqlgate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cqlgate",
		Short: "cqlgate - SQL-flavored access to wide-column tables",
		Long: `cqlgate exposes Cassandra-style tables through filter strings, paged
reads and record batches. Tables are described in CUE or introspected
from the cluster; SQLite serves as an embedded backend.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema", "", "directory of CUE table definitions")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
