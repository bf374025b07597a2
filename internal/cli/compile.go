package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cqlgate/internal/dberr"
	"github.com/roach88/cqlgate/internal/session"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Params      []string // name=value pairs
	SessionPath string
}

// CompilationResult is the native fragment produced for a filter.
type CompilationResult struct {
	Table  string   `json:"table" yaml:"table"`
	Where  string   `json:"where" yaml:"where"`
	Params []string `json:"params" yaml:"params"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <table> <filter>",
		Short: "Compile a filter to a native WHERE fragment",
		Long: `Compile a filter string against a table and print the parameterized
WHERE fragment the store would receive, including any server filter
from the session file.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1], cmd)
		},
	}

	addParamFlags(cmd, &opts.Params, &opts.SessionPath)
	return cmd
}

func runCompile(opts *CompileOptions, tableName, filterText string, cmd *cobra.Command) error {
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

	compiled, err := e.service.CompileFilter(ctx, tableName, filterText, params, sess)
	if err != nil {
		return e.formatter.Fail("compilation failed", err)
	}

	result := CompilationResult{Table: tableName, Where: compiled.Text, Params: make([]string, len(compiled.Params))}
	for i, p := range compiled.Params {
		result.Params[i] = fmt.Sprint(p)
	}
	e.formatter.VerboseLog("Compiled %d parameter(s)", len(result.Params))
	return e.formatter.Success(result)
}

// addParamFlags registers --param and --session.
func addParamFlags(cmd *cobra.Command, params *[]string, sessionPath *string) {
	cmd.Flags().StringArrayVarP(params, "param", "p", nil, "filter parameter as name=value (repeatable)")
	cmd.Flags().StringVar(sessionPath, "session", "", "session file with lookups and server filters")
}

// requestContext parses name=value pairs and loads the session file, if any.
func requestContext(pairs []string, sessionPath string) (map[string]any, *session.Context, error) {
	params, err := parseParams(pairs)
	if err != nil {
		return nil, nil, err
	}
	if sessionPath == "" {
		return params, nil, nil
	}
	sess, err := session.Load(sessionPath)
	if err != nil {
		return nil, nil, err
	}
	return params, sess, nil
}

func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, dberr.BadRequestf("invalid parameter %q: expected name=value", pair)
		}
		params[name] = value
	}
	return params, nil
}
