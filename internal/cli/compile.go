package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/engine"
	"github.com/roach88/shapeql/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	VarsFile  string   // JSON object of operation variables
	Operation string   // operation name in a multi-operation document
	Subjects  []string // construct mode subjects
}

// CompileOutput is the JSON payload of a successful compile.
type CompileOutput struct {
	Operation string          `json:"operation,omitempty"`
	Queries   []engine.Result `json:"queries"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a GraphQL operation to SPARQL",
		Long: `Compile every @sparql root field of a GraphQL operation to a SPARQL query.

The query is read from the given file, or from stdin when the file is "-".
With --construct the fields compile to CONSTRUCT queries for the given
subject IRIs. With --db every compilation is recorded for replay.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	addInputFlags(cmd.Flags())
	cmd.Flags().String("db", "", "record compilations in this SQLite database")
	cmd.Flags().StringVar(&opts.VarsFile, "vars", "", "JSON file with operation variables")
	cmd.Flags().StringVar(&opts.Operation, "op", "", "operation name")
	cmd.Flags().StringSliceVar(&opts.Subjects, "construct", nil, "compile CONSTRUCT queries for these subject IRIs")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, queryFile string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(cmd, opts.RootOptions)

	query, err := readQuery(queryFile, cmd.InOrStdin())
	if err != nil {
		return outputCommandError(formatter, ErrCodeReadFailed, err.Error())
	}
	vars, err := readVariables(opts.VarsFile)
	if err != nil {
		return outputCommandError(formatter, ErrCodeReadFailed, err.Error())
	}

	var st *store.Store
	if db := opts.Config.DB; db != "" {
		st, err = store.Open(db)
		if err != nil {
			return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("opening database: %v", err))
		}
		defer st.Close()
		formatter.VerboseLog("Recording compilations in %s", db)
	}

	inputs, loadErrs := LoadInputs(opts.RootOptions, st)
	if len(loadErrs) > 0 {
		return outputLoadErrors(formatter, loadErrs)
	}

	results, err := inputs.Engine.Compile(ctx, engine.Input{
		Query:         query,
		OperationName: opts.Operation,
		Variables:     vars,
		Subjects:      opts.Subjects,
	})
	if err != nil {
		code, message := compileerr.Code(err), err.Error()
		if code == "" {
			code = ErrCodeInvalidQuery
		}
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitFailure, "compilation failed", err)
	}

	if formatter.json() {
		return formatter.Success(CompileOutput{Operation: opts.Operation, Queries: results})
	}
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(formatter.Writer)
			}
			fmt.Fprintf(formatter.Writer, "# %s\n", r.Field)
		}
		fmt.Fprint(formatter.Writer, r.Query)
		if r.ID != "" {
			formatter.VerboseLog("Recorded %s (seq %d)", r.ID, r.Seq)
		}
	}
	return nil
}

func readQuery(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading query: %w", err)
	}
	return string(data), nil
}

func readVariables(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading variables: %w", err)
	}
	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parsing variables %s: %w", path, err)
	}
	return vars, nil
}
