package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/loader"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Shapes int               `json:"shapes"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one schema or shape problem.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a schema against its shapes",
		Long: `Load the GraphQL schema and the CUE shapes and check that they agree.

Every @sparql root field must return a shaped type, every field of a shaped
type needs a property shape, and every @filter path must resolve. All
problems are reported, not just the first.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	addInputFlags(cmd.Flags())

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	if err := opts.Config.RequireInputs(); err != nil {
		return outputCommandError(formatter, loader.ErrCodeNotFound, err.Error())
	}

	inputs, loadErrs := LoadInputs(opts, nil)
	if len(loadErrs) > 0 {
		return outputValidationErrors(formatter, toValidationErrors(loadErrs))
	}
	formatter.VerboseLog("Loaded %d shape(s) from %d file(s)", inputs.Registry.Len(), inputs.FileCount)

	if errs := inputs.Engine.Validate(); len(errs) > 0 {
		return outputValidationErrors(formatter, toValidationErrors(errs))
	}
	return outputValidateSuccess(formatter, inputs.Registry.Len())
}

func toValidationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		var loadErr *LoadError
		var ce *compileerr.Error
		switch {
		case errors.As(err, &loadErr):
			ve := ValidationError{Code: loadErr.Code, Message: loadErr.Message}
			if loadErr.Pos.IsValid() {
				ve.File = loadErr.Pos.Filename()
				ve.Line = loadErr.Pos.Line()
				ve.Column = loadErr.Pos.Column()
			}
			out = append(out, ve)
		case errors.As(err, &ce):
			out = append(out, ValidationError{Code: ce.Code, Field: ce.Field, Message: err.Error()})
		default:
			out = append(out, ValidationError{Code: loader.ErrCodeGeneric, Message: err.Error()})
		}
	}
	return out
}

func outputValidateSuccess(formatter *OutputFormatter, shapes int) error {
	if formatter.json() {
		return formatter.Success(ValidationResult{Valid: true, Shapes: shapes})
	}
	fmt.Fprintf(formatter.Writer, "✓ Schema and %d shape(s) valid\n", shapes)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.json() {
		response := CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
			Data: ValidationResult{Valid: false, Errors: errs},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.File != "" {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", err.File, err.Line, err.Column)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
