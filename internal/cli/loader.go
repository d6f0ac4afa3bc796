package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/engine"
	"github.com/roach88/shapeql/internal/graphql"
	"github.com/roach88/shapeql/internal/loader"
	"github.com/roach88/shapeql/internal/shape"
	"github.com/roach88/shapeql/internal/store"
)

// Command error codes (E3xx). Shape loading keeps E0xx/E1xx and query
// compilation E2xx.
const (
	ErrCodeReadFailed   = "E301" // query, variables or scenario unreadable
	ErrCodeInvalidQuery = "E302" // GraphQL syntax or validation error
	ErrCodeSchema       = "E303" // SDL failed to load
	ErrCodeStore        = "E304" // compilation database error
	ErrCodeDrift        = "E305" // replay found drift or failures
	ErrCodeScenario     = "E306" // scenario failed
)

// Inputs are the loaded schema and shapes.
type Inputs struct {
	Engine    *engine.Engine
	Registry  *shape.Registry
	FileCount int
}

// LoadInputs loads the configured schema and shapes and builds an engine.
// st may be nil. Shape errors are collected; the returned slice holds every
// load error and the engine is nil when it is non-empty.
func LoadInputs(opts *RootOptions, st *store.Store) (*Inputs, []error) {
	cfg := opts.Config
	if err := cfg.RequireInputs(); err != nil {
		return nil, []error{&LoadError{Code: loader.ErrCodeNotFound, Message: err.Error()}}
	}

	schema, err := graphql.LoadSchemaFiles(cfg.Schema...)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeSchema, Message: err.Error()}}
	}

	loaded, errs := loader.Load(cfg.Shapes, loader.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, errs
	}
	opts.Logger.Debug(fmt.Sprintf("loaded %d shape(s) from %d file(s)", loaded.Registry.Len(), loaded.FileCount))

	engOpts := []engine.Option{
		engine.WithLogger(opts.Logger),
		engine.WithCompilerOptions(cfg.Compiler.Options()...),
	}
	if st != nil {
		engOpts = append(engOpts, engine.WithStore(st))
	}
	eng, err := engine.New(schema, loaded.Registry, engOpts...)
	if err != nil {
		return nil, []error{&LoadError{Code: loader.ErrCodeGeneric, Message: err.Error()}}
	}
	return &Inputs{Engine: eng, Registry: loaded.Registry, FileCount: loaded.FileCount}, nil
}

// LoadError is the loader's error type; setup failures of the CLI use it
// with their own codes.
type LoadError = loader.LoadError

// errorCode extracts the code and message of a load or compile error.
func errorCode(err error) (string, string) {
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var ce *compileerr.Error
	if errors.As(err, &ce) {
		return ce.Code, err.Error()
	}
	return loader.ErrCodeGeneric, err.Error()
}

// outputCommandError outputs a single setup error.
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputLoadErrors outputs every schema or shape error.
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.json() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := errorCode(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.respond(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}, true); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Loading failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			if loadErr.Pos.IsValid() {
				fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
					loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", loadErr.Code, loadErr.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", loader.ErrCodeGeneric, err.Error())
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
}
