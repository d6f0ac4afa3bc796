package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/engine"
	"github.com/roach88/shapeql/internal/graphql"
	"github.com/roach88/shapeql/internal/loader"
	"github.com/roach88/shapeql/internal/store"
)

// DefaultParallelism bounds concurrently running scenarios in RunAll.
const DefaultParallelism = 4

// Harness runs scenarios.
type Harness struct {
	logger      *zap.Logger
	parallelism int
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to each scenario's engine.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithParallelism sets how many scenarios RunAll runs at once. Values below
// one run scenarios sequentially.
func WithParallelism(n int) Option {
	return func(h *Harness) {
		h.parallelism = n
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:      zap.NewNop(),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.parallelism < 1 {
		h.parallelism = 1
	}
	return h
}

// Run executes a scenario and returns the result.
//
// A compile failure is part of the result, not an error: it is checked
// against expect_error and error_code assertions. The returned error is
// reserved for scenarios whose schema or shapes cannot be loaded.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes a scenario with the harness settings.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	eng, err := h.engine(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	in := engine.Input{
		Query:         scenario.Query,
		OperationName: scenario.Operation,
		Variables:     scenario.Variables,
	}
	if scenario.Mode == store.ModeConstruct {
		in.Subjects = scenario.Subjects
	}

	result := NewResult(scenario.Name)
	queries, err := eng.Compile(ctx, in)
	if err != nil {
		result.CompileError = err.Error()
		result.ErrorCode = compileerr.Code(err)
	} else {
		result.Queries = queries
	}

	switch {
	case scenario.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("expected error %s, compilation succeeded", scenario.ExpectError))
	case scenario.ExpectError != "" && result.ErrorCode != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected error %s, got %q: %s",
			scenario.ExpectError, result.ErrorCode, result.CompileError))
	case scenario.ExpectError == "" && err != nil && !expectsFailure(scenario):
		result.AddError(fmt.Sprintf("compilation failed: %s", result.CompileError))
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		zap.String("scenario", scenario.Name),
		zap.Bool("pass", result.Pass),
		zap.Int("queries", len(result.Queries)))
	return result, nil
}

// RunAll runs scenarios concurrently and returns their results in input
// order. It stops at the first scenario that cannot be set up.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			r, err := h.Run(ctx, sc)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunDir loads every scenario file in dir and runs them with RunAll.
func (h *Harness) RunDir(ctx context.Context, dir string) ([]*Result, error) {
	files, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	scenarios := make([]*Scenario, len(files))
	for i, f := range files {
		sc, err := LoadScenario(f)
		if err != nil {
			return nil, err
		}
		scenarios[i] = sc
	}
	return h.RunAll(ctx, scenarios)
}

func (h *Harness) engine(scenario *Scenario) (*engine.Engine, error) {
	schema, err := graphql.LoadSchemaFiles(scenario.Schema...)
	if err != nil {
		return nil, err
	}

	loaded, errs := loader.Load(scenario.Shapes, loader.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("loading shapes: %w", errors.Join(errs...))
	}

	return engine.New(schema, loaded.Registry,
		engine.WithLogger(h.logger),
		engine.WithCompilerOptions(scenario.Config.Options()...))
}

func expectsFailure(s *Scenario) bool {
	for _, a := range s.Assertions {
		if a.Type == AssertErrorCode {
			return true
		}
	}
	return false
}
