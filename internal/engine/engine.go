package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/roach88/shapeql/internal/canon"
	"github.com/roach88/shapeql/internal/graphql"
	"github.com/roach88/shapeql/internal/querysparql"
	"github.com/roach88/shapeql/internal/shape"
	"github.com/roach88/shapeql/internal/store"
)

// ErrNoRequests is returned when an operation selects no @sparql field.
var ErrNoRequests = errors.New("operation selects no @sparql field")

// Input is one GraphQL operation to compile.
type Input struct {
	Query         string
	OperationName string
	Variables     map[string]any

	// Subjects switches to construct mode: every request compiles to a
	// CONSTRUCT of its selection for these subject IRIs.
	Subjects []string
}

// Construct reports whether the input compiles in construct mode.
func (in Input) Construct() bool {
	return len(in.Subjects) > 0
}

// Result is the compiled query of one root field.
type Result struct {
	// ID is the compilation log record, empty when no store is configured.
	ID          string `json:"id,omitempty"`
	Seq         int64  `json:"seq,omitempty"`
	Field       string `json:"field"`
	Mode        string `json:"mode"`
	RequestHash string `json:"request_hash"`
	Query       string `json:"query"`
	QueryHash   string `json:"query_hash"`
}

// Engine compiles operations against a schema and a shape registry, and
// optionally records every compilation in a store.
//
// An Engine holds only read-only state besides the store, which serialises
// its own writes, so Compile may be called from several goroutines.
type Engine struct {
	schema   *ast.Schema
	registry *shape.Registry
	compiler *querysparql.Compiler
	store    *store.Store
	ids      IDGenerator
	logger   *zap.Logger

	compilerOpts []querysparql.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore records every compilation in s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithIDGenerator sets how recorded compilations are named. The default
// is UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. It is passed on to the compiler.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithCompilerOptions passes options to the underlying query compiler.
func WithCompilerOptions(opts ...querysparql.Option) Option {
	return func(e *Engine) {
		e.compilerOpts = append(e.compilerOpts, opts...)
	}
}

// New creates an Engine over schema and registry.
func New(schema *ast.Schema, registry *shape.Registry, opts ...Option) (*Engine, error) {
	e := &Engine{
		schema:   schema,
		registry: registry,
		ids:      UUIDv7Generator{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	copts := append([]querysparql.Option{querysparql.WithLogger(e.logger)}, e.compilerOpts...)
	c, err := querysparql.NewCompiler(registry, copts...)
	if err != nil {
		return nil, fmt.Errorf("creating compiler: %w", err)
	}
	e.compiler = c
	return e, nil
}

// Schema returns the GraphQL schema.
func (e *Engine) Schema() *ast.Schema {
	return e.schema
}

// Registry returns the shape registry.
func (e *Engine) Registry() *shape.Registry {
	return e.registry
}

// Validate cross-checks the schema against the registry.
func (e *Engine) Validate() []error {
	return graphql.ValidateSchema(e.schema, e.registry)
}

// Compile compiles every @sparql root field of the operation, in document
// order. When a store is configured each result is recorded before Compile
// returns; nothing is recorded if any field fails to compile.
func (e *Engine) Compile(ctx context.Context, in Input) ([]Result, error) {
	op, err := graphql.Parse(e.schema, in.Query, in.OperationName, in.Variables)
	if err != nil {
		return nil, err
	}
	reqs, err := op.WithLogger(e.logger).Requests()
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrNoRequests
	}

	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		r, err := e.compile(req, in.Subjects)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Field, err)
		}
		results = append(results, r)
	}

	if e.store == nil {
		return results, nil
	}
	if err := e.record(ctx, in, op.Name(), results); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) compile(req querysparql.Request, subjects []string) (Result, error) {
	hash, err := canon.RequestHash(req)
	if err != nil {
		return Result{}, err
	}

	var (
		query string
		mode  = store.ModeSelect
	)
	if len(subjects) > 0 {
		mode = store.ModeConstruct
		query, err = e.compiler.CompileConstruct(req, subjects)
	} else {
		query, err = e.compiler.CompileSelect(req)
	}
	if err != nil {
		return Result{}, err
	}

	return Result{
		Field:       req.Field,
		Mode:        mode,
		RequestHash: hash,
		Query:       query,
		QueryHash:   canon.QueryHash(query),
	}, nil
}

func (e *Engine) record(ctx context.Context, in Input, opName string, results []Result) error {
	vars := in.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := canon.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encoding variables: %w", err)
	}

	for i, r := range results {
		c, err := e.store.WriteCompilation(ctx, store.Compilation{
			ID:            e.ids.Generate(),
			Operation:     in.Query,
			OperationName: opName,
			Variables:     string(data),
			Field:         r.Field,
			Mode:          r.Mode,
			Subjects:      in.Subjects,
			RequestHash:   r.RequestHash,
			Query:         r.Query,
			QueryHash:     r.QueryHash,
		})
		if err != nil {
			return err
		}
		results[i].ID = c.ID
		results[i].Seq = c.Seq
		e.logger.Debug("recorded compilation",
			zap.String("id", c.ID),
			zap.Int64("seq", c.Seq),
			zap.String("field", c.Field))
	}
	return nil
}

// decodeVariables reads variables stored as canonical JSON.
func decodeVariables(s string) (map[string]any, error) {
	vars := map[string]any{}
	if s == "" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(s), &vars); err != nil {
		return nil, fmt.Errorf("decoding variables: %w", err)
	}
	return vars, nil
}
