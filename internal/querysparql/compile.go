// Package querysparql assembles SPARQL query strings from requests.
//
// A Request names the root type, the field selection, the request
// arguments, the @sparql directive configuration and the filter rules
// collected from argument directives. The Compiler builds a pattern graph for
// it and renders the graph as a SELECT over the root subjects, or, in
// construct mode, as a CONSTRUCT of the selected subgraph for a known set of
// subjects.
//
// Compilation is synchronous and owns its graph. A Compiler holds only
// read-only state and may be shared between goroutines.
package querysparql

import (
	"fmt"

	"github.com/knakk/rdf"
	"go.uber.org/zap"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/directive"
	"github.com/roach88/shapeql/internal/pattern"
	"github.com/roach88/shapeql/internal/shape"
	"github.com/roach88/shapeql/internal/term"
)

// DefaultRootVariable is the variable bound to the queried subjects.
const DefaultRootVariable = "s"

// Request is one root field to compile.
type Request struct {
	// Field is the root field name, used in logs and errors.
	Field     string
	TypeName  string
	Selection []*pattern.Field
	Arguments map[string]any
	Directive directive.Config
	Filters   []pattern.FilterRule
}

// Compiler compiles requests against a shape registry.
type Compiler struct {
	registry   *shape.Registry
	evaluator  directive.Evaluator
	serializer term.Serializer
	language   string
	rootVar    string
	logger     *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithEvaluator sets the directive expression evaluator.
func WithEvaluator(ev directive.Evaluator) Option {
	return func(c *Compiler) { c.evaluator = ev }
}

// WithSerializer sets the filter operand serializer.
func WithSerializer(s term.Serializer) Option {
	return func(c *Compiler) { c.serializer = s }
}

// WithLanguage sets the language for language-tagged literals.
func WithLanguage(lang string) Option {
	return func(c *Compiler) { c.language = lang }
}

// WithRootVariable sets the root variable name, without the leading '?'.
func WithRootVariable(name string) Option {
	return func(c *Compiler) { c.rootVar = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// NewCompiler returns a Compiler over registry. The language tag and root
// variable are validated here so that compilation never fails on them.
func NewCompiler(registry *shape.Registry, opts ...Option) (*Compiler, error) {
	c := &Compiler{
		registry:   registry,
		evaluator:  directive.CUEEvaluator{},
		serializer: term.Lexical{},
		language:   pattern.DefaultLanguage,
		rootVar:    DefaultRootVariable,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if registry == nil {
		return nil, fmt.Errorf("nil shape registry")
	}
	lang, err := term.Language(c.language)
	if err != nil {
		return nil, err
	}
	c.language = lang
	if !validVariable(c.rootVar) {
		return nil, fmt.Errorf("invalid root variable %q", c.rootVar)
	}
	return c, nil
}

// CompileSelect compiles req into a SELECT query over the root subjects.
//
// Directive arguments are resolved and range-checked before any pattern is
// built. Either the complete query is returned or an error; there is no
// partial result.
func (c *Compiler) CompileSelect(req Request) (string, error) {
	s, err := c.registry.Lookup(req.TypeName)
	if err != nil {
		return "", err
	}

	args, err := directive.Resolve(c.evaluator, req.Directive, req.Arguments)
	if err != nil {
		return "", err
	}

	b := c.builder(s)
	g := b.Graph()

	if args.Subject != "" {
		if err := restrict(g, directive.ArgSubject, []string{args.Subject}); err != nil {
			return "", err
		}
	}

	if err := c.populate(b, s, req, args.OrderBy); err != nil {
		return "", err
	}

	query := renderSelect(g, args)
	c.logger.Debug("compiled select",
		zap.String("field", req.Field),
		zap.String("type", req.TypeName),
		zap.String("query", query))
	return query, nil
}

// CompileConstruct compiles req into a CONSTRUCT query returning the
// selected subgraph for the given subjects. Limit, offset and ordering do not
// apply; filters do.
func (c *Compiler) CompileConstruct(req Request, subjects []string) (string, error) {
	s, err := c.registry.Lookup(req.TypeName)
	if err != nil {
		return "", err
	}
	if len(subjects) == 0 {
		return "", compileerr.Unsupported(compileerr.CodeInvalidValue, "subjects",
			"construct mode needs at least one subject")
	}

	b := c.builder(s)
	g := b.Graph()
	if err := restrict(g, "subjects", subjects); err != nil {
		return "", err
	}
	if err := c.populate(b, s, req, nil); err != nil {
		return "", err
	}

	query := renderConstruct(g)
	c.logger.Debug("compiled construct",
		zap.String("field", req.Field),
		zap.String("type", req.TypeName),
		zap.Int("subjects", len(subjects)),
		zap.String("query", query))
	return query, nil
}

func (c *Compiler) builder(s *shape.Shape) *pattern.Builder {
	return pattern.NewBuilder(c.rootVar, s,
		pattern.WithSerializer(c.serializer),
		pattern.WithLanguage(c.language),
		pattern.WithLogger(c.logger))
}

// populate adds the selection, then filters, then sort keys, and finally
// merges duplicate relations.
func (c *Compiler) populate(b *pattern.Builder, s *shape.Shape, req Request, orderBy []pattern.OrderSpec) error {
	root := b.Graph().Root()

	if err := b.Select(root, req.Selection); err != nil {
		return err
	}
	for _, rule := range req.Filters {
		if err := b.AddFilterToVertice(root, rule); err != nil {
			return err
		}
	}
	for _, spec := range orderBy {
		if err := b.AddOrderables(root, spec, s); err != nil {
			return err
		}
	}
	b.MakeEdgesUnique(root)
	return nil
}

func restrict(g *pattern.Graph, field string, iris []string) error {
	for _, iri := range iris {
		if _, err := rdf.NewIRI(iri); err != nil {
			return compileerr.Unsupported(compileerr.CodeInvalidValue, field,
				"invalid subject IRI %q", iri)
		}
	}
	g.Restrict(g.Root(), iris)
	return nil
}

func validVariable(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
