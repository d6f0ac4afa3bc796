package graphql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
	"go.uber.org/zap"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/directive"
	"github.com/roach88/shapeql/internal/pattern"
	"github.com/roach88/shapeql/internal/querysparql"
)

// Operation is a parsed and validated GraphQL operation with coerced
// variables.
type Operation struct {
	schema *ast.Schema
	op     *ast.OperationDefinition
	vars   map[string]any
	logger *zap.Logger
}

// Parse parses and validates query against schema and selects the operation
// to run. operationName may be empty when the document has one operation.
func Parse(schema *ast.Schema, query, operationName string, variables map[string]any) (*Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: query})
	if err != nil {
		return nil, fmt.Errorf("parsing operation: %w", err)
	}
	if errs := validator.Validate(schema, doc); len(errs) > 0 {
		return nil, fmt.Errorf("validating operation: %w", errs)
	}

	if len(doc.Operations) > 1 && operationName == "" {
		return nil, errors.New("operation name must be supplied when the document has more than one operation")
	}
	op := doc.Operations.ForName(operationName)
	if op == nil {
		return nil, fmt.Errorf("operation %q not found", operationName)
	}
	if op.Operation != ast.Query {
		return nil, compileerr.Unsupported(compileerr.CodeInvalidValue, op.Name,
			"only query operations compile to SPARQL, got %s", op.Operation)
	}

	vars, err := validator.VariableValues(schema, op, variables)
	if err != nil {
		return nil, fmt.Errorf("coercing variables: %w", err)
	}

	return &Operation{schema: schema, op: op, vars: vars, logger: zap.NewNop()}, nil
}

// WithLogger sets the logger used while building requests.
func (o *Operation) WithLogger(l *zap.Logger) *Operation {
	o.logger = l
	return o
}

// Name returns the operation name, which may be empty.
func (o *Operation) Name() string {
	return o.op.Name
}

// Requests returns one request per top-level field carrying @sparql, in
// document order. Other top-level fields are skipped.
func (o *Operation) Requests() ([]querysparql.Request, error) {
	var reqs []querysparql.Request
	for _, f := range o.fields(o.op.SelectionSet) {
		if f.Definition == nil || strings.HasPrefix(f.Name, "__") {
			continue
		}
		d := f.Definition.Directives.ForName(DirectiveSPARQL)
		if d == nil {
			o.logger.Debug("skipping field without @sparql", zap.String("field", f.Name))
			continue
		}

		req, err := o.request(f, d)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// BuildRequests parses query and returns its requests.
func BuildRequests(schema *ast.Schema, query, operationName string, variables map[string]any) ([]querysparql.Request, error) {
	op, err := Parse(schema, query, operationName, variables)
	if err != nil {
		return nil, err
	}
	return op.Requests()
}

func (o *Operation) request(f *ast.Field, d *ast.Directive) (querysparql.Request, error) {
	name := f.Alias
	if name == "" {
		name = f.Name
	}
	req := querysparql.Request{
		Field:     name,
		TypeName:  f.Definition.Type.Name(),
		Directive: directiveConfig(d),
	}

	args, err := o.arguments(f, nil)
	if err != nil {
		return req, err
	}
	req.Arguments = args
	req.Filters = o.filterRules(f.Definition.Arguments, args, nil)

	selection, filters, err := o.selection(f.SelectionSet, nil)
	if err != nil {
		return req, err
	}
	req.Selection = selection
	req.Filters = append(req.Filters, filters...)
	return req, nil
}

// arguments returns every declared argument of f, null when neither given
// nor defaulted, after checking required values and @constraint rules.
func (o *Operation) arguments(f *ast.Field, prefix []string) (map[string]any, error) {
	raw := f.ArgumentMap(o.vars)
	args := make(map[string]any, len(f.Definition.Arguments))
	for _, def := range f.Definition.Arguments {
		v := directive.Normalize(raw[def.Name])
		args[def.Name] = v

		field := dotted(append(append([]string{}, prefix...), def.Name))
		if err := o.check(field, def.Type, def.Directives, v); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// check validates one argument or input field value.
func (o *Operation) check(field string, typ *ast.Type, dirs ast.DirectiveList, v any) error {
	if v == nil {
		if typ.NonNull {
			return compileerr.Constraint(compileerr.CodeRequiredArgument, field, "value is required")
		}
		return nil
	}
	if c := dirs.ForName(DirectiveConstraint); c != nil {
		if err := checkConstraint(field, c.ArgumentMap(nil), v); err != nil {
			return err
		}
	}

	def := o.schema.Types[typ.Name()]
	if def == nil || def.Kind != ast.InputObject {
		return nil
	}
	for _, obj := range objects(v) {
		for _, fd := range def.Fields {
			if err := o.check(field+"."+fd.Name, fd.Type, fd.Directives, obj[fd.Name]); err != nil {
				return err
			}
		}
	}
	return nil
}

// filterRules lowers @filter arguments, and @filter fields of input object
// arguments, to rules. prefix is the field path of the selection the
// arguments belong to.
func (o *Operation) filterRules(defs ast.ArgumentDefinitionList, args map[string]any, prefix []string) []pattern.FilterRule {
	var rules []pattern.FilterRule
	for _, def := range defs {
		rules = append(rules, o.valueRules(def.Name, def.Type, def.Directives, args[def.Name], prefix)...)
	}
	return rules
}

func (o *Operation) valueRules(name string, typ *ast.Type, dirs ast.DirectiveList, v any, prefix []string) []pattern.FilterRule {
	if v == nil {
		return nil
	}
	if d := dirs.ForName(DirectiveFilter); d != nil {
		return []pattern.FilterRule{filterRule(name, d, v, prefix)}
	}

	def := o.schema.Types[typ.Name()]
	if def == nil || def.Kind != ast.InputObject {
		return nil
	}
	var rules []pattern.FilterRule
	for _, obj := range objects(v) {
		for _, fd := range def.Fields {
			rules = append(rules, o.valueRules(fd.Name, fd.Type, fd.Directives, obj[fd.Name], prefix)...)
		}
	}
	return rules
}

func filterRule(name string, d *ast.Directive, v any, prefix []string) pattern.FilterRule {
	dargs := d.ArgumentMap(nil)
	field, _ := dargs["field"].(string)
	if field == "" {
		field = name
	}
	op, _ := dargs["operator"].(string)

	path := append(append([]string{}, prefix...), strings.Split(field, ".")...)
	return pattern.FilterRule{Path: path, Operator: op, Value: v}
}

// selection converts a selection set to fields, expanding fragments, and
// collects the filter rules of nested field arguments.
func (o *Operation) selection(set ast.SelectionSet, prefix []string) ([]*pattern.Field, []pattern.FilterRule, error) {
	var (
		fields []*pattern.Field
		rules  []pattern.FilterRule
	)
	for _, f := range o.fields(set) {
		path := append(append([]string{}, prefix...), f.Name)

		if f.Definition != nil && len(f.Definition.Arguments) > 0 {
			args, err := o.arguments(f, path)
			if err != nil {
				return nil, nil, err
			}
			rules = append(rules, o.filterRules(f.Definition.Arguments, args, path)...)
		}

		children, nested, err := o.selection(f.SelectionSet, path)
		if err != nil {
			return nil, nil, err
		}
		rules = append(rules, nested...)
		fields = append(fields, &pattern.Field{Name: f.Name, Selection: children})
	}
	return fields, rules, nil
}

// fields flattens fragment spreads and inline fragments into their fields.
func (o *Operation) fields(set ast.SelectionSet) []*ast.Field {
	var out []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			out = append(out, s)
		case *ast.InlineFragment:
			out = append(out, o.fields(s.SelectionSet)...)
		case *ast.FragmentSpread:
			if s.Definition != nil {
				out = append(out, o.fields(s.Definition.SelectionSet)...)
			}
		}
	}
	return out
}

func directiveConfig(d *ast.Directive) directive.Config {
	args := d.ArgumentMap(nil)
	str := func(name string) string {
		s, _ := args[name].(string)
		return s
	}
	distinct, _ := args[directive.ArgDistinct].(bool)
	return directive.Config{
		Repository: str(directive.ArgRepository),
		Subject:    str(directive.ArgSubject),
		Limit:      str(directive.ArgLimit),
		Offset:     str(directive.ArgOffset),
		OrderBy:    str(directive.ArgOrderBy),
		Distinct:   distinct,
	}
}

// objects returns the input objects in v, which is an object or a list of
// objects.
func objects(v any) []map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return []map[string]any{x}
	case []any:
		var out []map[string]any
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func dotted(segments []string) string {
	return strings.Join(segments, ".")
}
