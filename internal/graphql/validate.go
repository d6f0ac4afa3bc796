package graphql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/shape"
)

// ValidateSchema checks the schema against the shape registry:
//
//   - every @sparql field returns a type with a shape;
//   - every field of a shaped object type has a property shape, except
//     fields of types the registry does not know about;
//   - every @filter path resolves against the shape it filters.
//
// It returns all problems found, in a stable order.
func ValidateSchema(schema *ast.Schema, registry *shape.Registry) []error {
	v := &schemaValidator{schema: schema, registry: registry}

	if schema.Query != nil {
		for _, f := range schema.Query.Fields {
			if strings.HasPrefix(f.Name, "__") || f.Directives.ForName(DirectiveSPARQL) == nil {
				continue
			}
			where := "Query." + f.Name
			s, err := registry.Lookup(f.Type.Name())
			if err != nil {
				v.add(fmt.Errorf("%s: %w", where, err))
				continue
			}
			v.arguments(where, f.Arguments, s)
		}
	}

	for _, name := range sortedTypes(schema) {
		def := schema.Types[name]
		s, ok := registry.Get(name)
		if !ok || def.Kind != ast.Object {
			continue
		}
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			where := name + "." + f.Name
			ps := s.PropertyShape(f.Name)
			if ps == nil {
				v.add(compileerr.PathError(compileerr.CodeUnknownSegment, where,
					"no property shape for field %s on %s", f.Name, name))
				continue
			}
			if ps.Node != nil {
				v.arguments(where, f.Arguments, ps.Node)
			}
		}
	}
	return v.errs
}

type schemaValidator struct {
	schema   *ast.Schema
	registry *shape.Registry
	errs     []error
}

func (v *schemaValidator) add(err error) {
	v.errs = append(v.errs, err)
}

// arguments resolves the @filter paths of args, and of the input objects
// they take, against s.
func (v *schemaValidator) arguments(where string, args ast.ArgumentDefinitionList, s *shape.Shape) {
	for _, arg := range args {
		v.filterPath(where+"("+arg.Name+")", arg.Name, arg.Type, arg.Directives, s, map[string]bool{})
	}
}

func (v *schemaValidator) filterPath(where, name string, typ *ast.Type, dirs ast.DirectiveList, s *shape.Shape, seen map[string]bool) {
	if d := dirs.ForName(DirectiveFilter); d != nil {
		field, _ := d.ArgumentMap(nil)["field"].(string)
		if field == "" {
			field = name
		}
		if _, err := s.Resolve(strings.Split(field, ".")); err != nil {
			v.add(fmt.Errorf("%s: %w", where, err))
		}
		return
	}

	def := v.schema.Types[typ.Name()]
	if def == nil || def.Kind != ast.InputObject || seen[def.Name] {
		return
	}
	seen[def.Name] = true
	for _, fd := range def.Fields {
		v.filterPath(where+"."+fd.Name, fd.Name, fd.Type, fd.Directives, s, seen)
	}
}

func sortedTypes(schema *ast.Schema) []string {
	names := make([]string, 0, len(schema.Types))
	for name, def := range schema.Types {
		if def.BuiltIn {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
