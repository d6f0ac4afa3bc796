package shape

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/shapeql/internal/compileerr"
)

// Registry maps GraphQL type names to shapes.
//
// A Registry is populated once by NewRegistry and never mutated afterwards,
// so concurrent compilations may read it without locking.
type Registry struct {
	shapes map[string]*Shape
}

// NewRegistry links every PropertyShape.NodeRef to its Shape and returns the
// frozen registry. Duplicate names, dangling node references and properties
// without a path are rejected.
func NewRegistry(shapes ...*Shape) (*Registry, error) {
	r := &Registry{shapes: make(map[string]*Shape, len(shapes))}
	for _, s := range shapes {
		if s == nil || s.Name == "" {
			return nil, fmt.Errorf("shape without a name")
		}
		if _, dup := r.shapes[s.Name]; dup {
			return nil, fmt.Errorf("duplicate shape %q", s.Name)
		}
		r.shapes[s.Name] = s
	}

	var problems []string
	for _, name := range r.Names() {
		s := r.shapes[name]
		for _, field := range sortedFields(s) {
			ps := s.Properties[field]
			if ps.Name == "" {
				ps.Name = field
			}
			if ps.Path == nil {
				problems = append(problems, fmt.Sprintf("%s.%s: missing path", name, field))
			}
			if ps.NodeRef == "" {
				continue
			}
			target, ok := r.shapes[ps.NodeRef]
			if !ok {
				problems = append(problems, fmt.Sprintf("%s.%s: unknown node shape %q", name, field, ps.NodeRef))
				continue
			}
			ps.Node = target
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid shapes: %s", strings.Join(problems, "; "))
	}
	return r, nil
}

// Get returns the shape for a type name.
func (r *Registry) Get(typeName string) (*Shape, bool) {
	s, ok := r.shapes[typeName]
	return s, ok
}

// Lookup is Get with a path-resolution error for unknown types.
func (r *Registry) Lookup(typeName string) (*Shape, error) {
	s, ok := r.shapes[typeName]
	if !ok {
		return nil, compileerr.PathError(compileerr.CodeUnknownShape, typeName, "no shape registered for type %s", typeName)
	}
	return s, nil
}

// Names returns the registered type names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.shapes))
	for name := range r.shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered shapes.
func (r *Registry) Len() int {
	return len(r.shapes)
}

func sortedFields(s *Shape) []string {
	fields := make([]string, 0, len(s.Properties))
	for f := range s.Properties {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
