package shape

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/shapeql/internal/compileerr"
)

// Well-known IRIs used by the compiler.
const (
	RDFType       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	XSDString     = "http://www.w3.org/2001/XMLSchema#string"
)

// NodeKind says whether the values of a property are IRIs or literals.
type NodeKind int

const (
	// NodeKindUnspecified lets the compiler infer the kind from Node and Datatype.
	NodeKindUnspecified NodeKind = iota
	NodeKindIRI
	NodeKindLiteral
)

// Shape describes one entity type: its target classes and its fields.
//
// Shapes are read-only once they are part of a Registry.
type Shape struct {
	Name          string
	TargetClasses []string
	Properties    map[string]*PropertyShape
}

// PropertyShape describes one field of a Shape.
type PropertyShape struct {
	Name string
	Path Path

	// NodeRef names the nested shape; Node is filled in by NewRegistry.
	NodeRef string
	Node    *Shape

	Datatype string
	NodeKind NodeKind
	MinCount int
}

// Mandatory reports whether every focus node must have a value.
func (ps *PropertyShape) Mandatory() bool {
	return ps.MinCount > 0
}

// IsReference reports whether the values are IRIs rather than literals.
func (ps *PropertyShape) IsReference() bool {
	switch ps.NodeKind {
	case NodeKindIRI:
		return true
	case NodeKindLiteral:
		return false
	}
	return ps.Node != nil
}

// LanguageTagged reports whether values are rdf:langString literals.
func (ps *PropertyShape) LanguageTagged() bool {
	return ps.Datatype == RDFLangString
}

// PropertyShape returns the named field, or nil.
func (s *Shape) PropertyShape(name string) *PropertyShape {
	if s == nil {
		return nil
	}
	return s.Properties[name]
}

// SortedTargetClasses returns the target classes in lexical order.
func (s *Shape) SortedTargetClasses() []string {
	classes := append([]string(nil), s.TargetClasses...)
	sort.Strings(classes)
	return classes
}

// Resolve walks a dotted field path one segment at a time and returns the
// property shape for every segment.
//
// A segment whose property has a nested Shape continues against that shape;
// a segment without one must be the last. Unknown segments and paths that
// continue past a leaf fail with a path-resolution error.
func (s *Shape) Resolve(segments []string) ([]*PropertyShape, error) {
	if len(segments) == 0 {
		return nil, compileerr.PathError(compileerr.CodeUnknownSegment, "", "empty field path on shape %s", s.Name)
	}

	resolved := make([]*PropertyShape, 0, len(segments))
	current := s
	for i, segment := range segments {
		if current == nil {
			return nil, compileerr.PathError(compileerr.CodePastLeaf, dotted(segments[:i+1]),
				"path continues past leaf field %q", segments[i-1])
		}
		ps := current.PropertyShape(segment)
		if ps == nil {
			return nil, compileerr.PathError(compileerr.CodeUnknownSegment, dotted(segments[:i+1]),
				"unknown field %q on shape %s", segment, current.Name)
		}
		resolved = append(resolved, ps)
		current = ps.Node
	}
	return resolved, nil
}

// NextShape returns the shape that the first segment of the path leads to,
// or s itself when the first segment is a leaf. Unknown segments fail.
func (s *Shape) NextShape(segments []string) (*Shape, error) {
	if len(segments) == 0 {
		return s, nil
	}
	ps := s.PropertyShape(segments[0])
	if ps == nil {
		return nil, compileerr.PathError(compileerr.CodeUnknownSegment, segments[0],
			"unknown field %q on shape %s", segments[0], s.Name)
	}
	if ps.Node == nil {
		return s, nil
	}
	return ps.Node, nil
}

func dotted(segments []string) string {
	return strings.Join(segments, ".")
}

func (s *Shape) String() string {
	return fmt.Sprintf("Shape(%s)", s.Name)
}
