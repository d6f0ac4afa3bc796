package shape

import (
	"strings"
)

// Path is a property path from a focus node to its values.
//
// This is a sealed interface - only types in this package implement it.
// Backends switch exhaustively over the concrete types.
//
// Predicate renders the path for a WHERE clause. ConstructPredicate renders a
// plain IRI usable in a CONSTRUCT template, which cannot hold property paths.
type Path interface {
	pathNode()
	Predicate() string
	ConstructPredicate() string
}

// PredicatePath is a single predicate IRI.
type PredicatePath struct {
	IRI string
}

func (PredicatePath) pathNode() {}

func (p PredicatePath) Predicate() string { return "<" + p.IRI + ">" }

func (p PredicatePath) ConstructPredicate() string { return p.Predicate() }

// InversePath walks Path from object to subject.
type InversePath struct {
	Path Path
}

func (InversePath) pathNode() {}

func (p InversePath) Predicate() string { return "^" + group(p.Path) }

// ConstructPredicate uses a synthetic IRI so that the inverted triple keeps
// the focus node in subject position.
func (p InversePath) ConstructPredicate() string {
	return syntheticIRI(p.Path.ConstructPredicate(), "inverse")
}

// SequencePath walks each element in order.
type SequencePath struct {
	Paths []Path
}

func (SequencePath) pathNode() {}

func (p SequencePath) Predicate() string { return join(p.Paths, "/") }

func (p SequencePath) ConstructPredicate() string {
	if len(p.Paths) == 0 {
		return ""
	}
	return syntheticIRI(p.Paths[len(p.Paths)-1].ConstructPredicate(), "sequence")
}

// AlternativePath matches any of its elements.
type AlternativePath struct {
	Paths []Path
}

func (AlternativePath) pathNode() {}

func (p AlternativePath) Predicate() string { return "(" + join(p.Paths, "|") + ")" }

func (p AlternativePath) ConstructPredicate() string {
	if len(p.Paths) == 0 {
		return ""
	}
	return syntheticIRI(p.Paths[0].ConstructPredicate(), "alternative")
}

// ZeroOrMorePath is Path*.
type ZeroOrMorePath struct {
	Path Path
}

func (ZeroOrMorePath) pathNode() {}

func (p ZeroOrMorePath) Predicate() string { return group(p.Path) + "*" }

func (p ZeroOrMorePath) ConstructPredicate() string {
	return syntheticIRI(p.Path.ConstructPredicate(), "zeroOrMore")
}

// OneOrMorePath is Path+.
type OneOrMorePath struct {
	Path Path
}

func (OneOrMorePath) pathNode() {}

func (p OneOrMorePath) Predicate() string { return group(p.Path) + "+" }

func (p OneOrMorePath) ConstructPredicate() string {
	return syntheticIRI(p.Path.ConstructPredicate(), "oneOrMore")
}

// ZeroOrOnePath is Path?.
type ZeroOrOnePath struct {
	Path Path
}

func (ZeroOrOnePath) pathNode() {}

func (p ZeroOrOnePath) Predicate() string { return group(p.Path) + "?" }

func (p ZeroOrOnePath) ConstructPredicate() string {
	return syntheticIRI(p.Path.ConstructPredicate(), "zeroOrOne")
}

// group wraps composite paths in parentheses so unary operators bind to the
// whole element.
func group(p Path) string {
	switch p.(type) {
	case PredicatePath, *PredicatePath:
		return p.Predicate()
	case AlternativePath, *AlternativePath:
		return p.Predicate()
	default:
		return "(" + p.Predicate() + ")"
	}
}

func join(paths []Path, sep string) string {
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = group(p)
	}
	return strings.Join(parts, sep)
}

// syntheticIRI turns <iri> into <iri#suffix>, or <iri_suffix> when the IRI
// already carries a fragment.
func syntheticIRI(iri, suffix string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(iri, "<"), ">")
	if strings.Contains(inner, "#") {
		return "<" + inner + "_" + suffix + ">"
	}
	return "<" + inner + "#" + suffix + ">"
}
