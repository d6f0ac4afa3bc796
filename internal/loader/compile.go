package loader

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/shapeql/internal/shape"
)

// CompileError is a shape definition error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileShape parses one shape definition:
//
//	shape: Brewery: {
//		targetClass: ["https://example.org/beer#Brewery"]
//		property: {
//			name: {path: "http://schema.org/name", minCount: 1}
//			beers: {path: {inverse: "https://example.org/beer#brewery"}, node: "Beer"}
//		}
//	}
//
// The shape name is the struct label. Node references are left unlinked;
// shape.NewRegistry links them.
func CompileShape(v cue.Value) (*shape.Shape, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &shape.Shape{Properties: map[string]*shape.PropertyShape{}}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		s.Name = sels[len(sels)-1].String()
	}

	classes, err := parseTargetClasses(v)
	if err != nil {
		return nil, err
	}
	s.TargetClasses = classes

	propsVal := v.LookupPath(cue.ParsePath("property"))
	if !propsVal.Exists() {
		return s, nil
	}
	iter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ps, err := parseProperty(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.Properties[ps.Name] = ps
	}
	return s, nil
}

func parseTargetClasses(v cue.Value) ([]string, error) {
	tcVal := v.LookupPath(cue.ParsePath("targetClass"))
	if !tcVal.Exists() {
		return nil, nil
	}

	// A single class may be written without the list.
	if single, err := tcVal.String(); err == nil {
		return []string{single}, nil
	}

	iter, err := tcVal.List()
	if err != nil {
		return nil, &CompileError{Field: "targetClass", Message: "must be a string or a list of strings", Pos: tcVal.Pos()}
	}
	var classes []string
	for iter.Next() {
		c, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: "targetClass", Message: "class must be a string", Pos: iter.Value().Pos()}
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func parseProperty(name string, v cue.Value) (*shape.PropertyShape, error) {
	ps := &shape.PropertyShape{Name: name}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if !pathVal.Exists() {
		return nil, &CompileError{Field: "path", Message: fmt.Sprintf("property %s: path is required", name), Pos: v.Pos()}
	}
	path, err := parsePath(pathVal)
	if err != nil {
		return nil, err
	}
	ps.Path = path

	if nodeVal := v.LookupPath(cue.ParsePath("node")); nodeVal.Exists() {
		node, err := nodeVal.String()
		if err != nil {
			return nil, &CompileError{Field: "node", Message: fmt.Sprintf("property %s: node must name a shape", name), Pos: nodeVal.Pos()}
		}
		ps.NodeRef = node
	}

	if dtVal := v.LookupPath(cue.ParsePath("datatype")); dtVal.Exists() {
		dt, err := dtVal.String()
		if err != nil {
			return nil, &CompileError{Field: "datatype", Message: fmt.Sprintf("property %s: datatype must be an IRI string", name), Pos: dtVal.Pos()}
		}
		ps.Datatype = dt
	}

	if nkVal := v.LookupPath(cue.ParsePath("nodeKind")); nkVal.Exists() {
		nk, _ := nkVal.String()
		switch nk {
		case "IRI":
			ps.NodeKind = shape.NodeKindIRI
		case "Literal":
			ps.NodeKind = shape.NodeKindLiteral
		default:
			return nil, &CompileError{Field: "nodeKind", Message: fmt.Sprintf("property %s: nodeKind must be \"IRI\" or \"Literal\"", name), Pos: nkVal.Pos()}
		}
	}

	if mcVal := v.LookupPath(cue.ParsePath("minCount")); mcVal.Exists() {
		mc, err := mcVal.Int64()
		if err != nil || mc < 0 {
			return nil, &CompileError{Field: "minCount", Message: fmt.Sprintf("property %s: minCount must be a non-negative int", name), Pos: mcVal.Pos()}
		}
		ps.MinCount = int(mc)
	}

	return ps, nil
}

// parsePath accepts an IRI string or a struct with exactly one of the path
// operators inverse, sequence, alternative, zeroOrMore, oneOrMore and
// zeroOrOne.
func parsePath(v cue.Value) (shape.Path, error) {
	if iri, err := v.String(); err == nil {
		if iri == "" {
			return nil, &CompileError{Field: "path", Message: "empty predicate IRI", Pos: v.Pos()}
		}
		return shape.PredicatePath{IRI: iri}, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: "path", Message: "path must be an IRI or a path operator", Pos: v.Pos()}
	}
	var (
		out   shape.Path
		count int
	)
	for iter.Next() {
		count++
		inner := iter.Value()
		switch op := iter.Label(); op {
		case "inverse", "zeroOrMore", "oneOrMore", "zeroOrOne":
			p, err := parsePath(inner)
			if err != nil {
				return nil, err
			}
			out = unary(op, p)
		case "sequence", "alternative":
			paths, err := parsePathList(inner)
			if err != nil {
				return nil, err
			}
			if op == "sequence" {
				out = shape.SequencePath{Paths: paths}
			} else {
				out = shape.AlternativePath{Paths: paths}
			}
		default:
			return nil, &CompileError{Field: "path", Message: fmt.Sprintf("unknown path operator %q", op), Pos: inner.Pos()}
		}
	}
	if count != 1 {
		return nil, &CompileError{Field: "path", Message: "path struct must have exactly one operator", Pos: v.Pos()}
	}
	return out, nil
}

func unary(op string, p shape.Path) shape.Path {
	switch op {
	case "inverse":
		return shape.InversePath{Path: p}
	case "zeroOrMore":
		return shape.ZeroOrMorePath{Path: p}
	case "oneOrMore":
		return shape.OneOrMorePath{Path: p}
	default:
		return shape.ZeroOrOnePath{Path: p}
	}
}

func parsePathList(v cue.Value) ([]shape.Path, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "path", Message: "sequence and alternative take a list of paths", Pos: v.Pos()}
	}
	var paths []shape.Path
	for iter.Next() {
		p, err := parsePath(iter.Value())
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if len(paths) < 2 {
		return nil, &CompileError{Field: "path", Message: "sequence and alternative need at least two paths", Pos: v.Pos()}
	}
	return paths, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
