// Package pattern holds the graph-pattern model a query is compiled into and
// the builder that populates it from a field selection.
//
// A Graph is an arena: vertices and edges live in slices and refer to each
// other by ID. Merging two relations rewrites ID lists instead of sharing
// pointers, so a subtree is only ever reachable through one edge.
//
// A Graph is built for a single compilation and is not safe for concurrent
// use.
package pattern

import (
	"sort"
	"strconv"
	"strings"

	"github.com/knakk/rdf"

	"github.com/roach88/shapeql/internal/shape"
)

// VerticeID addresses a vertice in its Graph.
type VerticeID int

// EdgeID addresses an edge in its Graph.
type EdgeID int

// Vertice is a node in the pattern graph: an open variable, or a closed set
// of IRIs the variable is restricted to.
type Vertice struct {
	ID       VerticeID
	Variable string
	IRIs     []string

	// Shape is the shape the vertice's values conform to, nil for scalars.
	Shape *shape.Shape

	Edges      []EdgeID
	Filters    []Filter
	Orderables []Orderable

	// path is the camel-cased field path used for naming children.
	path string
}

// Closed reports whether the vertice is a closed membership restriction.
func (v *Vertice) Closed() bool {
	return len(v.IRIs) > 0
}

// Edge is one predicate traversal from Parent to Target.
type Edge struct {
	ID     EdgeID
	Parent VerticeID
	Target VerticeID

	Predicate          string
	ConstructPredicate string

	// Visible edges are part of the requested output; hidden edges only
	// support a filter, an ordering or a type restriction.
	Visible  bool
	Optional bool

	// Type marks the rdf:type edge that pins a vertice to its target classes.
	Type bool
}

// Operator is the closed set of filter operators.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	// OpLanguage is reserved for the automatic language filter on
	// language-tagged literals; ParseOperator never returns it.
	OpLanguage
)

var operatorNames = map[string]Operator{
	"=":     OpEq,
	"eq":    OpEq,
	"!=":    OpNe,
	"ne":    OpNe,
	"<":     OpLt,
	"lt":    OpLt,
	"<=":    OpLte,
	"lte":   OpLte,
	">":     OpGt,
	"gt":    OpGt,
	">=":    OpGte,
	"gte":   OpGte,
	"in":    OpIn,
	"!in":   OpNotIn,
	"notin": OpNotIn,
}

// ParseOperator maps an operator keyword to an Operator. Unknown or empty
// keywords fall back to OpEq.
func ParseOperator(s string) Operator {
	if op, ok := operatorNames[strings.ToLower(s)]; ok {
		return op
	}
	return OpEq
}

func (o Operator) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpIn:
		return "in"
	case OpNotIn:
		return "!in"
	case OpLanguage:
		return "language"
	default:
		return "?"
	}
}

// Filter constrains the vertice it is attached to.
type Filter struct {
	Operator Operator
	Operands []rdf.Term
}

// Orderable is a sort key on the root query.
type Orderable struct {
	Vertice    VerticeID
	Descending bool
}

// FilterRule is a filter requirement before it is lowered into a Filter: a
// field path relative to the vertice it is applied to, an operator keyword
// and the raw argument value (scalar or list).
type FilterRule struct {
	Path     []string
	Operator string
	Value    any
}

// OrderSpec is one order-by entry: a dotted field path and an order keyword.
type OrderSpec struct {
	Field string `json:"field"`
	Order string `json:"order,omitempty"`
}

// Descending reports whether the spec sorts descending. Only "asc" in any
// case sorts ascending.
func (o OrderSpec) Descending() bool {
	return strings.ToLower(o.Order) != "asc"
}

// Field is one selected field with its nested selection.
type Field struct {
	Name      string
	Selection []*Field
}

// Graph is the arena of vertices and edges for one query.
type Graph struct {
	vertices []*Vertice
	edges    []*Edge
	root     VerticeID
	names    map[string]bool
}

// NewGraph returns a graph whose root vertice is bound to rootVar and
// conforms to s.
func NewGraph(rootVar string, s *shape.Shape) *Graph {
	g := &Graph{names: make(map[string]bool)}
	root := g.addVertice(rootVar, s)
	root.path = ""
	g.root = root.ID
	return g
}

// Root returns the root vertice ID.
func (g *Graph) Root() VerticeID {
	return g.root
}

// Vertice returns the vertice with the given ID.
func (g *Graph) Vertice(id VerticeID) *Vertice {
	return g.vertices[id]
}

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id EdgeID) *Edge {
	return g.edges[id]
}

// Edges returns the child edges of v in order.
func (g *Graph) Edges(v VerticeID) []*Edge {
	ids := g.vertices[v].Edges
	out := make([]*Edge, len(ids))
	for i, id := range ids {
		out[i] = g.edges[id]
	}
	return out
}

// Walk visits every edge reachable from the root, depth first, in edge
// order. Edges dropped by a merge are not visited.
func (g *Graph) Walk(fn func(e *Edge, depth int)) {
	var walk func(v VerticeID, depth int)
	walk = func(v VerticeID, depth int) {
		for _, id := range g.vertices[v].Edges {
			e := g.edges[id]
			fn(e, depth)
			walk(e.Target, depth+1)
		}
	}
	walk(g.root, 0)
}

// Restrict turns v into a closed membership vertice over iris.
func (g *Graph) Restrict(v VerticeID, iris []string) {
	g.vertices[v].IRIs = append([]string(nil), iris...)
}

func (g *Graph) addVertice(name string, s *shape.Shape) *Vertice {
	v := &Vertice{
		ID:       VerticeID(len(g.vertices)),
		Variable: g.uniqueName(name),
		Shape:    s,
		path:     name,
	}
	g.vertices = append(g.vertices, v)
	return v
}

func (g *Graph) addEdge(parent, target VerticeID, predicate, construct string) *Edge {
	e := &Edge{
		ID:                 EdgeID(len(g.edges)),
		Parent:             parent,
		Target:             target,
		Predicate:          predicate,
		ConstructPredicate: construct,
	}
	g.edges = append(g.edges, e)
	p := g.vertices[parent]
	p.Edges = append(p.Edges, e.ID)
	return e
}

// typeEdge returns the rdf:type edge under v, or nil.
func (g *Graph) typeEdge(v VerticeID) *Edge {
	for _, id := range g.vertices[v].Edges {
		if e := g.edges[id]; e.Type {
			return e
		}
	}
	return nil
}

// classes returns the sorted class IRIs v is pinned to through its type
// edge, or nil when v has no type edge.
func (g *Graph) classes(v VerticeID) []string {
	te := g.typeEdge(v)
	if te == nil {
		return nil
	}
	classes := append([]string(nil), g.vertices[te.Target].IRIs...)
	sort.Strings(classes)
	return classes
}

func (g *Graph) uniqueName(base string) string {
	name := base
	for i := 2; g.names[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	g.names[name] = true
	return name
}
