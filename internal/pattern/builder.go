package pattern

import (
	"slices"
	"strings"

	"github.com/knakk/rdf"
	"go.uber.org/zap"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/shape"
	"github.com/roach88/shapeql/internal/term"
)

// DefaultLanguage is the language tag used when none is configured.
const DefaultLanguage = "en"

var typePredicate = "<" + shape.RDFType + ">"

// Builder populates a Graph from selections, filter rules and order specs.
//
// Relations are found before they are created: a filter or ordering on a
// field that is also selected reuses the selection's edge, and an edge used
// by a filter or a mandatory field is promoted from optional to required.
type Builder struct {
	graph      *Graph
	serializer term.Serializer
	language   string
	logger     *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithSerializer sets the serializer for filter operands.
func WithSerializer(s term.Serializer) Option {
	return func(b *Builder) { b.serializer = s }
}

// WithLanguage sets the language for language-tagged literals.
func WithLanguage(lang string) Option {
	return func(b *Builder) { b.language = lang }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a builder over a fresh graph rooted at rootVar. When s
// declares target classes the root is pinned to them with a required,
// hidden rdf:type edge.
func NewBuilder(rootVar string, s *shape.Shape, opts ...Option) *Builder {
	b := &Builder{
		graph:      NewGraph(rootVar, s),
		serializer: term.Lexical{},
		language:   DefaultLanguage,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if s != nil {
		b.addTypeEdge(b.graph.Root(), s)
	}
	return b
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// Select adds a visible edge for every field in the selection under v,
// recursing into nested selections. Mandatory fields are required.
func (b *Builder) Select(v VerticeID, fields []*Field) error {
	return b.selectFields(v, nil, fields)
}

func (b *Builder) selectFields(v VerticeID, prefix []string, fields []*Field) error {
	s := b.graph.Vertice(v).Shape
	for _, f := range fields {
		if f.Name == "__typename" {
			continue
		}
		path := append(slices.Clone(prefix), f.Name)
		if s == nil {
			return compileerr.PathError(compileerr.CodePastLeaf, dotted(path),
				"path continues past leaf field %q", dotted(prefix))
		}
		ps := s.PropertyShape(f.Name)
		if ps == nil {
			return compileerr.PathError(compileerr.CodeUnknownSegment, dotted(path),
				"unknown field %q on shape %s", f.Name, s.Name)
		}

		id := b.FindOrCreateEdge(v, ps, ps.Mandatory())
		e := b.graph.Edge(id)
		e.Visible = true

		if len(f.Selection) == 0 {
			continue
		}
		if err := b.selectFields(e.Target, path, f.Selection); err != nil {
			return err
		}
	}
	return nil
}

// FindOrCreateEdge returns the edge under parent that traverses ps, creating
// a hidden, optional one when none exists.
//
// An existing edge matches when its predicate equals the path predicate and,
// for non-scalar targets, its target is pinned to the same classes as the
// nested shape (or to none at all). A matching edge is promoted to required
// when required is set; nothing ever demotes a required edge.
func (b *Builder) FindOrCreateEdge(parent VerticeID, ps *shape.PropertyShape, required bool) EdgeID {
	predicate := ps.Path.Predicate()

	var want []string
	if ps.Node != nil {
		want = ps.Node.SortedTargetClasses()
	}

	for _, id := range b.graph.Vertice(parent).Edges {
		e := b.graph.Edge(id)
		if e.Type || e.Predicate != predicate {
			continue
		}
		if ps.Node != nil {
			if have := b.graph.classes(e.Target); have != nil && !slices.Equal(have, want) {
				continue
			}
		}
		if required {
			e.Optional = false
		}
		return id
	}

	pv := b.graph.Vertice(parent)
	target := b.graph.addVertice(camel(pv.path, ps.Name), ps.Node)
	e := b.graph.addEdge(parent, target.ID, predicate, ps.Path.ConstructPredicate())
	e.Optional = !required

	if ps.Node != nil {
		b.addTypeEdge(target.ID, ps.Node)
	}
	b.AddLanguageFilter(e.ID, ps)
	return e.ID
}

// FindOrCreatePath resolves a field path from v against s, finding or
// creating one edge per segment. The required flag applies to every edge on
// the path. It returns the terminal edge.
func (b *Builder) FindOrCreatePath(v VerticeID, s *shape.Shape, segments []string, required bool) (EdgeID, error) {
	id, _, err := b.findOrCreatePath(v, s, segments, required)
	return id, err
}

func (b *Builder) findOrCreatePath(v VerticeID, s *shape.Shape, segments []string, required bool) (EdgeID, *shape.PropertyShape, error) {
	if s == nil {
		return 0, nil, compileerr.PathError(compileerr.CodePastLeaf, dotted(segments),
			"path starts at a scalar value")
	}
	if _, err := s.Resolve(segments); err != nil {
		return 0, nil, err
	}
	id, ps := b.walkPath(v, s, segments, required)
	return id, ps, nil
}

// walkPath assumes segments resolve against s.
func (b *Builder) walkPath(v VerticeID, s *shape.Shape, segments []string, required bool) (EdgeID, *shape.PropertyShape) {
	ps := s.PropertyShape(segments[0])
	id := b.FindOrCreateEdge(v, ps, required)
	if len(segments) == 1 {
		return id, ps
	}
	return b.walkPath(b.graph.Edge(id).Target, ps.Node, segments[1:], required)
}

// AddFilterToVertice lowers rule into a Filter on the vertice its path
// reaches from v. Every edge on the path becomes required, since a filter
// target must exist.
func (b *Builder) AddFilterToVertice(v VerticeID, rule FilterRule) error {
	id, ps, err := b.findOrCreatePath(v, b.graph.Vertice(v).Shape, rule.Path, true)
	if err != nil {
		return err
	}

	operands, err := term.Operands(ps, rule.Value, b.serializer, b.language)
	if err != nil {
		return compileerr.Serialization(dotted(rule.Path), err)
	}

	target := b.graph.Vertice(b.graph.Edge(id).Target)
	target.Filters = append(target.Filters, Filter{
		Operator: ParseOperator(rule.Operator),
		Operands: operands,
	})
	return nil
}

// AddOrderables resolves the order field from v against s and appends a
// sort key to the root vertice, whatever the depth of the field.
//
// A field on s itself stays optional so that rows without a value are still
// returned. A field behind a nested shape joins the nested relation as
// required.
func (b *Builder) AddOrderables(v VerticeID, spec OrderSpec, s *shape.Shape) error {
	segments := strings.Split(spec.Field, ".")
	if s == nil {
		return compileerr.PathError(compileerr.CodePastLeaf, spec.Field, "order path starts at a scalar value")
	}
	if _, err := s.Resolve(segments); err != nil {
		return err
	}

	var target VerticeID
	first := s.PropertyShape(segments[0])
	if first.Node == nil {
		id, _ := b.walkPath(v, s, segments, false)
		target = b.graph.Edge(id).Target
	} else {
		id := b.FindOrCreateEdge(v, first, true)
		target = b.graph.Edge(id).Target
		if len(segments) > 1 {
			id, _ = b.walkPath(target, first.Node, segments[1:], true)
			target = b.graph.Edge(id).Target
		}
	}

	root := b.graph.Vertice(b.graph.Root())
	root.Orderables = append(root.Orderables, Orderable{
		Vertice:    target,
		Descending: spec.Descending(),
	})
	return nil
}

// MakeEdgesUnique merges sibling edges under v that describe the same
// relation, then recurses into the surviving targets.
//
// Two edges are the same relation when their predicates match and their
// targets carry the same signature: the pinned classes for entity targets,
// the IRI set for closed targets. The later edge's children, filters and
// sort keys move to the earlier edge's target.
func (b *Builder) MakeEdgesUnique(v VerticeID) {
	vert := b.graph.Vertice(v)
	unique := make([]EdgeID, 0, len(vert.Edges))
	for _, id := range vert.Edges {
		e := b.graph.Edge(id)
		if keep := b.duplicateOf(unique, e); keep != nil {
			b.merge(keep, e)
			continue
		}
		unique = append(unique, id)
	}
	vert.Edges = unique

	for _, id := range unique {
		b.MakeEdgesUnique(b.graph.Edge(id).Target)
	}
}

func (b *Builder) duplicateOf(unique []EdgeID, e *Edge) *Edge {
	sig := b.signature(e)
	for _, id := range unique {
		candidate := b.graph.Edge(id)
		if candidate.Predicate == e.Predicate && candidate.Type == e.Type && slices.Equal(b.signature(candidate), sig) {
			return candidate
		}
	}
	return nil
}

func (b *Builder) signature(e *Edge) []string {
	target := b.graph.Vertice(e.Target)
	if target.Closed() {
		iris := slices.Clone(target.IRIs)
		slices.Sort(iris)
		return iris
	}
	return b.graph.classes(e.Target)
}

func (b *Builder) merge(keep, drop *Edge) {
	kt := b.graph.Vertice(keep.Target)
	dt := b.graph.Vertice(drop.Target)

	b.logger.Debug("merging duplicate relation",
		zap.String("predicate", keep.Predicate),
		zap.String("keep", kt.Variable),
		zap.String("drop", dt.Variable))

	for _, id := range dt.Edges {
		b.graph.Edge(id).Parent = kt.ID
	}
	kt.Edges = append(kt.Edges, dt.Edges...)
	for _, f := range dt.Filters {
		if f.Operator == OpLanguage && hasLanguageFilter(kt) {
			continue
		}
		kt.Filters = append(kt.Filters, f)
	}
	dt.Edges = nil
	dt.Filters = nil

	keep.Visible = keep.Visible || drop.Visible
	keep.Optional = keep.Optional && drop.Optional

	root := b.graph.Vertice(b.graph.Root())
	for i := range root.Orderables {
		if root.Orderables[i].Vertice == dt.ID {
			root.Orderables[i].Vertice = kt.ID
		}
	}
}

// AddLanguageFilter restricts the target of e to the configured language
// when ps holds language-tagged literals. It adds at most one such filter
// per vertice.
func (b *Builder) AddLanguageFilter(e EdgeID, ps *shape.PropertyShape) {
	if !ps.LanguageTagged() {
		return
	}
	target := b.graph.Vertice(b.graph.Edge(e).Target)
	if hasLanguageFilter(target) {
		return
	}
	target.Filters = append(target.Filters, Filter{
		Operator: OpLanguage,
		Operands: []rdf.Term{term.Literal(b.language)},
	})
}

func hasLanguageFilter(v *Vertice) bool {
	for _, f := range v.Filters {
		if f.Operator == OpLanguage {
			return true
		}
	}
	return false
}

func (b *Builder) addTypeEdge(v VerticeID, s *shape.Shape) {
	if len(s.TargetClasses) == 0 {
		return
	}
	owner := b.graph.Vertice(v)
	tv := b.graph.addVertice(owner.Variable+"Type", nil)
	tv.IRIs = s.SortedTargetClasses()
	e := b.graph.addEdge(v, tv.ID, typePredicate, typePredicate)
	e.Type = true
}

func camel(prefix, name string) string {
	if prefix == "" || name == "" {
		return prefix + name
	}
	return prefix + strings.ToUpper(name[:1]) + name[1:]
}

func dotted(segments []string) string {
	return strings.Join(segments, ".")
}
