package querysparql

import (
	"fmt"
	"strings"

	"github.com/roach88/shapeql/internal/directive"
	"github.com/roach88/shapeql/internal/pattern"
	"github.com/roach88/shapeql/internal/term"
)

const indent = "  "

type writer struct {
	g  *pattern.Graph
	sb strings.Builder
}

func (w *writer) line(depth int, format string, args ...any) {
	w.sb.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func renderSelect(g *pattern.Graph, args directive.Arguments) string {
	w := &writer{g: g}
	root := g.Vertice(g.Root())

	if args.Distinct {
		w.line(0, "SELECT DISTINCT ?%s", root.Variable)
	} else {
		w.line(0, "SELECT ?%s", root.Variable)
	}
	w.where()

	if len(root.Orderables) > 0 {
		keys := make([]string, len(root.Orderables))
		for i, o := range root.Orderables {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			keys[i] = fmt.Sprintf("%s(?%s)", dir, g.Vertice(o.Vertice).Variable)
		}
		w.line(0, "ORDER BY %s", strings.Join(keys, " "))
	}
	if args.Limit != nil {
		w.line(0, "LIMIT %d", *args.Limit)
	}
	if args.Offset != nil {
		w.line(0, "OFFSET %d", *args.Offset)
	}
	return w.sb.String()
}

func renderConstruct(g *pattern.Graph) string {
	w := &writer{g: g}

	w.line(0, "CONSTRUCT {")
	g.Walk(func(e *pattern.Edge, _ int) {
		if !e.Visible || e.Type {
			return
		}
		w.line(1, "?%s %s ?%s .",
			g.Vertice(e.Parent).Variable, e.ConstructPredicate, g.Vertice(e.Target).Variable)
	})
	w.line(0, "}")
	w.where()
	return w.sb.String()
}

// where writes the WHERE block: the root restriction and filters, then one
// group per edge, depth first.
func (w *writer) where() {
	root := w.g.Vertice(w.g.Root())

	w.line(0, "WHERE {")
	w.vertice(root, 1)
	for _, e := range w.g.Edges(root.ID) {
		w.edge(e, 1)
	}
	w.line(0, "}")
}

// vertice writes the VALUES restriction and filters of v.
func (w *writer) vertice(v *pattern.Vertice, depth int) {
	if v.Closed() {
		iris := make([]string, len(v.IRIs))
		for i, iri := range v.IRIs {
			iris[i] = "<" + iri + ">"
		}
		w.line(depth, "VALUES ?%s { %s }", v.Variable, strings.Join(iris, " "))
	}
	for _, f := range v.Filters {
		w.line(depth, "FILTER(%s)", filterExpr(v.Variable, f))
	}
}

func (w *writer) edge(e *pattern.Edge, depth int) {
	if e.Optional {
		w.line(depth, "OPTIONAL {")
		depth++
	}

	parent := w.g.Vertice(e.Parent)
	target := w.g.Vertice(e.Target)
	w.line(depth, "?%s %s ?%s .", parent.Variable, e.Predicate, target.Variable)
	w.vertice(target, depth)
	for _, child := range w.g.Edges(target.ID) {
		w.edge(child, depth)
	}

	if e.Optional {
		w.line(depth-1, "}")
	}
}

func filterExpr(variable string, f pattern.Filter) string {
	v := "?" + variable
	operands := make([]string, len(f.Operands))
	for i, o := range f.Operands {
		operands[i] = term.Render(o)
	}

	// with no operands "any of" is false and "all of" is true
	compare := func(op, join string) string {
		if len(operands) == 0 {
			if join == " || " {
				return "false"
			}
			return "true"
		}
		parts := make([]string, len(operands))
		for i, o := range operands {
			parts[i] = v + " " + op + " " + o
		}
		return strings.Join(parts, join)
	}

	switch f.Operator {
	case pattern.OpNe:
		return compare("!=", " && ")
	case pattern.OpLt:
		return compare("<", " && ")
	case pattern.OpLte:
		return compare("<=", " && ")
	case pattern.OpGt:
		return compare(">", " && ")
	case pattern.OpGte:
		return compare(">=", " && ")
	case pattern.OpIn:
		return v + " IN (" + strings.Join(operands, ", ") + ")"
	case pattern.OpNotIn:
		return v + " NOT IN (" + strings.Join(operands, ", ") + ")"
	case pattern.OpLanguage:
		return "langMatches(lang(" + v + "), " + strings.Join(operands, ", ") + ")"
	default:
		return compare("=", " || ")
	}
}
