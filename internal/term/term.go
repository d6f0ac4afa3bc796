// Package term turns raw argument values into RDF terms for filter operands.
//
// Serialization happens in two steps. A Serializer produces the lexical form
// of a raw value (string, number, boolean, time); Operand then picks the term
// kind from the property shape the filter targets: an IRI for references, a
// language-tagged literal for rdf:langString, a typed literal when the shape
// declares a datatype and a plain literal otherwise.
package term

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/knakk/rdf"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/shapeql/internal/shape"
)

// Serializer produces the lexical form of a raw argument value.
type Serializer interface {
	Serialize(raw any) (string, error)
}

// Lexical is the default Serializer.
//
// Strings are NFC-normalized so that visually identical input always yields
// the same operand. Integers, floats, booleans, time.Time and fmt.Stringer
// values are supported; nil, maps and other composite values are rejected.
type Lexical struct{}

var _ Serializer = Lexical{}

// Serialize implements Serializer.
func (Lexical) Serialize(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", fmt.Errorf("null value")
	case string:
		return norm.NFC.String(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case fmt.Stringer:
		return norm.NFC.String(v.String()), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
}

// Operand builds the term for a lexical value compared against the values of
// ps. lang is the language tag used for rdf:langString properties.
func Operand(ps *shape.PropertyShape, lexical, lang string) (rdf.Term, error) {
	switch {
	case ps.IsReference():
		iri, err := rdf.NewIRI(lexical)
		if err != nil {
			return nil, fmt.Errorf("invalid IRI %q: %w", lexical, err)
		}
		return iri, nil
	case ps.LanguageTagged():
		lit, err := rdf.NewLangLiteral(lexical, lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language literal: %w", err)
		}
		return lit, nil
	case ps.Datatype != "" && ps.Datatype != shape.XSDString:
		dt, err := rdf.NewIRI(ps.Datatype)
		if err != nil {
			return nil, fmt.Errorf("invalid datatype %q: %w", ps.Datatype, err)
		}
		return rdf.NewTypedLiteral(lexical, dt), nil
	default:
		lit, err := rdf.NewLiteral(lexical)
		if err != nil {
			return nil, fmt.Errorf("invalid literal: %w", err)
		}
		return lit, nil
	}
}

// Operands serializes raw, which may be a scalar or a list, into one operand
// per element. An empty list gives no operands.
func Operands(ps *shape.PropertyShape, raw any, s Serializer, lang string) ([]rdf.Term, error) {
	values := flatten(raw)
	terms := make([]rdf.Term, 0, len(values))
	for _, v := range values {
		lexical, err := s.Serialize(v)
		if err != nil {
			return nil, err
		}
		t, err := Operand(ps, lexical, lang)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func flatten(raw any) []any {
	if raw == nil {
		return []any{nil}
	}
	if list, ok := raw.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{raw}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Literal builds a plain string literal, used for language-match operands.
func Literal(s string) rdf.Term {
	lit, err := rdf.NewLiteral(s)
	if err != nil {
		// NewLiteral only fails for unsupported Go types.
		panic(err)
	}
	return lit
}

// Language validates a BCP 47 tag and returns its canonical form.
func Language(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return parsed.String(), nil
}

// Render returns the SPARQL form of a term.
func Render(t rdf.Term) string {
	return t.Serialize(rdf.NTriples)
}
