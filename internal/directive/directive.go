// Package directive resolves the pagination, ordering and subject arguments
// of a @sparql directive against the arguments of a request.
//
// The directive names an expression per concern (limit, offset, orderBy,
// subject); an Evaluator computes each expression in the scope of the
// request arguments. Resolve turns the results into typed, range-checked
// Arguments for the query assembler.
package directive

import (
	"fmt"

	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/pattern"
)

// Directive argument names.
const (
	ArgRepository = "repository"
	ArgSubject    = "subject"
	ArgLimit      = "limit"
	ArgOffset     = "offset"
	ArgOrderBy    = "orderBy"
	ArgDistinct   = "distinct"
)

// Config is the @sparql configuration of one root field. Expression fields
// are empty when the directive does not set them.
type Config struct {
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
	Subject    string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Limit      string `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset     string `json:"offset,omitempty" yaml:"offset,omitempty"`
	OrderBy    string `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	Distinct   bool   `json:"distinct,omitempty" yaml:"distinct,omitempty"`
}

// Expression returns the expression configured for a directive argument.
func (c Config) Expression(name string) (string, error) {
	switch name {
	case ArgSubject:
		return c.Subject, nil
	case ArgLimit:
		return c.Limit, nil
	case ArgOffset:
		return c.Offset, nil
	case ArgOrderBy:
		return c.OrderBy, nil
	default:
		return "", compileerr.Unsupported(compileerr.CodeUnknownDirective, name,
			"no expression argument %q on @sparql", name)
	}
}

// Kind is the type an expression must evaluate to.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindBool
	// KindAny accepts any concrete value, decoded to Go maps, slices and
	// scalars.
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindAny:
		return "any"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Evaluator computes a directive expression.
//
// ok is false when the directive does not configure the expression or when
// it evaluates to null. An expression name the directive does not define is
// an unsupported-configuration error.
type Evaluator interface {
	Evaluate(name string, cfg Config, args map[string]any, kind Kind) (value any, ok bool, err error)
}

// Arguments are the resolved directive values for one request.
type Arguments struct {
	Limit    *int
	Offset   *int
	OrderBy  []pattern.OrderSpec
	Distinct bool
	Subject  string
}

// Resolve evaluates limit, offset, orderBy and subject and validates them.
// Limit must be at least 1 and offset at least 0.
func Resolve(ev Evaluator, cfg Config, args map[string]any) (Arguments, error) {
	out := Arguments{Distinct: cfg.Distinct}

	limit, err := evalInt(ev, ArgLimit, cfg, args)
	if err != nil {
		return Arguments{}, err
	}
	if limit != nil && *limit < 1 {
		return Arguments{}, compileerr.Constraint(compileerr.CodeLimit, ArgLimit,
			"limit must be at least 1, got %d", *limit)
	}
	out.Limit = limit

	offset, err := evalInt(ev, ArgOffset, cfg, args)
	if err != nil {
		return Arguments{}, err
	}
	if offset != nil && *offset < 0 {
		return Arguments{}, compileerr.Constraint(compileerr.CodeOffset, ArgOffset,
			"offset must not be negative, got %d", *offset)
	}
	out.Offset = offset

	raw, ok, err := ev.Evaluate(ArgOrderBy, cfg, args, KindAny)
	if err != nil {
		return Arguments{}, err
	}
	if ok {
		if out.OrderBy, err = orderSpecs(raw); err != nil {
			return Arguments{}, err
		}
	}

	subject, ok, err := ev.Evaluate(ArgSubject, cfg, args, KindString)
	if err != nil {
		return Arguments{}, err
	}
	if ok {
		out.Subject = subject.(string)
	}

	return out, nil
}

func evalInt(ev Evaluator, name string, cfg Config, args map[string]any) (*int, error) {
	v, ok, err := ev.Evaluate(name, cfg, args, KindInt)
	if err != nil || !ok {
		return nil, err
	}
	n, ok := v.(int)
	if !ok {
		return nil, compileerr.Unsupported(compileerr.CodeInvalidValue, name,
			"expected int, got %T", v)
	}
	return &n, nil
}

// orderSpecs accepts a list of {field, order} objects or field names, or a
// single one of either.
func orderSpecs(raw any) ([]pattern.OrderSpec, error) {
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}

	specs := make([]pattern.OrderSpec, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			specs = append(specs, pattern.OrderSpec{Field: v})
		case map[string]any:
			f, _ := v["field"].(string)
			if f == "" {
				return nil, compileerr.Unsupported(compileerr.CodeInvalidValue, ArgOrderBy,
					"order entry %d has no field", i)
			}
			o, _ := v["order"].(string)
			specs = append(specs, pattern.OrderSpec{Field: f, Order: o})
		case nil:
			continue
		default:
			return nil, compileerr.Unsupported(compileerr.CodeInvalidValue, ArgOrderBy,
				"order entry %d: unsupported type %T", i, item)
		}
	}
	return specs, nil
}
