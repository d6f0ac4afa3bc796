package directive

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/shapeql/internal/compileerr"
)

// CUEEvaluator evaluates directive expressions as CUE expressions whose
// free identifiers resolve to request arguments:
//
//	limit: "first"
//	subject: "\"https://example.org/id/brewery/\\(identifier)\""
//	orderBy: "[{field: sort, order: \"asc\"}]"
//
// A fresh cue.Context is created per call, so one CUEEvaluator may be
// shared between goroutines.
type CUEEvaluator struct{}

var _ Evaluator = CUEEvaluator{}

// Evaluate implements Evaluator.
func (CUEEvaluator) Evaluate(name string, cfg Config, args map[string]any, kind Kind) (any, bool, error) {
	expr, err := cfg.Expression(name)
	if err != nil {
		return nil, false, err
	}
	if expr == "" {
		return nil, false, nil
	}

	ctx := cuecontext.New()
	// a bare Encode result does not resolve identifiers as a scope; a
	// compiled struct does
	scope := ctx.CompileString("{}").Unify(ctx.Encode(Normalize(args)))
	if err := scope.Err(); err != nil {
		return nil, false, invalid(name, "encode arguments", err)
	}

	v := ctx.CompileString(expr, cue.Scope(scope), cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, false, invalid(name, fmt.Sprintf("evaluate %q", expr), err)
	}
	if v.Null() == nil {
		return nil, false, nil
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, false, invalid(name, fmt.Sprintf("evaluate %q", expr), err)
	}

	switch kind {
	case KindInt:
		n, err := v.Int64()
		if err != nil {
			return nil, false, invalid(name, "expected int", err)
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, false, compileerr.Unsupported(compileerr.CodeInvalidValue, name,
				"value %d out of range", n)
		}
		return int(n), true, nil
	case KindString:
		s, err := v.String()
		if err != nil {
			return nil, false, invalid(name, "expected string", err)
		}
		return s, true, nil
	case KindBool:
		b, err := v.Bool()
		if err != nil {
			return nil, false, invalid(name, "expected bool", err)
		}
		return b, true, nil
	default:
		var out any
		if err := v.Decode(&out); err != nil {
			return nil, false, invalid(name, "decode", err)
		}
		return out, true, nil
	}
}

func invalid(name, what string, err error) error {
	return &compileerr.Error{
		Kind:    compileerr.KindUnsupported,
		Code:    compileerr.CodeInvalidValue,
		Field:   name,
		Message: what,
		Err:     fmt.Errorf("%s", errors.Details(err, nil)),
	}
}

// Normalize converts integral float64 values, as produced by JSON decoding,
// to int64 so that CUE sees them as ints. Maps and slices are copied.
func Normalize(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	default:
		return v
	}
}
