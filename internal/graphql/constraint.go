package graphql

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/roach88/shapeql/internal/compileerr"
)

// checkConstraint applies @constraint(min, max, oneOf, oneOfInt, pattern) to
// v. List values are checked element by element.
func checkConstraint(field string, c map[string]any, v any) error {
	for _, e := range elements(v) {
		if err := checkValue(field, c, e); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(field string, c map[string]any, v any) error {
	if min, ok := c["min"].(int64); ok {
		if n, isNum := number(v); isNum && n < float64(min) {
			return violation(field, "must be at least %d, got %v", min, v)
		}
	}
	if max, ok := c["max"].(int64); ok {
		if n, isNum := number(v); isNum && n > float64(max) {
			return violation(field, "must be at most %d, got %v", max, v)
		}
	}
	if oneOf, ok := c["oneOf"].([]any); ok {
		if !contains(oneOf, fmt.Sprint(v)) {
			return violation(field, "must be one of %v, got %v", oneOf, v)
		}
	}
	if oneOfInt, ok := c["oneOfInt"].([]any); ok {
		n, isNum := number(v)
		if !isNum || !containsInt(oneOfInt, n) {
			return violation(field, "must be one of %v, got %v", oneOfInt, v)
		}
	}
	if pattern, ok := c["pattern"].(string); ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return compileerr.Unsupported(compileerr.CodeInvalidValue, field, "invalid @constraint pattern %q: %v", pattern, err)
		}
		s, isString := v.(string)
		if !isString || !re.MatchString(s) {
			return violation(field, "must match %s, got %v", pattern, v)
		}
	}
	return nil
}

func violation(field, format string, args ...any) error {
	return compileerr.Constraint(compileerr.CodeArgConstraint, field, format, args...)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func contains(list []any, s string) bool {
	for _, e := range list {
		if fmt.Sprint(e) == s {
			return true
		}
	}
	return false
}

func containsInt(list []any, n float64) bool {
	for _, e := range list {
		if m, ok := number(e); ok && m == n {
			return true
		}
	}
	return false
}

// elements returns the elements of a list value, or v itself.
func elements(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
