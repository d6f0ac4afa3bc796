// Package compileerr defines the error kinds raised while compiling a request
// into a query string.
//
// Every failure is permanent for the request that caused it: nothing inside
// the compiler retries or recovers, and no partial query is ever returned.
// Callers classify failures with errors.Is against the kind sentinels:
//
//	if errors.Is(err, compileerr.ErrConstraint) {
//	    // map to a 400-style response
//	}
package compileerr

import (
	"errors"
	"fmt"
)

// Kind classifies a compilation failure.
type Kind int

const (
	// KindPathResolution covers unknown field segments and traversal past a leaf.
	KindPathResolution Kind = iota + 1
	// KindConstraint covers range and required-value violations.
	KindConstraint
	// KindUnsupported covers directive configuration that cannot be honoured.
	KindUnsupported
	// KindSerialization covers filter values that cannot become RDF terms.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindPathResolution:
		return "path resolution"
	case KindConstraint:
		return "constraint violation"
	case KindUnsupported:
		return "unsupported configuration"
	case KindSerialization:
		return "serialization"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error codes (E200-E299). Loader errors keep the E0xx range.
const (
	CodeUnknownSegment   = "E201" // field segment not declared on the shape
	CodePastLeaf         = "E202" // path continues past a scalar field
	CodeUnknownShape     = "E203" // type has no shape in the registry
	CodeLimit            = "E210" // limit < 1
	CodeOffset           = "E211" // offset < 0
	CodeRequiredArgument = "E212" // required argument missing and no default
	CodeArgConstraint    = "E213" // @constraint violated
	CodeUnknownDirective = "E220" // unresolvable directive expression name
	CodeInvalidValue     = "E221" // expression or value of the wrong type
	CodeSerialization    = "E230" // filter operand cannot be serialized
)

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	ErrPathResolution = &Error{Kind: KindPathResolution}
	ErrConstraint     = &Error{Kind: KindConstraint}
	ErrUnsupported    = &Error{Kind: KindUnsupported}
	ErrSerialization  = &Error{Kind: KindSerialization}
)

// Error is a compilation failure with a stable code.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// PathError reports an unresolvable field path.
func PathError(code, field, format string, args ...any) *Error {
	return &Error{Kind: KindPathResolution, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Constraint reports a violated argument constraint.
func Constraint(code, field, format string, args ...any) *Error {
	return &Error{Kind: KindConstraint, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Unsupported reports directive configuration that cannot be evaluated.
func Unsupported(code, field, format string, args ...any) *Error {
	return &Error{Kind: KindUnsupported, Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Serialization wraps a failure to turn a raw value into a term.
func Serialization(field string, err error) *Error {
	return &Error{Kind: KindSerialization, Code: CodeSerialization, Field: field, Message: "cannot serialize filter value", Err: err}
}

// Code extracts the code from err, or "" when err is not an *Error.
func Code(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
