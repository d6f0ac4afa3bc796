package harness

import (
	"strings"

	"github.com/roach88/shapeql/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	Name string `json:"name"`

	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Queries holds one compiled query per @sparql root field. Empty when
	// compilation failed.
	Queries []engine.Result `json:"queries,omitempty"`

	// CompileError is the compilation failure, if any, and ErrorCode its
	// code.
	CompileError string `json:"compile_error,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Text returns all compiled queries, separated by a blank line.
func (r *Result) Text() string {
	parts := make([]string, len(r.Queries))
	for i, q := range r.Queries {
		parts[i] = q.Query
	}
	return strings.Join(parts, "\n")
}
