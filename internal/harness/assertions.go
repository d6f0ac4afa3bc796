package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Query    string // Compiled query text for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Query != "" {
		fmt.Fprintf(&buf, "\nQuery:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Query, "\n"), "\n") {
			fmt.Fprintf(&buf, "  | %s\n", line)
		}
	}
	return buf.String()
}

func assertQueryContains(query string, a Assertion) error {
	if strings.Contains(query, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertQueryContains,
		Expected: fmt.Sprintf("query containing %q", a.Text),
		Actual:   "not found",
		Query:    query,
	}
}

func assertQueryNotContains(query string, a Assertion) error {
	if !strings.Contains(query, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertQueryNotContains,
		Expected: fmt.Sprintf("query without %q", a.Text),
		Actual:   "found",
		Query:    query,
	}
}

// assertPatternCount counts non-overlapping occurrences of the text.
func assertPatternCount(query string, a Assertion) error {
	n := strings.Count(query, a.Text)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertPatternCount,
		Expected: fmt.Sprintf("%q exactly %d times", a.Text, a.Count),
		Actual:   fmt.Sprintf("%d times", n),
		Query:    query,
	}
}

func assertErrorCode(result *Result, a Assertion) error {
	if result.ErrorCode == a.Code {
		return nil
	}
	actual := "compilation succeeded"
	if result.CompileError != "" {
		actual = fmt.Sprintf("code %q: %s", result.ErrorCode, result.CompileError)
	}
	return &AssertionError{
		Type:     AssertErrorCode,
		Expected: fmt.Sprintf("error code %s", a.Code),
		Actual:   actual,
		Query:    result.Text(),
	}
}

// EvaluateAssertions runs all assertions against the result.
// Returns a list of error messages for failed assertions.
//
// Query assertions fail when compilation failed, since there is no query
// to inspect.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	query := result.Text()

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertErrorCode:
			err = assertErrorCode(result, a)
		case AssertQueryContains, AssertQueryNotContains, AssertPatternCount:
			if result.CompileError != "" {
				err = fmt.Errorf("%s: compilation failed: %s", a.Type, result.CompileError)
				break
			}
			switch a.Type {
			case AssertQueryContains:
				err = assertQueryContains(query, a)
			case AssertQueryNotContains:
				err = assertQueryNotContains(query, a)
			default:
				err = assertPatternCount(query, a)
			}
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err.Error()))
		}
	}
	return errs
}
