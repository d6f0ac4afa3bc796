package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeql/internal/config"
	"github.com/roach88/shapeql/internal/store"
)

// Scenario is one compile test: a query compiled against a schema and a
// shape set, with assertions on the produced query or error.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema lists GraphQL SDL files or directories.
	// Paths are relative to the scenario file location.
	Schema []string `yaml:"schema"`

	// Shapes is a CUE shape file or directory, relative to the scenario file.
	Shapes string `yaml:"shapes"`

	// Config holds compiler settings.
	Config config.Compiler `yaml:"config,omitempty"`

	// Query is the GraphQL operation text.
	Query string `yaml:"query"`

	// Operation selects the operation in a multi-operation document.
	Operation string `yaml:"operation,omitempty"`

	Variables map[string]any `yaml:"variables,omitempty"`

	// Mode is "select" (default) or "construct". Construct mode needs
	// Subjects.
	Mode     string   `yaml:"mode,omitempty"`
	Subjects []string `yaml:"subjects,omitempty"`

	// ExpectError is the expected error code. When set, compilation must
	// fail with this code and query assertions are not evaluated.
	ExpectError string `yaml:"expect_error,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Golden compares the compiled queries against the scenario's golden
	// file, see GoldenFile.
	Golden bool `yaml:"golden,omitempty"`

	// path is the file the scenario was loaded from.
	path string
}

// Path returns the file the scenario was loaded from, if any.
func (s *Scenario) Path() string {
	return s.path
}

// Assertion checks the compiled query text or the compile error.
type Assertion struct {
	// Type specifies the assertion type:
	// - "query_contains": Text appears in the query
	// - "query_not_contains": Text does not appear in the query
	// - "pattern_count": Text appears exactly Count times
	// - "error_code": Compilation failed with Code
	Type string `yaml:"type"`

	// Text is the query fragment (query_contains, query_not_contains,
	// pattern_count).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of occurrences (pattern_count).
	Count int `yaml:"count,omitempty"`

	// Code is the expected error code (error_code).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertQueryContains    = "query_contains"
	AssertQueryNotContains = "query_not_contains"
	AssertPatternCount     = "pattern_count"
	AssertErrorCode        = "error_code"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Schema and shape paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	scenario.path = path
	return scenario, nil
}

// ParseScenario parses scenario YAML, resolving relative paths against
// basePath, and validates it.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Schema {
		scenario.Schema[i] = resolve(basePath, p)
	}
	if scenario.Shapes != "" {
		scenario.Shapes = resolve(basePath, scenario.Shapes)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the *.yaml and *.yml files directly under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}
	if s.Shapes == "" {
		return fmt.Errorf("shapes is required")
	}
	if s.Query == "" {
		return fmt.Errorf("query is required")
	}

	for _, p := range append(append([]string{}, s.Schema...), s.Shapes) {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	switch s.Mode {
	case "", store.ModeSelect:
		if len(s.Subjects) > 0 {
			return fmt.Errorf("subjects are only allowed in construct mode")
		}
	case store.ModeConstruct:
		if len(s.Subjects) == 0 {
			return fmt.Errorf("construct mode needs subjects")
		}
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if s.ExpectError == "" && len(s.Assertions) == 0 && !s.Golden {
		return fmt.Errorf("scenario checks nothing: add assertions, expect_error or golden")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertQueryContains, AssertQueryNotContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertPatternCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for pattern_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pattern_count", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
