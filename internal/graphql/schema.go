// Package graphql is the GraphQL front end: it loads an SDL schema annotated
// with @sparql, @filter and @constraint, and turns validated operations into
// querysparql.Requests.
package graphql

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Directive names.
const (
	DirectiveSPARQL     = "sparql"
	DirectiveFilter     = "filter"
	DirectiveConstraint = "constraint"
)

// Prelude declares the directives the compiler understands. It is loaded
// ahead of every user schema.
const Prelude = `
directive @sparql(
  repository: String
  subject: String
  limit: String
  offset: String
  orderBy: String
  distinct: Boolean = false
) on FIELD_DEFINITION

directive @filter(
  field: String
  operator: String = "eq"
) on ARGUMENT_DEFINITION | INPUT_FIELD_DEFINITION

directive @constraint(
  min: Int
  max: Int
  oneOf: [String!]
  oneOfInt: [Int!]
  pattern: String
) on ARGUMENT_DEFINITION | INPUT_FIELD_DEFINITION
`

// LoadSchema loads SDL sources together with the directive prelude.
func LoadSchema(sources ...*ast.Source) (*ast.Schema, error) {
	all := append([]*ast.Source{{Name: "prelude.graphql", Input: Prelude}}, sources...)
	schema, err := gqlparser.LoadSchema(all...)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	return schema, nil
}

// LoadSchemaString loads a single SDL document.
func LoadSchemaString(name, sdl string) (*ast.Schema, error) {
	return LoadSchema(&ast.Source{Name: name, Input: sdl})
}

// LoadSchemaFiles loads SDL from files. A directory contributes every
// .graphql and .graphqls file directly inside it.
func LoadSchemaFiles(paths ...string) (*ast.Schema, error) {
	var sources []*ast.Source
	for _, path := range paths {
		files, err := schemaFiles(path)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading schema: %w", err)
			}
			sources = append(sources, &ast.Source{Name: f, Input: string(data)})
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no schema files in %v", paths)
	}
	return LoadSchema(sources...)
}

func schemaFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("schema path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	for _, pattern := range []string{"*.graphql", "*.graphqls"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
