// Package harness runs compile scenarios: GraphQL operations compiled
// against a schema and a shape set, with assertions on the generated SPARQL.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: utrecht_breweries
//	description: "Breweries filtered by city, newest first"
//	schema:
//	  - ../schema/brewery.graphql
//	shapes: ../shapes
//	config:
//	  language: en
//	query: |
//	  query Q($city: String) { breweries(city: $city) { name } }
//	variables: { city: Utrecht }
//	mode: select            # or construct, with subjects
//	subjects: []
//	expect_error: ""        # expected error code, e.g. E213
//	golden: true
//	assertions:
//	  - type: query_contains
//	    text: 'FILTER(?addressCity = "Utrecht")'
//	  - type: pattern_count
//	    text: "OPTIONAL {"
//	    count: 1
//
// Schema and shape paths are relative to the scenario file. Unknown fields
// are rejected so typos fail loudly.
//
// # Assertion Types
//
//   - query_contains: the query contains text
//   - query_not_contains: the query does not contain text
//   - pattern_count: text occurs exactly count times
//   - error_code: compilation failed with code
//
// # Concurrency
//
// RunAll runs scenarios on an errgroup with bounded parallelism. Every
// scenario loads its own schema and registry and compiles into its own
// pattern graphs, so scenarios share nothing.
package harness
