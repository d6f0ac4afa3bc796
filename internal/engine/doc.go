// Package engine ties the GraphQL front end, the query compiler and the
// compilation log together.
//
// One Compile call parses and validates an operation, builds one request per
// root field carrying @sparql, compiles each into a SELECT (or, given
// subjects, a CONSTRUCT) and fingerprints request and query. With a store
// configured, the results are appended to the compilation log.
//
// Replay recompiles the log against the current schema and shapes and reports
// every record whose query changed. Compilation is deterministic: the same
// operation, variables, schema and shapes always produce byte-identical
// queries, so a drifted record always means the inputs or the compiler
// changed.
package engine
