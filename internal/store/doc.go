// Package store provides SQLite-backed durable storage for compilation logs.
//
// Every compilation run through the CLI with --db is appended as one record:
// the operation text, its canonical variables, the root field, and the
// fingerprints of the request and of the emitted query. Replaying the log
// recompiles each record against the current schema and shapes and reports
// records whose query fingerprint changed.
//
// # Ordering
//
//   - Records carry a seq INTEGER assigned by the store (logical clock),
//     never a timestamp.
//   - All queries use ORDER BY seq ASC, id COLLATE BINARY ASC so results are
//     identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Fingerprints are computed by internal/canon using RFC 8785 canonical JSON
// and SHA-256 with domain separation.
package store
