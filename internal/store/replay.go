package store

import (
	"context"

	"github.com/pkg/errors"
)

// Recompiler recompiles a logged compilation and returns the new query and
// its fingerprint.
type Recompiler func(ctx context.Context, c Compilation) (query, queryHash string, err error)

// Drift is a compilation whose query changed on replay.
type Drift struct {
	Compilation Compilation `json:"compilation"`
	Query       string      `json:"query"`
	QueryHash   string      `json:"query_hash"`
}

// Failure is a compilation that no longer compiles.
type Failure struct {
	Compilation Compilation `json:"compilation"`
	Error       string      `json:"error"`
}

// ReplayReport summarises a replay.
type ReplayReport struct {
	Total    int       `json:"total"`
	Matched  int       `json:"matched"`
	Drifted  []Drift   `json:"drifted,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// Clean reports whether every record recompiled to the same query.
func (r ReplayReport) Clean() bool {
	return len(r.Drifted) == 0 && len(r.Failures) == 0
}

// Replay recompiles every logged compilation in log order. Compile failures
// are recorded in the report; only storage errors and context cancellation
// abort the replay.
func (s *Store) Replay(ctx context.Context, recompile Recompiler) (ReplayReport, error) {
	var report ReplayReport

	records, err := s.ListCompilations(ctx)
	if err != nil {
		return report, errors.Wrap(err, "replay")
	}

	for _, c := range records {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, "replay")
		}
		report.Total++

		query, hash, err := recompile(ctx, c)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, Failure{Compilation: c, Error: err.Error()})
		case hash != c.QueryHash:
			report.Drifted = append(report.Drifted, Drift{Compilation: c, Query: query, QueryHash: hash})
		default:
			report.Matched++
		}
	}
	return report, nil
}
