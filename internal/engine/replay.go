package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/shapeql/internal/graphql"
	"github.com/roach88/shapeql/internal/store"
)

// ErrNoStore is returned by Replay when the engine has no store.
var ErrNoStore = errors.New("replay needs a compilation store")

// Replay recompiles every recorded compilation against the engine's current
// schema and registry. Records are recompiled in log order from their stored
// operation text and variables; a record drifts when its query hash changes.
// Replay never writes to the store.
func (e *Engine) Replay(ctx context.Context) (store.ReplayReport, error) {
	if e.store == nil {
		return store.ReplayReport{}, ErrNoStore
	}
	return e.store.Replay(ctx, e.Recompile)
}

// Recompile compiles a recorded compilation again and returns the new query
// and its hash.
func (e *Engine) Recompile(_ context.Context, c store.Compilation) (string, string, error) {
	vars, err := decodeVariables(c.Variables)
	if err != nil {
		return "", "", err
	}

	op, err := graphql.Parse(e.schema, c.Operation, c.OperationName, vars)
	if err != nil {
		return "", "", err
	}
	reqs, err := op.WithLogger(e.logger).Requests()
	if err != nil {
		return "", "", err
	}

	var subjects []string
	if c.Mode == store.ModeConstruct {
		subjects = c.Subjects
		if len(subjects) == 0 {
			return "", "", fmt.Errorf("construct record %s has no subjects", c.ID)
		}
	}

	for _, req := range reqs {
		if req.Field != c.Field {
			continue
		}
		r, err := e.compile(req, subjects)
		if err != nil {
			return "", "", err
		}
		return r.Query, r.QueryHash, nil
	}
	return "", "", fmt.Errorf("field %q no longer selected by the operation", c.Field)
}
