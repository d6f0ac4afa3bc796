package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Compilation modes.
const (
	ModeSelect    = "select"
	ModeConstruct = "construct"
)

// Compilation is one logged compilation.
type Compilation struct {
	ID            string   `json:"id"`
	Seq           int64    `json:"seq"`
	Operation     string   `json:"operation"`
	OperationName string   `json:"operation_name,omitempty"`
	Variables     string   `json:"variables"` // canonical JSON
	Field         string   `json:"field"`
	Mode          string   `json:"mode"`
	Subjects      []string `json:"subjects,omitempty"`
	RequestHash   string   `json:"request_hash"`
	Query         string   `json:"query"`
	QueryHash     string   `json:"query_hash"`
}

// WriteCompilation appends c to the log. An empty ID is filled with a random
// UUID; Seq is always assigned by the store as one past the current maximum.
// The stored record is returned.
func (s *Store) WriteCompilation(ctx context.Context, c Compilation) (Compilation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Mode == "" {
		c.Mode = ModeSelect
	}
	if c.Variables == "" {
		c.Variables = "{}"
	}
	subjects, err := json.Marshal(nonNil(c.Subjects))
	if err != nil {
		return c, errors.Wrap(err, "write compilation: subjects")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return c, errors.Wrap(err, "write compilation: begin")
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(seq) FROM compilations").Scan(&last); err != nil {
		return c, errors.Wrap(err, "write compilation: next seq")
	}
	c.Seq = last.Int64 + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO compilations
		(id, seq, operation, operation_name, variables, field, mode, subjects, request_hash, query, query_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Seq,
		c.Operation,
		c.OperationName,
		c.Variables,
		c.Field,
		c.Mode,
		string(subjects),
		c.RequestHash,
		c.Query,
		c.QueryHash,
	)
	if err != nil {
		return c, errors.Wrap(err, "write compilation")
	}
	if err := tx.Commit(); err != nil {
		return c, errors.Wrap(err, "write compilation: commit")
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
