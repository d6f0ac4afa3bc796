package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a compilation does not exist.
var ErrNotFound = errors.New("compilation not found")

const selectColumns = `
	SELECT id, seq, operation, operation_name, variables, field, mode, subjects, request_hash, query, query_hash
	FROM compilations
`

// ListCompilations returns every compilation in log order.
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListCompilations(ctx context.Context) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`ORDER BY seq ASC, id COLLATE BINARY ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query compilations")
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate compilations")
	}
	return out, nil
}

// ReadCompilation returns the compilation with the given id.
func (s *Store) ReadCompilation(ctx context.Context, id string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`WHERE id = ?`, id)
	c, err := scanCompilation(row)
	if errors.Cause(err) == sql.ErrNoRows {
		return Compilation{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return c, err
}

// FindByRequestHash returns the compilations of an identical request, in
// log order.
func (s *Store) FindByRequestHash(ctx context.Context, hash string) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+`WHERE request_hash = ? ORDER BY seq ASC, id COLLATE BINARY ASC`, hash)
	if err != nil {
		return nil, errors.Wrap(err, "query compilations by request hash")
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate compilations")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var (
		c        Compilation
		subjects string
	)
	err := row.Scan(
		&c.ID,
		&c.Seq,
		&c.Operation,
		&c.OperationName,
		&c.Variables,
		&c.Field,
		&c.Mode,
		&subjects,
		&c.RequestHash,
		&c.Query,
		&c.QueryHash,
	)
	if err != nil {
		return c, errors.Wrap(err, "scan compilation")
	}
	if err := json.Unmarshal([]byte(subjects), &c.Subjects); err != nil {
		return c, errors.Wrap(err, "decode subjects")
	}
	if len(c.Subjects) == 0 {
		c.Subjects = nil
	}
	return c, nil
}
