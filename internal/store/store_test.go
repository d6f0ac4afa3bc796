package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCompilation(field, query string) Compilation {
	return Compilation{
		Operation:   "{ " + field + " { name } }",
		Field:       field,
		RequestHash: "req-" + field,
		Query:       query,
		QueryHash:   "q-" + query,
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.WriteCompilation(ctx, testCompilation("breweries", "SELECT 1"))
	require.NoError(t, err)
	s.Close()

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "records survive reopen")

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, len(migrations), version)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_QueryHashIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_compilations_query_hash",
	).Scan(&name)
	require.NoError(t, err)
}

func TestClose_Twice(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NoError(t, (&Store{}).Close())
}

func TestWriteCompilation_AssignsSeqAndID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.WriteCompilation(ctx, testCompilation("breweries", "SELECT ?a"))
	require.NoError(t, err)
	second, err := s.WriteCompilation(ctx, testCompilation("beers", "SELECT ?b"))
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, ModeSelect, first.Mode)
	assert.Equal(t, "{}", first.Variables)
}

func TestWriteCompilation_IgnoresCallerSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := testCompilation("breweries", "SELECT ?a")
	c.Seq = 99
	got, err := s.WriteCompilation(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq)
}

func TestWriteCompilation_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := testCompilation("breweries", "SELECT ?a")
	c.ID = "fixed"
	_, err := s.WriteCompilation(ctx, c)
	require.NoError(t, err)

	_, err = s.WriteCompilation(ctx, c)
	assert.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListCompilations_Empty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ListCompilations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListCompilations_LogOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	construct := testCompilation("beers", "CONSTRUCT { }")
	construct.Mode = ModeConstruct
	construct.Subjects = []string{"http://ex.org/b1", "http://ex.org/b2"}
	construct.Variables = `{"first":5}`

	for _, c := range []Compilation{
		testCompilation("breweries", "SELECT ?a"),
		construct,
		testCompilation("owners", "SELECT ?c"),
	} {
		_, err := s.WriteCompilation(ctx, c)
		require.NoError(t, err)
	}

	got, err := s.ListCompilations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	fields := []string{got[0].Field, got[1].Field, got[2].Field}
	assert.Equal(t, []string{"breweries", "beers", "owners"}, fields)

	assert.Nil(t, got[0].Subjects)
	assert.Equal(t, ModeConstruct, got[1].Mode)
	assert.Equal(t, []string{"http://ex.org/b1", "http://ex.org/b2"}, got[1].Subjects)
	assert.Equal(t, `{"first":5}`, got[1].Variables)
}

func TestReadCompilation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	written, err := s.WriteCompilation(ctx, testCompilation("breweries", "SELECT ?a"))
	require.NoError(t, err)

	got, err := s.ReadCompilation(ctx, written.ID)
	require.NoError(t, err)
	assert.Equal(t, written, got)

	_, err = s.ReadCompilation(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, ErrNotFound, errors.Cause(err))
}

func TestFindByRequestHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, field := range []string{"breweries", "beers", "breweries"} {
		_, err := s.WriteCompilation(ctx, testCompilation(field, "SELECT ?"+field))
		require.NoError(t, err)
	}

	got, err := s.FindByRequestHash(ctx, "req-breweries")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0].Seq, got[1].Seq)

	none, err := s.FindByRequestHash(ctx, "req-none")
	require.NoError(t, err)
	assert.Empty(t, none)
}
