package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeql/internal/canon"
	"github.com/roach88/shapeql/internal/compileerr"
	"github.com/roach88/shapeql/internal/graphql"
	"github.com/roach88/shapeql/internal/querysparql"
	"github.com/roach88/shapeql/internal/store"
	"github.com/roach88/shapeql/internal/testutil"
)

const breweriesQuery = `query Breweries($city: String, $first: Int) {
  breweries(city: $city, first: $first) {
    name
    address { city }
  }
}`

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	schema, err := graphql.LoadSchemaString("brewery.graphql", testutil.BrewerySDL)
	require.NoError(t, err)
	e, err := New(schema, testutil.BreweryRegistry(), opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_New(t *testing.T) {
	e := newTestEngine(t)

	assert.NotNil(t, e.compiler)
	assert.NotNil(t, e.logger)
	assert.Nil(t, e.store)
	assert.Equal(t, 4, e.Registry().Len())
	assert.Empty(t, e.Validate())
}

func TestEngine_NewRejectsBadCompilerOptions(t *testing.T) {
	schema, err := graphql.LoadSchemaString("brewery.graphql", testutil.BrewerySDL)
	require.NoError(t, err)

	_, err = New(schema, testutil.BreweryRegistry(),
		WithCompilerOptions(querysparql.WithRootVariable("not a var")))
	assert.Error(t, err)
}

func TestEngine_CompileSelect(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Compile(context.Background(), Input{
		Query:     breweriesQuery,
		Variables: map[string]any{"city": "Utrecht", "first": float64(3)},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "breweries", r.Field)
	assert.Equal(t, store.ModeSelect, r.Mode)
	assert.Empty(t, r.ID, "nothing recorded without a store")
	assert.Contains(t, r.Query, "SELECT DISTINCT ?s\n")
	assert.Contains(t, r.Query, "\"Utrecht\"")
	assert.Contains(t, r.Query, "LIMIT 3\n")
	assert.Equal(t, canon.QueryHash(r.Query), r.QueryHash)
	assert.Len(t, r.RequestHash, 64)
}

func TestEngine_CompileConstruct(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Compile(context.Background(), Input{
		Query:    `{ breweries { name } }`,
		Subjects: []string{"https://example.org/id/brewery/1"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, store.ModeConstruct, results[0].Mode)
	assert.Contains(t, results[0].Query, "CONSTRUCT {")
	assert.Contains(t, results[0].Query, "<https://example.org/id/brewery/1>")
}

func TestEngine_CompileMultipleRootFields(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Compile(context.Background(), Input{
		Query: `{
  beers(style: "ipa") { name }
  breweries { name }
}`,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "beers", results[0].Field)
	assert.Equal(t, "breweries", results[1].Field)
	assert.NotEqual(t, results[0].RequestHash, results[1].RequestHash)
}

func TestEngine_CompileDeterministic(t *testing.T) {
	e := newTestEngine(t)
	in := Input{
		Query:     breweriesQuery,
		Variables: map[string]any{"city": "Utrecht"},
	}

	first, err := e.Compile(context.Background(), in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := e.Compile(context.Background(), in)
			assert.NoError(t, err)
			assert.Equal(t, first, again)
		}()
	}
	wg.Wait()
}

func TestEngine_CompileErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t.Run("no sparql field", func(t *testing.T) {
		_, err := e.Compile(ctx, Input{Query: `{ __typename }`})
		assert.True(t, errors.Is(err, ErrNoRequests))
	})

	t.Run("constraint", func(t *testing.T) {
		_, err := e.Compile(ctx, Input{Query: `{ breweries(first: 500) { name } }`})
		require.Error(t, err)
		assert.Equal(t, compileerr.CodeArgConstraint, compileerr.Code(err))
	})

	t.Run("invalid subject", func(t *testing.T) {
		_, err := e.Compile(ctx, Input{
			Query:    `{ breweries { name } }`,
			Subjects: []string{"not an iri"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "breweries: ")
		assert.Equal(t, compileerr.CodeInvalidValue, compileerr.Code(err))
	})

	t.Run("syntax", func(t *testing.T) {
		_, err := e.Compile(ctx, Input{Query: `{ breweries { name }`})
		assert.Error(t, err)
	})
}

func TestEngine_CompileRecords(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithStore(s))
	ctx := context.Background()

	results, err := e.Compile(ctx, Input{
		Query:     breweriesQuery,
		Variables: map[string]any{"first": float64(5), "city": "Utrecht"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].ID)
	assert.Equal(t, int64(1), results[0].Seq)

	got, err := s.ReadCompilation(ctx, results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Breweries", got.OperationName)
	assert.Equal(t, `{"city":"Utrecht","first":5}`, got.Variables)
	assert.Equal(t, results[0].Query, got.Query)
	assert.Equal(t, results[0].QueryHash, got.QueryHash)
	assert.Equal(t, store.ModeSelect, got.Mode)
}

func TestEngine_FailedCompileRecordsNothing(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithStore(s))
	ctx := context.Background()

	_, err := e.Compile(ctx, Input{Query: `{
  breweries { name }
  beers(style: "porter") { name }
}`})
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
