package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeql/internal/graphql"
	"github.com/roach88/shapeql/internal/shape"
	"github.com/roach88/shapeql/internal/testutil"
)

func TestReplay_NoStore(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Replay(context.Background())
	assert.True(t, errors.Is(err, ErrNoStore))
}

func TestReplay_Unchanged(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithStore(s))
	ctx := context.Background()

	_, err := e.Compile(ctx, Input{
		Query:     breweriesQuery,
		Variables: map[string]any{"first": float64(5), "city": "Utrecht"},
	})
	require.NoError(t, err)
	_, err = e.Compile(ctx, Input{
		Query:    `{ brewery(identifier: "1") { name beers { name } } }`,
		Subjects: []string{"https://example.org/id/brewery/1"},
	})
	require.NoError(t, err)

	report, err := e.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Matched)
	assert.True(t, report.Clean())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "replay does not write")
}

func TestReplay_DetectsDrift(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithStore(s))
	ctx := context.Background()

	_, err := e.Compile(ctx, Input{Query: `{ breweries { name } }`})
	require.NoError(t, err)

	// Same schema, but Brewery.name now maps to rdfs:label.
	shapes := testutil.BreweryShapes()
	for _, sh := range shapes {
		if sh.Name == "Brewery" {
			sh.Properties["name"].Path = shape.PredicatePath{IRI: testutil.RDFS + "label"}
		}
	}
	registry, err := shape.NewRegistry(shapes...)
	require.NoError(t, err)

	drifted, err := New(e.Schema(), registry, WithStore(s))
	require.NoError(t, err)

	report, err := drifted.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 0, report.Matched)
	require.Len(t, report.Drifted, 1)
	assert.Contains(t, report.Drifted[0].Query, testutil.RDFS+"label")
}

func TestReplay_ReportsFailures(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithStore(s))
	ctx := context.Background()

	_, err := e.Compile(ctx, Input{Query: `{ beers { name style } }`})
	require.NoError(t, err)

	// Beer.style disappears from the schema.
	schema, err := graphql.LoadSchemaString("brewery.graphql",
		replaceOnce(t, testutil.BrewerySDL, "  style: String\n  brewery: Brewery!", "  brewery: Brewery!"))
	require.NoError(t, err)

	changed, err := New(schema, testutil.BreweryRegistry(), WithStore(s))
	require.NoError(t, err)

	report, err := changed.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "style")
}

func replaceOnce(t *testing.T, s, old, new string) string {
	t.Helper()
	require.Equal(t, 1, strings.Count(s, old), "fixture text %q", old)
	return strings.Replace(s, old, new, 1)
}
