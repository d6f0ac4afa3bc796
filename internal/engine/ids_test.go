package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("c-1", "c-2")

	assert.Equal(t, "c-1", gen.Generate())
	assert.Equal(t, "c-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })

	assert.Panics(t, func() { NewFixedGenerator().Generate() })
}

func TestEngine_RecordsGeneratedIDs(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, WithStore(s), WithIDGenerator(NewFixedGenerator("c-1", "c-2", "c-3")))
	ctx := context.Background()

	results, err := e.Compile(ctx, Input{
		Query: `{ brewery(identifier: "1") { name } breweries { name } }`,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c-1", results[0].ID)
	assert.Equal(t, "c-2", results[1].ID)

	results, err = e.Compile(ctx, Input{Query: `{ breweries { name } }`})
	require.NoError(t, err)
	assert.Equal(t, "c-3", results[0].ID)
	assert.Equal(t, int64(3), results[0].Seq)

	got, err := s.ReadCompilation(ctx, "c-2")
	require.NoError(t, err)
	assert.Equal(t, "breweries", got.Field)
}
