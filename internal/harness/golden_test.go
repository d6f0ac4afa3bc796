package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"brewery_by_id", "construct_breweries"} {
		t.Run(name, func(t *testing.T) {
			sc := loadTestScenario(t, name)
			require.True(t, sc.Golden)

			result, err := RunWithGolden(t, sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestGoldenFile(t *testing.T) {
	sc := loadTestScenario(t, "brewery_by_id")
	assert.Equal(t, filepath.Join(scenarioDir, "golden", "brewery_by_id.golden"), GoldenFile(sc))

	assert.Equal(t, filepath.Join("testdata", "golden", "x.golden"), GoldenFile(&Scenario{Name: "x"}))
}

func TestCompareGolden(t *testing.T) {
	sc := loadTestScenario(t, "brewery_by_id")
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	match, err := CompareGolden(sc, result, false)
	require.NoError(t, err)
	assert.True(t, match)

	result.Queries[0].Query += "# changed\n"
	match, err = CompareGolden(sc, result, false)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestCompareGolden_Update(t *testing.T) {
	dir := t.TempDir()
	sc := &Scenario{Name: "fresh", path: filepath.Join(dir, "fresh.yaml")}

	_, err := CompareGolden(sc, compiled("SELECT ?s\n"), false)
	assert.ErrorContains(t, err, "failed to read golden file")

	match, err := CompareGolden(sc, compiled("SELECT ?s\n"), true)
	require.NoError(t, err)
	assert.True(t, match)

	data, err := os.ReadFile(filepath.Join(dir, "golden", "fresh.golden"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT ?s\n", string(data))

	match, err = CompareGolden(sc, compiled("SELECT ?s\n"), false)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestGoldenBytes(t *testing.T) {
	assert.Equal(t, "SELECT ?s\n", string(goldenBytes(compiled("SELECT ?s\n"))))
	assert.Equal(t, "error E213\nfirst: too large\n",
		string(goldenBytes(failed("E213", "first: too large"))))
}
