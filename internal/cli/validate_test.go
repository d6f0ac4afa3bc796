package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValid(t *testing.T) {
	out, err := execute(t, "validate", "--schema", testSchema, "--shapes", testShapes)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema and")
	assert.Contains(t, out, "shape(s) valid")
}

func TestValidateValidJSON(t *testing.T) {
	out, err := execute(t, "validate", "--schema", testSchema, "--shapes", testShapes, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Positive(t, resp.Data.Shapes)
}

func TestValidateSchemaMismatch(t *testing.T) {
	sdl, err := os.ReadFile(testSchema)
	require.NoError(t, err)
	require.Contains(t, string(sdl), "type Brewery {")

	// A field with no property shape.
	changed := strings.Replace(string(sdl), "type Brewery {", "type Brewery {\n  rating: Float", 1)
	schema := writeFile(t, t.TempDir(), "schema.graphql", changed)

	out, err := execute(t, "validate", "--schema", schema, "--shapes", testShapes)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E201")
	assert.Contains(t, out, "Brewery.rating")
}

func TestValidateShapeErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `shape: Brewery: {
	targetClass: ["https://example.org/beer#Brewery"]
	property: name: {path: 42}
}
`)

	out, err := execute(t, "validate", "--schema", testSchema, "--shapes", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "E101", resp.Data.Errors[0].Code)
}

func TestValidateMissingInputs(t *testing.T) {
	out, err := execute(t, "validate", "--schema", testSchema)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no shapes")
}

func TestValidateMissingSchemaFile(t *testing.T) {
	_, err := execute(t, "validate", "--schema", filepath.Join(t.TempDir(), "none.graphql"), "--shapes", testShapes)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
