package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeql/internal/store"
)

func compileArgs(extra ...string) []string {
	return append([]string{"compile", "--schema", testSchema, "--shapes", testShapes}, extra...)
}

func TestCompileSelect(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.graphql", `{ brewery(identifier: "42") { name } }`)

	out, err := execute(t, compileArgs(query)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SELECT ?s\n"), out)
	assert.Contains(t, out, "VALUES ?s { <https://example.org/id/brewery/42> }")
}

func TestCompileJSON(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.graphql",
		`query Two { brewery(identifier: "42") { name } breweries(city: "Utrecht") { name } }`)

	out, err := execute(t, compileArgs(query, "--format", "json", "--op", "Two")...)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Two", resp.Data.Operation)
	require.Len(t, resp.Data.Queries, 2)
	assert.Equal(t, "brewery", resp.Data.Queries[0].Field)
	assert.Equal(t, "breweries", resp.Data.Queries[1].Field)
	for _, q := range resp.Data.Queries {
		assert.Equal(t, store.ModeSelect, q.Mode)
		assert.NotEmpty(t, q.QueryHash)
		assert.Empty(t, q.ID)
	}
}

func TestCompileMultipleFieldsText(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.graphql",
		`{ brewery(identifier: "42") { name } breweries { name } }`)

	out, err := execute(t, compileArgs(query)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# brewery\n"), out)
	assert.Contains(t, out, "\n# breweries\n")
}

func TestCompileVariables(t *testing.T) {
	dir := t.TempDir()
	query := writeFile(t, dir, "q.graphql",
		`query($city: String) { breweries(city: $city) { name } }`)
	vars := writeFile(t, dir, "vars.json", `{"city": "Utrecht"}`)

	out, err := execute(t, compileArgs(query, "--vars", vars)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"Utrecht"`)
}

func TestCompileConstruct(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.graphql", `{ breweries { name } }`)

	out, err := execute(t, compileArgs(query,
		"--construct", "https://example.org/id/brewery/1,https://example.org/id/brewery/2")...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "CONSTRUCT"), out)
	assert.Contains(t, out, "<https://example.org/id/brewery/1>")
	assert.Contains(t, out, "<https://example.org/id/brewery/2>")
}

func TestCompileRecords(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shapeql.db")
	query := writeFile(t, dir, "q.graphql", `{ brewery(identifier: "42") { name } }`)

	_, err := execute(t, compileArgs(query, "--db", db)...)
	require.NoError(t, err)
	_, err = execute(t, compileArgs(query, "--db", db)...)
	require.NoError(t, err)

	out, err := execute(t, "replay", "--db", db, "--list", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []store.Compilation `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, int64(2), resp.Data[1].Seq)
	assert.Equal(t, resp.Data[0].QueryHash, resp.Data[1].QueryHash)
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		query    string
		args     []string
		wantCode string
		wantExit int
	}{
		{
			name:     "constraint violated",
			query:    `{ breweries(first: 500) { name } }`,
			wantCode: "E213",
			wantExit: ExitFailure,
		},
		{
			name:     "syntax error",
			query:    `{ breweries { name }`,
			wantCode: ErrCodeInvalidQuery,
			wantExit: ExitFailure,
		},
		{
			name:     "missing shapes",
			query:    `{ breweries { name } }`,
			args:     []string{"--shapes", filepath.Join(dir, "missing")},
			wantCode: "E005",
			wantExit: ExitCommandError,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := writeFile(t, dir, tt.name+".graphql", tt.query)
			args := append(compileArgs(query, "--format", "json"), tt.args...)

			out, err := execute(t, args...)
			require.Error(t, err, "case %d", i)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCompileMissingQueryFile(t *testing.T) {
	_, err := execute(t, compileArgs(filepath.Join(t.TempDir(), "nope.graphql"))...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileMissingSchemaFlag(t *testing.T) {
	query := writeFile(t, t.TempDir(), "q.graphql", `{ breweries { name } }`)

	_, err := execute(t, "compile", "--shapes", testShapes, query)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
