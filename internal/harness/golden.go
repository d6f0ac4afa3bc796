package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is the directory, next to the scenario files, holding golden
// files.
const GoldenDir = "golden"

// GoldenFile returns the golden file of a scenario:
// golden/{scenario.Name}.golden next to the scenario file, or under
// testdata/golden when the scenario was not loaded from a file.
func GoldenFile(scenario *Scenario) string {
	return filepath.Join(goldenDir(scenario), scenario.Name+".golden")
}

func goldenDir(scenario *Scenario) string {
	if scenario.path == "" {
		return filepath.Join("testdata", GoldenDir)
	}
	return filepath.Join(filepath.Dir(scenario.path), GoldenDir)
}

// RunWithGolden executes a scenario and compares its compiled queries
// against the scenario's golden file.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot be set up. A failed compilation is
// compared too: its golden file holds the error code and message.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario, result)
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir(goldenDir(scenario)),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, goldenBytes(result))
}

// CompareGolden reports whether result matches the scenario's golden file.
// With update set the golden file is rewritten and the comparison passes.
func CompareGolden(scenario *Scenario, result *Result, update bool) (bool, error) {
	path := GoldenFile(scenario)
	current := goldenBytes(result)

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return false, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, current, 0644); err != nil {
			return false, fmt.Errorf("failed to write golden file: %w", err)
		}
		return true, nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(want, current), nil
}

func goldenBytes(result *Result) []byte {
	if result.CompileError != "" {
		return []byte("error " + result.ErrorCode + "\n" + result.CompileError + "\n")
	}
	return []byte(result.Text())
}
