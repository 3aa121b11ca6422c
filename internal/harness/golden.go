package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/animlist/internal/ir"
)

// Snapshot returns the canonical JSON form of a result's trace: scenario,
// session, every frame and the final settled keys. Errors and timing are
// left out, so the snapshot only changes when the frames do.
func Snapshot(result *Result) ([]byte, error) {
	frames := make([]any, len(result.Trace))
	for i, f := range result.Trace {
		frames[i] = map[string]any{
			"seq":         f.Seq,
			"kind":        string(f.Kind),
			"states":      f.States,
			"duration_ms": f.Duration,
			"digest":      f.Digest,
		}
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": result.Scenario,
		"session":  result.Session,
		"trace":    frames,
		"settled":  result.Settled,
	})
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := New().Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenPath returns the golden file of a scenario under dir.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// CompareGolden reports whether a result's snapshot equals the file at path.
func CompareGolden(path string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading golden file: %w", err)
	}
	got, err := Snapshot(result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(bytes.TrimSpace(want), got), nil
}

// WriteGolden writes a result's snapshot to path.
func WriteGolden(path string, result *Result) error {
	data, err := Snapshot(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
