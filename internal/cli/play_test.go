package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animlist/internal/harness"
)

// playSwap plays the swap scenario on a manual clock into a fresh journal.
func playSwap(t *testing.T) (journal, output string) {
	t.Helper()
	journal = filepath.Join(t.TempDir(), "frames.db")

	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(scenariosDir, "swap.yaml"), "--instant", "--journal", journal})
	require.NoError(t, cmd.Execute(), buf.String())
	return journal, buf.String()
}

func TestPlayCommandPrintsFrames(t *testing.T) {
	_, out := playSwap(t)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "#1   transitional a:INITIAL b:INITIAL", lines[0])
	assert.Equal(t, "#2   settled      a:IDLE b:IDLE", lines[1])
	assert.Equal(t, "#3   transitional b:IDLE a-temp:REMOVED a:INSERTED", lines[2])
	assert.Equal(t, "#4   settled      b:IDLE a:IDLE", lines[3])
	assert.Equal(t, "✓ swap (4 frames)", lines[4])
}

func TestPlayCommandJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(scenariosDir, "revert.yaml"), "--instant"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string         `json:"status"`
		Data   harness.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "revert", resp.Data.Scenario)
	assert.NotEmpty(t, resp.Data.Trace)
}

func TestPlayCommandFailure(t *testing.T) {
	path := writeFile(t, "wrong.yaml", "name: wrong\nsteps:\n  - submit: [a]\n  - expect:\n      frames: 3\n")

	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--instant"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ wrong")
}

func TestPlayCommandMissingScenario(t *testing.T) {
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommandListsSessions(t *testing.T) {
	journal, _ := playSwap(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", journal})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "swap  frames=4 last_seq=4 duration=400ms digest=473b02e11cb4")
}

func TestTraceCommandSessionFrames(t *testing.T) {
	journal, played := playSwap(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"swap", "--journal", journal, "--verify"})
	require.NoError(t, cmd.Execute())

	// The journal replays exactly what was printed live.
	lines := strings.Split(strings.TrimSpace(played), "\n")
	assert.Equal(t, strings.Join(lines[:4], "\n")+"\n", buf.String())
}

func TestTraceCommandDigestJSON(t *testing.T) {
	journal, _ := playSwap(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", journal,
		"--digest", "aa1edb87e1393b43017b6fc8f1ac1bf40c60750e321eb38d3b71c1c033599b5f"})
	require.NoError(t, cmd.Execute())

	var line FrameLine
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "swap", line.Session)
	assert.Equal(t, int64(3), line.Seq)
	assert.Equal(t, []string{"b:IDLE", "a-temp:REMOVED", "a:INSERTED"}, line.States)
	assert.Equal(t, int64(400), line.DurationMS)
}

func TestTraceCommandNotFound(t *testing.T) {
	journal, _ := playSwap(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"nope", "--journal", journal})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [NOT_FOUND]")
}

func TestTraceCommandRequiresJournal(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommandEmptyJournal(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", filepath.Join(t.TempDir(), "empty.db")})
	require.NoError(t, cmd.Execute())
	assert.JSONEq(t, `{"status":"ok","data":[]}`, buf.String())
}
