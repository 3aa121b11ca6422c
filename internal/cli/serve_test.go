package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--journal", filepath.Join(t.TempDir(), "frames.db")})

	require.NoError(t, cmd.ExecuteContext(ctx))
}

func TestServeCommandBadJournal(t *testing.T) {
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", "127.0.0.1:0", "--journal", "/nonexistent/dir/frames.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
