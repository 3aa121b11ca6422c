package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animlist/internal/testutil"
)

func TestManager_Lifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	timer := testutil.NewManualTimer(time.Unix(0, 0))
	m := NewManager[string](testutil.NewSequentialIDs("s"),
		WithMetrics(metrics), WithTimer(timer), WithLogger(discard))
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	first, err := m.Create(ctx)
	require.NoError(t, err)
	second, err := m.Create(ctx)
	require.NoError(t, err)

	// Sessions outlive the context they were created with.
	cancel()

	assert.Equal(t, "s-1", first.ID())
	assert.Equal(t, "s-2", second.ID())
	assert.Equal(t, []string{"s-1", "s-2"}, m.IDs())
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.ActiveSessions))

	require.NoError(t, first.Submit(testutil.Items("a")))
	syncCtx, syncCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer syncCancel()
	require.NoError(t, first.Sync(syncCtx))

	got, err := m.Get("s-1")
	require.NoError(t, err)
	f, ok := got.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"a:INITIAL"}, f.States())

	_, ok = second.Current()
	assert.False(t, ok, "sessions share nothing")

	require.NoError(t, m.Destroy("s-1"))
	assert.ErrorIs(t, m.Destroy("s-1"), ErrSessionNotFound)
	_, err = m.Get("s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, first.Submit(testutil.Items("b")), ErrSessionClosed)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ActiveSessions))
}

func TestManager_Close(t *testing.T) {
	m := NewManager[string](NewFixedGenerator("x"), WithLogger(discard))

	s, err := m.Create(context.Background())
	require.NoError(t, err)

	m.Close()

	select {
	case <-s.Done():
	default:
		t.Fatal("Close should stop every session")
	}
	assert.Equal(t, 0, m.Len())

	_, err = m.Create(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestManager_DuplicateID(t *testing.T) {
	m := NewManager[string](NewFixedGenerator("dup", "dup"), WithLogger(discard))
	defer m.Close()

	_, err := m.Create(context.Background())
	require.NoError(t, err)
	_, err = m.Create(context.Background())
	assert.Error(t, err)
}

func TestMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	assert.Panics(t, func() { NewMetrics(reg) }, "registering twice on one registry panics")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "animlist_submissions_total")
	assert.Contains(t, names, "animlist_active_sessions")
}
