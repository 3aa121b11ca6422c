package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/animlist/internal/testutil"
)

func TestInbox_DrainInOrder(t *testing.T) {
	q := newInbox[string]()

	assert.Nil(t, q.Drain())

	assert.True(t, q.Enqueue(request[string]{items: testutil.Items("a")}))
	assert.True(t, q.Enqueue(request[string]{items: testutil.Items("b")}))
	assert.Equal(t, 2, q.Len())

	batch := q.Drain()
	if assert.Len(t, batch, 2) {
		assert.Equal(t, "a", batch[0].items[0].Key)
		assert.Equal(t, "b", batch[1].items[0].Key)
	}
	assert.Equal(t, 0, q.Len())
}

func TestInbox_SignalCoalesces(t *testing.T) {
	q := newInbox[string]()
	q.Enqueue(request[string]{})
	q.Enqueue(request[string]{})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestInbox_Close(t *testing.T) {
	q := newInbox[string]()
	q.Enqueue(request[string]{})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(request[string]{}), "closed inbox rejects requests")
	assert.False(t, q.Done(), "queued requests are still pending")

	q.Drain()
	assert.True(t, q.Done())

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed inbox should wake waiters")
	}
}

func TestInbox_ConcurrentEnqueue(t *testing.T) {
	q := newInbox[string]()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(request[string]{})
			}
		}()
	}
	wg.Wait()

	total := 0
	for batch := q.Drain(); batch != nil; batch = q.Drain() {
		total += len(batch)
	}
	assert.Equal(t, 800, total)
}
