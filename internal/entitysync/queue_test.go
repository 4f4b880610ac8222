package entitysync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateQueue_FIFO(t *testing.T) {
	q := newUpdateQueue()

	for _, c := range []string{"Player", "Game", "GameState"} {
		require.True(t, q.Enqueue(Update{Component: c}))
	}

	for _, want := range []string{"Player", "Game", "GameState"} {
		u, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, u.Component)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestUpdateQueue_CloseRejectsEnqueue(t *testing.T) {
	q := newUpdateQueue()
	q.Enqueue(Update{Component: "Game"})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Update{Component: "Player"}))
	assert.True(t, q.isClosed())
	assert.Equal(t, 1, q.Len(), "queued updates survive close")

	_, open := <-q.Wait()
	assert.True(t, open, "pending signal is delivered before close")
	_, open = <-q.Wait()
	assert.False(t, open, "signal channel is closed")
}

func TestUpdateQueue_SignalCoalesces(t *testing.T) {
	q := newUpdateQueue()
	q.Enqueue(Update{Component: "Game"})
	q.Enqueue(Update{Component: "Game"})

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("second signal should have been coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(43), c.Next())
	assert.Equal(t, int64(43), c.Current())
}
