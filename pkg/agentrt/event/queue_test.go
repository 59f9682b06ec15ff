package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePriorityOrder(t *testing.T) {
	q := newQueue()

	q.Enqueue(New("low", nil, WithPriority(PriorityLow)))
	q.Enqueue(New("normal", nil))
	q.Enqueue(New("critical", nil, WithPriority(PriorityCritical)))
	q.Enqueue(New("high", nil, WithPriority(PriorityHigh)))

	var got []string
	for !q.Empty() {
		got = append(got, q.Dequeue().Type)
	}
	assert.Equal(t, []string{"critical", "high", "normal", "low"}, got)
}

func TestQueueFIFOWithinTier(t *testing.T) {
	q := newQueue()

	q.Enqueue(New("first", nil))
	q.Enqueue(New("second", nil))
	q.Enqueue(New("third", nil))

	assert.Equal(t, "first", q.Dequeue().Type)
	assert.Equal(t, "second", q.Dequeue().Type)
	assert.Equal(t, "third", q.Dequeue().Type)
}

func TestQueueHigherPriorityCutsAhead(t *testing.T) {
	q := newQueue()

	q.Enqueue(New("queued-normal", nil))
	require.Equal(t, "queued-normal", q.Dequeue().Type)

	q.Enqueue(New("later-normal", nil))
	q.Enqueue(New("late-critical", nil, WithPriority(PriorityCritical)))

	// The critical event overtakes the normal one that was enqueued
	// earlier but not yet dequeued.
	assert.Equal(t, "late-critical", q.Dequeue().Type)
	assert.Equal(t, "later-normal", q.Dequeue().Type)
}

func TestQueueEmpty(t *testing.T) {
	q := newQueue()

	assert.True(t, q.Empty())
	assert.Zero(t, q.Len())
	assert.Nil(t, q.Dequeue())

	q.Enqueue(New("x", nil))
	assert.False(t, q.Empty())
	assert.Equal(t, 1, q.Len())
}
