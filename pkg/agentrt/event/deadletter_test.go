package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadLetterAdd(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{})

	evt := New("x", nil)
	store.Add(evt, errors.New("boom"))

	entry, ok := store.Get(evt.ID)
	require.True(t, ok)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, "boom", entry.ErrorMessage)
	assert.Nil(t, entry.LastRetry)
}

func TestDeadLetterRepeatedFailureIncrements(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{})

	evt := New("x", nil)
	store.Add(evt, errors.New("first"))
	store.Add(evt, errors.New("second"))

	entry, ok := store.Get(evt.ID)
	require.True(t, ok)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Equal(t, "second", entry.ErrorMessage)
	assert.NotNil(t, entry.LastRetry)
	assert.Equal(t, 1, store.Len(), "repeated failure must not duplicate the entry")
}

func TestDeadLetterRetry(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{MaxRetries: 3})

	evt := New("x", nil)
	store.Add(evt, errors.New("boom"))

	var requeued *Event
	ok := store.Retry(evt.ID, func(e *Event) { requeued = e })
	require.True(t, ok)
	assert.Equal(t, evt.ID, requeued.ID, "retry requeues the original event")

	// The entry stays so a second failure increments instead of duplicating.
	_, present := store.Get(evt.ID)
	assert.True(t, present)
}

func TestDeadLetterAcknowledge(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{MaxRetries: 3})

	evt := New("x", nil)
	store.Add(evt, errors.New("boom"))

	require.True(t, store.Acknowledge(evt.ID))
	_, present := store.Get(evt.ID)
	assert.False(t, present, "acknowledged entry must leave the store")

	assert.False(t, store.Acknowledge(evt.ID))
	assert.False(t, store.Retry(evt.ID, func(*Event) {}),
		"acknowledged entry must not be replayable")
}

func TestDeadLetterRetryUnknownID(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{})

	called := false
	assert.False(t, store.Retry("nope", func(*Event) { called = true }))
	assert.False(t, called)
}

func TestDeadLetterRetryExhaustion(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{MaxRetries: 3})

	evt := New("x", nil)
	store.Add(evt, errors.New("boom"))

	// Simulate three failed retries.
	for i := 0; i < 3; i++ {
		require.True(t, store.Retry(evt.ID, func(*Event) {}))
		store.Add(evt, errors.New("boom again"))
	}

	entry, _ := store.Get(evt.ID)
	require.Equal(t, 3, entry.RetryCount)

	called := false
	assert.False(t, store.Retry(evt.ID, func(*Event) { called = true }),
		"retry must be refused once RetryCount reaches MaxRetries")
	assert.False(t, called)
}

func TestDeadLetterEviction(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{MaxSize: 3})

	events := make([]*Event, 5)
	for i := range events {
		events[i] = New("x", i)
		store.Add(events[i], errors.New("boom"))
		time.Sleep(time.Millisecond) // distinct FailedAt ordering
	}

	assert.Equal(t, 3, store.Len())

	// Oldest entries were evicted first.
	_, ok := store.Get(events[0].ID)
	assert.False(t, ok)
	_, ok = store.Get(events[1].ID)
	assert.False(t, ok)
	_, ok = store.Get(events[4].ID)
	assert.True(t, ok)
}

func TestDeadLetterAllOrderedByFailure(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{})

	first := New("first", nil)
	second := New("second", nil)
	store.Add(first, errors.New("a"))
	time.Sleep(time.Millisecond)
	store.Add(second, errors.New("b"))

	all := store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Event.Type)
	assert.Equal(t, "second", all[1].Event.Type)
}

func TestDeadLetterRemoveClear(t *testing.T) {
	store := NewDeadLetterStore(DeadLetterConfig{})

	evt := New("x", nil)
	store.Add(evt, errors.New("boom"))

	assert.True(t, store.Remove(evt.ID))
	assert.False(t, store.Remove(evt.ID))

	store.Add(evt, errors.New("boom"))
	store.Clear()
	assert.Zero(t, store.Len())
}
