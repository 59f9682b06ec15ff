package event

import "container/heap"

// queue is a priority queue over pending events. Dequeue returns the
// highest-priority, earliest-enqueued event; within a priority tier the
// insertion order is preserved via a monotonic sequence number.
//
// The queue is not safe for concurrent use; the bus serializes access
// under its own mutex.
type queue struct {
	items eventHeap
	seq   uint64
}

type queueItem struct {
	evt *Event
	seq uint64
}

type eventHeap []queueItem

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].evt.Priority != h[j].evt.Priority {
		return h[i].evt.Priority < h[j].evt.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queueItem))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queueItem{}
	*h = old[:n-1]
	return item
}

func newQueue() *queue {
	return &queue{}
}

// Enqueue inserts an event. It always succeeds; the queue is bounded only
// by process memory.
func (q *queue) Enqueue(evt *Event) {
	q.seq++
	heap.Push(&q.items, queueItem{evt: evt, seq: q.seq})
}

// Dequeue removes and returns the next event, or nil when empty.
func (q *queue) Dequeue() *Event {
	if q.items.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.items).(queueItem).evt
}

// Len returns the number of pending events.
func (q *queue) Len() int {
	return q.items.Len()
}

// Empty reports whether no events are pending.
func (q *queue) Empty() bool {
	return q.items.Len() == 0
}
