package event

import (
	"sort"
	"sync"
	"time"
)

// DeadLetter records an event whose handler returned an error.
type DeadLetter struct {
	// Event is the original event that failed delivery.
	Event *Event `json:"event"`

	// Err is the most recent handler error.
	Err error `json:"-"`

	// ErrorMessage mirrors Err for serialization.
	ErrorMessage string `json:"error_message"`

	// FailedAt is when the first failure was recorded.
	FailedAt time.Time `json:"failed_at"`

	// RetryCount is the number of failed retries after the first failure.
	RetryCount int `json:"retry_count"`

	// LastRetry is when the entry last failed again, if ever.
	LastRetry *time.Time `json:"last_retry,omitempty"`
}

// DeadLetterConfig configures the dead letter store.
type DeadLetterConfig struct {
	// MaxSize limits stored entries; oldest entries (by FailedAt) are
	// evicted once the store grows past it.
	// Default: 1000
	MaxSize int

	// MaxRetries caps Retry attempts per event.
	// Default: 3
	MaxRetries int

	// OnAdd is called whenever a failure is recorded.
	OnAdd func(*DeadLetter)
}

// DefaultDeadLetterConfig provides reasonable defaults.
var DefaultDeadLetterConfig = DeadLetterConfig{
	MaxSize:    1000,
	MaxRetries: 3,
}

// DeadLetterStore is a bounded, in-memory store of failed events keyed by
// event ID. Failures never crash the dispatch loop and never silently
// vanish: they stay inspectable and selectively replayable here.
type DeadLetterStore struct {
	mu      sync.RWMutex
	entries map[string]*DeadLetter
	cfg     DeadLetterConfig
}

// NewDeadLetterStore creates a dead letter store.
func NewDeadLetterStore(cfg DeadLetterConfig) *DeadLetterStore {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultDeadLetterConfig.MaxSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultDeadLetterConfig.MaxRetries
	}
	return &DeadLetterStore{
		entries: make(map[string]*DeadLetter),
		cfg:     cfg,
	}
}

// Add records a handler failure. A repeated failure of the same event ID
// increments RetryCount and replaces the error instead of duplicating the
// entry.
func (s *DeadLetterStore) Add(evt *Event, err error) {
	s.mu.Lock()

	var entry *DeadLetter
	if existing, ok := s.entries[evt.ID]; ok {
		now := time.Now()
		existing.RetryCount++
		existing.Err = err
		existing.ErrorMessage = err.Error()
		existing.LastRetry = &now
		entry = existing
	} else {
		entry = &DeadLetter{
			Event:        evt,
			Err:          err,
			ErrorMessage: err.Error(),
			FailedAt:     time.Now(),
		}
		s.entries[evt.ID] = entry
		s.evictLocked()
	}
	onAdd := s.cfg.OnAdd
	s.mu.Unlock()

	if onAdd != nil {
		onAdd(entry)
	}
}

// Retry replays a dead-lettered event through requeue. It returns false
// with no side effect when the ID is unknown or the retry budget is
// exhausted. The entry is NOT removed here: a second failure increments
// the existing record, and a clean redispatch is what acknowledges it.
func (s *DeadLetterStore) Retry(eventID string, requeue func(*Event)) bool {
	s.mu.RLock()
	entry, ok := s.entries[eventID]
	if !ok || entry.RetryCount >= s.cfg.MaxRetries {
		s.mu.RUnlock()
		return false
	}
	evt := entry.Event
	s.mu.RUnlock()

	requeue(evt)
	return true
}

// Acknowledge drops an entry after its event was reprocessed cleanly,
// reporting whether one existed. Without it a retried event would stay
// in the store and keep being replayed.
func (s *DeadLetterStore) Acknowledge(eventID string) bool {
	return s.Remove(eventID)
}

// Remove deletes an entry, reporting whether it existed.
func (s *DeadLetterStore) Remove(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[eventID]
	delete(s.entries, eventID)
	return ok
}

// Get returns the entry for an event ID.
func (s *DeadLetterStore) Get(eventID string) (*DeadLetter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[eventID]
	return entry, ok
}

// All returns every entry, oldest failure first.
func (s *DeadLetterStore) All() []*DeadLetter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*DeadLetter, 0, len(s.entries))
	for _, entry := range s.entries {
		all = append(all, entry)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].FailedAt.Before(all[j].FailedAt)
	})
	return all
}

// Len returns the number of stored entries.
func (s *DeadLetterStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *DeadLetterStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*DeadLetter)
}

// MaxRetries returns the configured retry cap.
func (s *DeadLetterStore) MaxRetries() int {
	return s.cfg.MaxRetries
}

// evictLocked drops the oldest entries (FailedAt ascending) until the
// store is back at its size cap. Must hold the write lock.
func (s *DeadLetterStore) evictLocked() {
	if len(s.entries) <= s.cfg.MaxSize {
		return
	}

	ordered := make([]*DeadLetter, 0, len(s.entries))
	for _, entry := range s.entries {
		ordered = append(ordered, entry)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].FailedAt.Before(ordered[j].FailedAt)
	})

	for i := 0; len(s.entries) > s.cfg.MaxSize; i++ {
		delete(s.entries, ordered[i].Event.ID)
	}
}
