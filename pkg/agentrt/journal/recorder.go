package journal

import (
	"encoding/json"
	"fmt"

	"github.com/agentrt/agentrt/pkg/agentrt/event"
)

// Recorder adapts a Store to the bus's journal hook, converting dispatched
// events into journal entries. Payloads are JSON-encoded; an unencodable
// payload journals the entry without payload bytes rather than failing.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder over a store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Append implements event.Journal.
func (r *Recorder) Append(evt *event.Event) error {
	entry := Entry{
		EventID:   evt.ID,
		EventType: evt.Type,
		Source:    evt.Source,
		Priority:  evt.Priority.String(),
		Timestamp: evt.Timestamp,
	}
	if evt.Payload != nil {
		if data, err := json.Marshal(evt.Payload); err == nil {
			entry.Payload = data
		}
	}
	if err := r.store.Append(entry); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// Store returns the underlying store for queries.
func (r *Recorder) Store() Store {
	return r.store
}

var _ event.Journal = (*Recorder)(nil)
