package event

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Consolidation lifecycle
	ConsolidationStarted  EventType = "consolidation.started"
	ConsolidationApplied  EventType = "consolidation.applied"
	ConsolidationRetry    EventType = "consolidation.retry"
	ConsolidationConflict EventType = "consolidation.conflict"

	// Extraction
	ExtractionFailed EventType = "extraction.failed"

	// User edits
	EditApplied  EventType = "edit.applied"
	EditRejected EventType = "edit.rejected"

	// Session log
	SessionLogged EventType = "session.logged"
)

// Event carries data about a lifecycle occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}
