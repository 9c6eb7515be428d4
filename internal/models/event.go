package models

import (
	"time"
)

// EventType identifies a published application event
type EventType string

// Events published on the internal bus and streamed to operators
const (
	EventRunStarted         EventType = "run_started"
	EventSourceCompleted    EventType = "source_completed"
	EventRunCompleted       EventType = "run_completed"
	EventJobsDeduplicated   EventType = "jobs_deduplicated"
	EventComplianceDisabled EventType = "compliance_disabled"
	EventCircuitOpened      EventType = "circuit_opened"
	EventSweepCompleted     EventType = "sweep_completed"
)

// Event is a point-in-time application occurrence with a free-form payload
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// NewEvent creates a stamped event
func NewEvent(eventType EventType, payload map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
