package events

import "time"

// Event is the contract for everything published on the bus.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is a ready-made implementation for events built ad hoc.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event codes emitted by this service.
const (
	TypeTurnCompleted = "TURN_COMPLETED"
	TypeTurnFailed    = "TURN_FAILED"
)

// NewTurnCompleted wraps one finished tutoring turn for the bus.
func NewTurnCompleted(payload map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       TypeTurnCompleted,
		Data:       payload,
		OccurredAt: time.Now().UTC(),
	}
}

// NewTurnFailed wraps one failed tutoring turn for the bus.
func NewTurnFailed(payload map[string]interface{}) BaseEvent {
	return BaseEvent{
		Type:       TypeTurnFailed,
		Data:       payload,
		OccurredAt: time.Now().UTC(),
	}
}
