package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnStored is emitted after a turn is admitted and persisted.
	EventTypeTurnStored = "mnemo.turn.stored"

	// EventTypeTurnReabsorbed is emitted after the oldest turn of a session
	// is removed and handed back to the caller.
	EventTypeTurnReabsorbed = "mnemo.turn.reabsorbed"

	// EventTypeSessionDeleted is emitted after a session and its turns are deleted.
	EventTypeSessionDeleted = "mnemo.session.deleted"
)

// Event is a transport-neutral memory lifecycle event.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	SessionID     string    `json:"session_id"`
	Turn          *TurnMeta `json:"turn,omitempty"`
}

// TurnMeta describes the stored turn an event refers to. The plaintext is
// never included.
type TurnMeta struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Timestamp      time.Time `json:"timestamp"`
	TokenCount     int       `json:"token_count"`
	PlaintextBytes int       `json:"plaintext_bytes"`
	PayloadBytes   int       `json:"payload_bytes"`
	ContentHash    string    `json:"content_hash,omitempty"`
}

// NewEvent builds an event of the given type with a fresh id.
func NewEvent(eventType, sessionID string, turn *TurnMeta, now time.Time) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now.UTC(),
		SessionID:     sessionID,
		Turn:          turn,
	}
}
