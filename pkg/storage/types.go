package storage

import "time"

// DefaultPreview is the preview of a session that has no stored turns yet.
const DefaultPreview = "Welcome to chat!"

// Session is the durable identity of one conversation.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// HasCustomTitle is set once a user names the session explicitly.
	HasCustomTitle bool `json:"has_custom_title"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Preview     string    `json:"preview"`
}

// StoredTurn is one admitted, encoded conversation turn.
type StoredTurn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`

	// Payload is the codec output for the turn's plaintext.
	Payload string `json:"payload"`

	// TokenCount is the approximate token count of the original text.
	TokenCount int `json:"token_count"`

	// ContentHash is the hex blake3 digest of the original text.
	ContentHash string `json:"content_hash,omitempty"`
}
