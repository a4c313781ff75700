// Package storage defines the durable session store for conversation memory.
//
// A store holds two related record kinds: sessions and the ordered log of
// encoded turns stored under each session. Every operation is scoped by
// session id; drivers never leak turns across sessions.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving sessions and
// their stored turns.
type Driver interface {
	// CreateSession inserts a session record if one does not already exist
	// for id. Returns true if the session was newly created. An existing
	// session is left untouched (insert-or-ignore).
	CreateSession(ctx context.Context, id, title string) (bool, error)

	// UpdateSession overwrites the title and preview of a session and
	// refreshes its last-updated timestamp.
	UpdateSession(ctx context.Context, id, title, preview string) error

	// RenameSession sets a user-chosen title and marks the session as
	// custom-titled so automatic titling leaves it alone.
	RenameSession(ctx context.Context, id, title string) error

	// GetSession retrieves a single session by id.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns all sessions, most recently updated first.
	ListSessions(ctx context.Context) ([]*Session, error)

	// DeleteSession removes a session and all of its stored turns.
	DeleteSession(ctx context.Context, id string) error

	// AppendTurn stores a turn after all existing turns of its session.
	// The driver assigns ID and Timestamp and returns the stored turn.
	AppendTurn(ctx context.Context, turn *StoredTurn) (*StoredTurn, error)

	// ListTurns returns the stored turns of a session in insertion order.
	ListTurns(ctx context.Context, sessionID string) ([]*StoredTurn, error)

	// RemoveOldestTurn removes and returns the earliest stored turn of a
	// session. Returns nil and no error when the session has no turns.
	//
	// A non-nil accept sees the turn before it is removed. If accept
	// returns an error the turn stays in place and that error is returned
	// as is.
	RemoveOldestTurn(ctx context.Context, sessionID string, accept func(*StoredTurn) error) (*StoredTurn, error)

	// SumTokens returns the total token count of a session's stored turns.
	SumTokens(ctx context.Context, sessionID string) (int, error)

	// Close closes the store and releases any resources.
	Close() error
}
