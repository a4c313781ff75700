package storage

import "errors"

// NotFoundError is returned when a session doesn't exist in the store.
type NotFoundError struct {
	SessionID string
}

func (e NotFoundError) Error() string {
	if e.SessionID == "" {
		return "session not found"
	}

	return "session not found: " + e.SessionID
}

// StorageError wraps a failure of the underlying storage engine. The
// operation that produced it was aborted without partial writes.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrNilTurn is returned when AppendTurn is called without a turn.
var ErrNilTurn = errors.New("cannot store nil turn")

// ErrEmptySessionID is returned when an operation is given an empty session id.
var ErrEmptySessionID = errors.New("session id is required")
