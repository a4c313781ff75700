// Package inmemory provides a map-backed storage driver for tests and
// ephemeral sessions. Data does not survive process restart.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards every map below; each operation holds it for its whole
	// duration, which makes per-session sequences linearizable.
	mu sync.RWMutex

	// sessions maps session id to its record.
	sessions map[string]*storage.Session

	// turns maps session id to its stored turns in insertion order.
	turns map[string][]*storage.StoredTurn

	nextID int64

	// now returns the current time. Overridable in tests.
	now func() time.Time
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string]*storage.Session),
		turns:    make(map[string][]*storage.StoredTurn),
		now:      time.Now,
	}
}

// CreateSession inserts the session if absent.
func (d *Driver) CreateSession(_ context.Context, id, title string) (bool, error) {
	if id == "" {
		return false, storage.ErrEmptySessionID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[id]; ok {
		return false, nil
	}

	now := d.now()
	d.sessions[id] = &storage.Session{
		ID:          id,
		Title:       title,
		CreatedAt:   now,
		LastUpdated: now,
		Preview:     storage.DefaultPreview,
	}
	return true, nil
}

// UpdateSession overwrites title and preview. Unknown ids are ignored,
// matching an UPDATE that affects no rows.
func (d *Driver) UpdateSession(_ context.Context, id, title, preview string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil
	}
	s.Title = title
	s.Preview = preview
	s.LastUpdated = d.now()
	return nil
}

// RenameSession sets a custom title.
func (d *Driver) RenameSession(_ context.Context, id, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[id]
	if !ok {
		return storage.NotFoundError{SessionID: id}
	}
	s.Title = title
	s.HasCustomTitle = true
	s.LastUpdated = d.now()
	return nil
}

// GetSession retrieves a copy of a session.
func (d *Driver) GetSession(_ context.Context, id string) (*storage.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sessions[id]
	if !ok {
		return nil, storage.NotFoundError{SessionID: id}
	}
	out := *s
	return &out, nil
}

// ListSessions returns copies of all sessions, most recently updated first.
func (d *Driver) ListSessions(_ context.Context) ([]*storage.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sessions := make([]*storage.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out := *s
		sessions = append(sessions, &out)
	}

	slices.SortFunc(sessions, func(a, b *storage.Session) int {
		if c := b.LastUpdated.Compare(a.LastUpdated); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sessions, nil
}

// DeleteSession removes the session and its turns.
func (d *Driver) DeleteSession(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.sessions, id)
	delete(d.turns, id)
	return nil
}

// AppendTurn stores a copy of turn at the end of its session's log.
func (d *Driver) AppendTurn(_ context.Context, turn *storage.StoredTurn) (*storage.StoredTurn, error) {
	if turn == nil {
		return nil, storage.ErrNilTurn
	}
	if turn.SessionID == "" {
		return nil, storage.ErrEmptySessionID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	log := d.turns[turn.SessionID]

	ts := d.now()
	if n := len(log); n > 0 && !ts.After(log[n-1].Timestamp) {
		ts = log[n-1].Timestamp.Add(time.Nanosecond)
	}

	d.nextID++
	stored := *turn
	stored.ID = d.nextID
	stored.Timestamp = ts

	d.turns[turn.SessionID] = append(log, &stored)

	out := stored
	return &out, nil
}

// ListTurns returns copies of a session's turns in insertion order.
func (d *Driver) ListTurns(_ context.Context, sessionID string) ([]*storage.StoredTurn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	log := d.turns[sessionID]
	turns := make([]*storage.StoredTurn, 0, len(log))
	for _, t := range log {
		out := *t
		turns = append(turns, &out)
	}
	return turns, nil
}

// RemoveOldestTurn pops the first turn of a session's log. accept runs
// under the lock on a copy of the turn.
func (d *Driver) RemoveOldestTurn(_ context.Context, sessionID string, accept func(*storage.StoredTurn) error) (*storage.StoredTurn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := d.turns[sessionID]
	if len(log) == 0 {
		return nil, nil
	}

	oldest := log[0]
	if accept != nil {
		peek := *oldest
		if err := accept(&peek); err != nil {
			return nil, err
		}
	}
	log[0] = nil
	if len(log) == 1 {
		delete(d.turns, sessionID)
	} else {
		d.turns[sessionID] = log[1:]
	}
	return oldest, nil
}

// SumTokens totals a session's token counts.
func (d *Driver) SumTokens(_ context.Context, sessionID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for _, t := range d.turns[sessionID] {
		total += t.TokenCount
	}
	return total, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
