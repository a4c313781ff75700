// Package sqldriver provides storage operations over database/sql.
// It is engine-agnostic and is embedded by the sqlite and postgres drivers,
// which supply the connection, the placeholder dialect, and migrations.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Dialect selects the bind placeholder style of the engine.
type Dialect int

const (
	// Question binds with "?" (SQLite).
	Question Dialect = iota

	// Dollar binds with "$1", "$2", ... (PostgreSQL).
	Dollar
)

// Driver implements storage.Driver on top of a *sql.DB.
type Driver struct {
	DB      *sql.DB
	Dialect Dialect

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

var _ storage.Driver = (*Driver)(nil)

// CreateSession inserts the session if it is absent. The lookup and the
// insert run in one transaction, and the insert itself ignores conflicts so
// concurrent creators of the same id cannot both succeed.
func (d *Driver) CreateSession(ctx context.Context, id, title string) (bool, error) {
	if id == "" {
		return false, storage.ErrEmptySessionID
	}

	var created bool
	err := d.withTx(ctx, "create session", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			d.rebind(`SELECT COUNT(1) FROM sessions WHERE session_id = ?`), id,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}

		now := d.now().UnixNano()
		res, err := tx.ExecContext(ctx, d.rebind(`
			INSERT INTO sessions (session_id, title, has_custom_title, created_at, last_updated, preview)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO NOTHING`),
			id, title, false, now, now, storage.DefaultPreview,
		)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = affected > 0
		return nil
	})

	return created, err
}

// UpdateSession overwrites title and preview and refreshes last_updated.
func (d *Driver) UpdateSession(ctx context.Context, id, title, preview string) error {
	_, err := d.DB.ExecContext(ctx,
		d.rebind(`UPDATE sessions SET title = ?, preview = ?, last_updated = ? WHERE session_id = ?`),
		title, preview, d.now().UnixNano(), id,
	)
	if err != nil {
		return &storage.StorageError{Op: "update session", Err: err}
	}
	return nil
}

// RenameSession sets a custom title.
func (d *Driver) RenameSession(ctx context.Context, id, title string) error {
	res, err := d.DB.ExecContext(ctx,
		d.rebind(`UPDATE sessions SET title = ?, has_custom_title = ?, last_updated = ? WHERE session_id = ?`),
		title, true, d.now().UnixNano(), id,
	)
	if err != nil {
		return &storage.StorageError{Op: "rename session", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.StorageError{Op: "rename session", Err: err}
	}
	if affected == 0 {
		return storage.NotFoundError{SessionID: id}
	}
	return nil
}

// GetSession retrieves a session by id.
func (d *Driver) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	row := d.DB.QueryRowContext(ctx, d.rebind(`
		SELECT session_id, title, has_custom_title, created_at, last_updated, preview
		FROM sessions WHERE session_id = ?`), id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{SessionID: id}
	}
	if err != nil {
		return nil, &storage.StorageError{Op: "get session", Err: err}
	}
	return session, nil
}

// ListSessions returns sessions ordered by last_updated descending.
func (d *Driver) ListSessions(ctx context.Context) ([]*storage.Session, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT session_id, title, has_custom_title, created_at, last_updated, preview
		FROM sessions ORDER BY last_updated DESC, session_id ASC`)
	if err != nil {
		return nil, &storage.StorageError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var sessions []*storage.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, &storage.StorageError{Op: "list sessions", Err: err}
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.StorageError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

// DeleteSession removes the session record and all of its turns.
func (d *Driver) DeleteSession(ctx context.Context, id string) error {
	return d.withTx(ctx, "delete session", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM stored_turns WHERE session_id = ?`), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM sessions WHERE session_id = ?`), id)
		return err
	})
}

// AppendTurn stores a turn with a timestamp strictly after the session's
// latest turn, so insertion order and timestamp order always agree.
func (d *Driver) AppendTurn(ctx context.Context, turn *storage.StoredTurn) (*storage.StoredTurn, error) {
	if turn == nil {
		return nil, storage.ErrNilTurn
	}
	if turn.SessionID == "" {
		return nil, storage.ErrEmptySessionID
	}

	stored := *turn
	err := d.withTx(ctx, "append turn", func(tx *sql.Tx) error {
		var latest sql.NullInt64
		err := tx.QueryRowContext(ctx,
			d.rebind(`SELECT MAX(timestamp) FROM stored_turns WHERE session_id = ?`), turn.SessionID,
		).Scan(&latest)
		if err != nil {
			return err
		}

		ts := d.now().UnixNano()
		if latest.Valid && ts <= latest.Int64 {
			ts = latest.Int64 + 1
		}

		var id int64
		err = tx.QueryRowContext(ctx, d.rebind(`
			INSERT INTO stored_turns (session_id, timestamp, title, payload, token_count, content_hash)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
			turn.SessionID, ts, turn.Title, turn.Payload, turn.TokenCount, turn.ContentHash,
		).Scan(&id)
		if err != nil {
			return err
		}

		stored.ID = id
		stored.Timestamp = time.Unix(0, ts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// ListTurns returns a session's turns in insertion order.
func (d *Driver) ListTurns(ctx context.Context, sessionID string) ([]*storage.StoredTurn, error) {
	rows, err := d.DB.QueryContext(ctx, d.rebind(`
		SELECT id, session_id, timestamp, title, payload, token_count, content_hash
		FROM stored_turns WHERE session_id = ?
		ORDER BY timestamp ASC, id ASC`), sessionID)
	if err != nil {
		return nil, &storage.StorageError{Op: "list turns", Err: err}
	}
	defer rows.Close()

	var turns []*storage.StoredTurn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, &storage.StorageError{Op: "list turns", Err: err}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.StorageError{Op: "list turns", Err: err}
	}
	return turns, nil
}

// RemoveOldestTurn deletes and returns the earliest turn of a session.
// accept runs inside the transaction, so a rejected turn is never deleted.
func (d *Driver) RemoveOldestTurn(ctx context.Context, sessionID string, accept func(*storage.StoredTurn) error) (*storage.StoredTurn, error) {
	var (
		removed   *storage.StoredTurn
		rejection error
	)
	err := d.withTx(ctx, "remove oldest turn", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, d.rebind(`
			SELECT id, session_id, timestamp, title, payload, token_count, content_hash
			FROM stored_turns WHERE session_id = ?
			ORDER BY timestamp ASC, id ASC
			LIMIT 1`), sessionID)

		turn, err := scanTurn(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if accept != nil {
			if rejection = accept(turn); rejection != nil {
				return rejection
			}
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`DELETE FROM stored_turns WHERE id = ? AND session_id = ?`),
			turn.ID, sessionID,
		)
		if err != nil {
			return err
		}

		removed = turn
		return nil
	})
	if rejection != nil {
		return nil, rejection
	}

	return removed, err
}

// SumTokens totals the token counts of a session's turns.
func (d *Driver) SumTokens(ctx context.Context, sessionID string) (int, error) {
	var total sql.NullInt64
	err := d.DB.QueryRowContext(ctx,
		d.rebind(`SELECT SUM(token_count) FROM stored_turns WHERE session_id = ?`), sessionID,
	).Scan(&total)
	if err != nil {
		return 0, &storage.StorageError{Op: "sum tokens", Err: err}
	}
	return int(total.Int64), nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.DB.Close()
}

// withTx runs fn in a transaction, committing on success and rolling back
// on any error. Errors are wrapped as *storage.StorageError.
func (d *Driver) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return &storage.StorageError{Op: op, Err: fmt.Errorf("beginning transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return &storage.StorageError{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &storage.StorageError{Op: op, Err: fmt.Errorf("committing transaction: %w", err)}
	}
	return nil
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// rebind rewrites "?" placeholders for the driver's dialect.
func (d *Driver) rebind(query string) string {
	if d.Dialect != Dollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*storage.Session, error) {
	var (
		s                storage.Session
		created, updated int64
		preview          sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Title, &s.HasCustomTitle, &created, &updated, &preview); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created)
	s.LastUpdated = time.Unix(0, updated)
	s.Preview = preview.String
	return &s, nil
}

func scanTurn(row scanner) (*storage.StoredTurn, error) {
	var (
		t    storage.StoredTurn
		ts   int64
		hash sql.NullString
	)
	if err := row.Scan(&t.ID, &t.SessionID, &ts, &t.Title, &t.Payload, &t.TokenCount, &hash); err != nil {
		return nil, err
	}
	t.Timestamp = time.Unix(0, ts)
	t.ContentHash = hash.String
	return &t, nil
}
