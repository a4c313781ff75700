// Package memory provides the bounded-context memory layer for mnemo.
//
// A [Manager] drives one conversation at a time. Admitted turns are
// compressed into the session store, the oldest turns are reabsorbed under
// token pressure, and past turns are recalled by similarity to a query.
//
// Stored turns live in a [storage.Driver] and are the source of truth. The
// plaintext [Cache] used for recall mirrors them and is rebuilt from the
// store whenever a session becomes active.
package memory

import (
	"time"

	"github.com/papercomputeco/mnemo/pkg/memory/local"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Cache holds the decoded texts of admitted turns per session, oldest
// first.
type Cache interface {
	Append(sessionID, text string)
	PopOldest(sessionID string)
	Texts(sessionID string) []string
	Replace(sessionID string, texts []string)
	Drop(sessionID string)
}

var _ Cache = (*local.Cache)(nil)

// HistoryEntry describes one stored turn of a session without decoding it.
type HistoryEntry struct {
	Title  string    `json:"title"`
	Tokens int       `json:"tokens"`
	Time   time.Time `json:"time"`
}

// Summary reports the state of the active session.
type Summary struct {
	SessionID    string  `json:"session_id"`
	StoredTokens int     `json:"stored_tokens"`
	TokenLimit   int     `json:"token_limit"`
	Metrics      Metrics `json:"metrics"`

	// Expansion is how many context windows the stored turns would fill.
	// It is 1 when nothing is stored.
	Expansion float64 `json:"expansion"`
}

// historyFromTurns maps stored turns to history entries.
func historyFromTurns(turns []*storage.StoredTurn) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, HistoryEntry{
			Title:  t.Title,
			Tokens: t.TokenCount,
			Time:   t.Timestamp,
		})
	}
	return entries
}
