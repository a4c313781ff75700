package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/papercomputeco/mnemo/pkg/admission"
	"github.com/papercomputeco/mnemo/pkg/codec"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/eviction"
	"github.com/papercomputeco/mnemo/pkg/memory/local"
	"github.com/papercomputeco/mnemo/pkg/recall"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/tokens"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

// Manager composes the session store, codec, admission filter, eviction
// policy and recall for one active session at a time.
type Manager struct {
	driver    storage.Driver
	cfg       Config
	policy    eviction.Policy
	cache     Cache
	logger    *slog.Logger
	publisher eventstream.Publisher
	now       func() time.Time

	counters counters

	// mu guards the session state below and serializes store, reabsorb
	// and activation so a session's turn log is driven by one caller at
	// a time.
	mu          sync.Mutex
	chatID      string
	turnCounter int
	firstPrompt string
}

// NewManager creates a Manager over driver. No session is active until
// SetChatID or CreateSession is called.
func NewManager(driver storage.Driver, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		driver: driver,
		cfg:    cfg,
		policy: cfg.policy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = local.NewCache()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// ChatID returns the active session id, or "" when none is active.
func (m *Manager) ChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatID
}

// Config returns the Manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// SetChatID makes id the active session. The turn counter is reset, the
// previous session's cache is discarded, and the cache for id is rebuilt
// from the store. With history enabled the session record is created if
// it does not exist yet.
func (m *Manager) SetChatID(ctx context.Context, id string) error {
	if id == "" {
		return storage.ErrEmptySessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.EnableHistory {
		if _, err := m.driver.CreateSession(ctx, id, DefaultTitle); err != nil {
			return fmt.Errorf("ensuring session %s: %w", id, err)
		}
	}

	if err := m.activate(ctx, id); err != nil {
		return err
	}

	m.logger.Info("switched chat session", "session_id", id)
	return nil
}

// CreateSession creates a session with a new id and makes it active.
func (m *Manager) CreateSession(ctx context.Context, title string) (string, error) {
	if title == "" {
		title = DefaultTitle
	}
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.EnableHistory {
		if _, err := m.driver.CreateSession(ctx, id, title); err != nil {
			return "", fmt.Errorf("creating session: %w", err)
		}
	}

	if err := m.activate(ctx, id); err != nil {
		return "", err
	}

	m.logger.Info("created session", "session_id", id, "title", title)
	return id, nil
}

// activate switches the in-memory state to id. Callers hold m.mu.
func (m *Manager) activate(ctx context.Context, id string) error {
	if m.chatID != "" && m.chatID != id {
		m.cache.Drop(m.chatID)
	}
	m.chatID = id
	m.turnCounter = 0
	m.firstPrompt = ""

	if _, err := m.rebuildCache(ctx, id); err != nil {
		return err
	}
	return nil
}

// StoreResponse runs text through the admission filter and, if admitted,
// stores it under the active session. Rejections are not errors; they are
// counted in Metrics and logged.
func (m *Manager) StoreResponse(ctx context.Context, text, title string, opts ...StoreOption) error {
	var so storeOptions
	for _, opt := range opts {
		opt(&so)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.chatID == "" {
		return ErrNoActiveSession
	}
	if !utf8.ValidString(text) {
		return ErrInvalidText
	}
	if len(text) > codec.MaxTextSize {
		return ErrTextTooLarge
	}
	if so.firstPrompt != "" {
		m.firstPrompt = so.firstPrompt
	}

	count := so.tokenCount
	if !so.hasCount {
		count = tokens.Count(text)
	}

	logger := m.logger.With("session_id", m.chatID)

	decision := m.cfg.Admission.Evaluate(text, count)
	if so.decision != nil {
		*so.decision = decision
	}
	if !decision.Admit {
		switch decision.Reason {
		case admission.ReasonTooShort:
			m.counters.skippedShort.Add(1)
		case admission.ReasonLowGrade:
			m.counters.skippedLowGrade.Add(1)
		}
		logger.Info("skipped turn",
			"title", utils.Truncate(title, 30),
			"tokens", count,
			"reason", decision.Reason.String(),
			"score", decision.Score,
		)
		return nil
	}

	payload := codec.Encode(text)
	stored, err := m.driver.AppendTurn(ctx, &storage.StoredTurn{
		SessionID:   m.chatID,
		Title:       title,
		Payload:     payload,
		TokenCount:  count,
		ContentHash: ContentHash(text),
	})
	if err != nil {
		return fmt.Errorf("storing turn: %w", err)
	}

	m.cache.Append(m.chatID, text)
	m.counters.stores.Add(1)
	if saved := len(text) - len(payload); saved > 0 {
		m.counters.bytesSaved.Add(int64(saved))
	}

	logger.Info("stored turn",
		"title", utils.Truncate(title, 30),
		"tokens", count,
		"score", decision.Score,
		"payload_bytes", len(payload),
		"ratio", fmt.Sprintf("%.1fx", codec.Ratio(text, payload)),
	)

	m.publish(ctx, eventstream.EventTypeTurnStored, m.chatID, turnMeta(stored, len(text)))

	if err := m.touchSession(ctx, title, text); err != nil {
		return fmt.Errorf("updating session %s: %w", m.chatID, err)
	}
	return nil
}

// touchSession refreshes the active session's title and preview after a
// stored turn. A custom title is kept; otherwise the first prompt, when
// known, names the session. Callers hold m.mu.
func (m *Manager) touchSession(ctx context.Context, turnTitle, text string) error {
	if !m.cfg.EnableHistory {
		return nil
	}

	session, err := m.driver.GetSession(ctx, m.chatID)
	var notFound storage.NotFoundError
	if errors.As(err, &notFound) {
		if _, err := m.driver.CreateSession(ctx, m.chatID, DefaultTitle); err != nil {
			return err
		}
		session = &storage.Session{ID: m.chatID}
	} else if err != nil {
		return err
	}

	title := turnTitle
	switch {
	case session.HasCustomTitle:
		title = session.Title
	case m.firstPrompt != "":
		title = AutoTitle(m.firstPrompt)
	}

	return m.driver.UpdateSession(ctx, m.chatID, title, Preview(text))
}

// ShouldReabsorb counts a conversational turn for the active session and
// reports whether its oldest stored turn should be reabsorbed.
func (m *Manager) ShouldReabsorb(currentTokens int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turnCounter++
	decision := m.policy.Check(currentTokens, m.turnCounter)

	m.logger.Debug("reabsorb check",
		"session_id", m.chatID,
		"turn", m.turnCounter,
		"usage", currentTokens,
		"limit", m.policy.TokenLimit,
		"decision", decision.Reabsorb,
		"trigger", decision.Trigger.String(),
	)
	return decision.Reabsorb
}

// ReabsorbOldest removes the oldest stored turn of the active session and
// returns its text. An empty session returns "" and no error. A turn that
// fails to decode is left in the store.
func (m *Manager) ReabsorbOldest(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.chatID == "" {
		return "", ErrNoActiveSession
	}
	logger := m.logger.With("session_id", m.chatID)

	var text string
	turn, err := m.driver.RemoveOldestTurn(ctx, m.chatID, func(t *storage.StoredTurn) error {
		var err error
		text, err = decodeTurn(t)
		return err
	})
	var decodeErr *codec.DecodeError
	if errors.As(err, &decodeErr) {
		logger.Error("oldest turn could not be decoded and was kept", "error", err)
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("reabsorbing oldest turn: %w", err)
	}
	if turn == nil {
		logger.Debug("no memories to reabsorb")
		return "", nil
	}

	m.cache.PopOldest(m.chatID)
	m.counters.reabsorbs.Add(1)
	m.counters.evictions.Add(1)

	logger.Info("reabsorbed oldest turn",
		"tokens", turn.TokenCount,
		"preview", utils.Truncate(text, 50),
	)

	m.publish(ctx, eventstream.EventTypeTurnReabsorbed, m.chatID, turnMeta(turn, len(text)))
	return text, nil
}

// FindRelevant returns up to TopK cached texts of the active session
// ranked by similarity to query. It never fails: degenerate corpora and
// ranking errors yield no results.
func (m *Manager) FindRelevant(_ context.Context, query string, opts ...RecallOption) []string {
	id := m.ChatID()
	logger := m.logger.With("session_id", id)

	texts := m.cache.Texts(id)
	if len(texts) < 2 {
		logger.Debug("not enough texts for semantic recall", "cached", len(texts))
		return nil
	}

	options := m.cfg.Recall
	for _, opt := range opts {
		opt(&options)
	}

	matches, err := recall.Rank(texts, query, options)
	if err != nil {
		logger.Warn("semantic recall failed", "error", err)
		return nil
	}
	m.counters.semanticRecalls.Add(1)

	relevant := make([]string, 0, len(matches))
	sims := make([]float64, 0, len(matches))
	for _, match := range matches {
		relevant = append(relevant, match.Text)
		sims = append(sims, match.Similarity)
	}

	logger.Info("found relevant memories",
		"query", utils.Truncate(query, 30),
		"count", len(relevant),
		"similarities", sims,
	)
	return relevant
}

// StoredTokens sums the token counts of the active session's stored turns.
func (m *Manager) StoredTokens(ctx context.Context) (int, error) {
	id := m.ChatID()
	if id == "" {
		return 0, ErrNoActiveSession
	}
	return m.StoredTokensForSession(ctx, id)
}

// StoredTokensForSession sums the token counts of a session's stored turns.
func (m *Manager) StoredTokensForSession(ctx context.Context, id string) (int, error) {
	total, err := m.driver.SumTokens(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("summing tokens for session %s: %w", id, err)
	}
	return total, nil
}

// Sessions lists sessions, most recently updated first. It is empty when
// history is disabled.
func (m *Manager) Sessions(ctx context.Context) ([]*storage.Session, error) {
	if !m.cfg.EnableHistory {
		return nil, nil
	}

	sessions, err := m.driver.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// Session returns one session record.
func (m *Manager) Session(ctx context.Context, id string) (*storage.Session, error) {
	return m.driver.GetSession(ctx, id)
}

// SessionHistory lists a session's stored turns, oldest first.
func (m *Manager) SessionHistory(ctx context.Context, id string) ([]HistoryEntry, error) {
	turns, err := m.driver.ListTurns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing turns for session %s: %w", id, err)
	}
	return historyFromTurns(turns), nil
}

// RenameSession gives a session a custom title that auto-titling keeps.
func (m *Manager) RenameSession(ctx context.Context, id, title string) error {
	if !m.cfg.EnableHistory {
		return nil
	}

	if err := m.driver.RenameSession(ctx, id, title); err != nil {
		return fmt.Errorf("renaming session %s: %w", id, err)
	}
	m.logger.Info("renamed session", "session_id", id, "title", title)
	return nil
}

// DeleteSession removes a session and all of its stored turns. The active
// session cannot be deleted.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if !m.cfg.EnableHistory {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == m.chatID {
		return ErrActiveSession
	}

	if err := m.driver.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	m.cache.Drop(id)

	m.logger.Info("deleted session", "session_id", id)
	m.publish(ctx, eventstream.EventTypeSessionDeleted, id, nil)
	return nil
}

// RebuildCache replaces the cached texts of a session with the decoded
// turns from the store. Turns that fail to decode are skipped and logged.
func (m *Manager) RebuildCache(ctx context.Context, id string) error {
	_, err := m.rebuildCache(ctx, id)
	return err
}

func (m *Manager) rebuildCache(ctx context.Context, id string) (int, error) {
	turns, err := m.driver.ListTurns(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("rebuilding cache for session %s: %w", id, err)
	}

	texts := make([]string, 0, len(turns))
	for _, turn := range turns {
		text, err := decodeTurn(turn)
		if err != nil {
			m.logger.Warn("skipping undecodable turn", "session_id", id, "turn_id", turn.ID, "error", err)
			continue
		}
		texts = append(texts, text)
	}

	m.cache.Replace(id, texts)
	m.logger.Debug("rebuilt plaintext cache", "session_id", id, "texts", len(texts))
	return len(texts), nil
}

// Metrics returns a snapshot of the Manager's counters.
func (m *Manager) Metrics() Metrics {
	return m.counters.snapshot()
}

// Summary reports stored tokens and metrics for the active session.
func (m *Manager) Summary(ctx context.Context) (Summary, error) {
	total, err := m.StoredTokens(ctx)
	if err != nil {
		return Summary{}, err
	}

	expansion := 1.0
	if total > 0 {
		expansion = float64(total) / float64(m.policy.TokenLimit)
	}

	s := Summary{
		SessionID:    m.ChatID(),
		StoredTokens: total,
		TokenLimit:   m.policy.TokenLimit,
		Metrics:      m.Metrics(),
		Expansion:    expansion,
	}

	m.logger.Info("session summary",
		"session_id", s.SessionID,
		"stores", s.Metrics.Stores,
		"skipped", s.Metrics.Skipped(),
		"reabsorbs", s.Metrics.Reabsorbs,
		"recalls", s.Metrics.SemanticRecalls,
		"expansion", fmt.Sprintf("%.1fx", s.Expansion),
		"bytes_saved", s.Metrics.BytesSaved,
	)
	return s, nil
}

func (m *Manager) publish(ctx context.Context, eventType, sessionID string, turn *eventstream.TurnMeta) {
	if m.publisher == nil {
		return
	}

	event := eventstream.NewEvent(eventType, sessionID, turn, m.now())
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish event",
			"session_id", sessionID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// decodeTurn decodes a stored payload and checks it against the stored
// content hash.
func decodeTurn(turn *storage.StoredTurn) (string, error) {
	text, err := codec.Decode(turn.Payload)
	if err != nil {
		return "", fmt.Errorf("decoding turn %d: %w", turn.ID, err)
	}
	if turn.ContentHash != "" && ContentHash(text) != turn.ContentHash {
		return "", fmt.Errorf("decoding turn %d: %w", turn.ID, &codec.DecodeError{Reason: "content hash mismatch"})
	}
	return text, nil
}

func turnMeta(turn *storage.StoredTurn, plaintextBytes int) *eventstream.TurnMeta {
	return &eventstream.TurnMeta{
		ID:             turn.ID,
		Title:          turn.Title,
		Timestamp:      turn.Timestamp,
		TokenCount:     turn.TokenCount,
		PlaintextBytes: plaintextBytes,
		PayloadBytes:   len(turn.Payload),
		ContentHash:    turn.ContentHash,
	}
}
