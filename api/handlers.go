package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/admission"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// CreateSessionResponse identifies a newly created session.
type CreateSessionResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RenameSessionRequest is the body of PATCH /sessions/:id.
type RenameSessionRequest struct {
	Title string `json:"title"`
}

// SessionResponse is a session record with its stored token total.
type SessionResponse struct {
	*storage.Session
	StoredTokens int `json:"stored_tokens"`
}

// StoreTurnRequest is the body of POST /sessions/:id/turns.
type StoreTurnRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`

	// TokenCount overrides the approximate count derived from Text.
	TokenCount int `json:"token_count,omitempty"`

	// FirstPrompt names the session the first time it is stored to.
	FirstPrompt string `json:"first_prompt,omitempty"`
}

// StoreTurnResponse reports whether the turn passed admission.
type StoreTurnResponse struct {
	Stored bool   `json:"stored"`
	Reason string `json:"reason"`
	Score  int    `json:"score"`
}

// RecallRequest is the body of POST /sessions/:id/recall.
type RecallRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

// RecallResponse carries the recalled turns, best match first.
type RecallResponse struct {
	Memories []string `json:"memories"`
}

// ReabsorbRequest is the body of POST /sessions/:id/reabsorb. Without
// CurrentTokens the oldest turn is reabsorbed unconditionally.
type ReabsorbRequest struct {
	CurrentTokens *int `json:"current_tokens,omitempty"`
}

// ReabsorbResponse carries the reabsorbed turn, if any.
type ReabsorbResponse struct {
	Reabsorbed bool   `json:"reabsorbed"`
	Text       string `json:"text,omitempty"`
}

// MetricsResponse reports counters for every session the server manages.
type MetricsResponse struct {
	Sessions map[string]memory.Metrics `json:"sessions"`
	Total    memory.Metrics            `json:"total"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions lists sessions, most recently updated first.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.catalog.Sessions(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	if sessions == nil {
		sessions = []*storage.Session{}
	}
	return c.JSON(sessions)
}

// handleCreateSession starts a session under a fresh id.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	m := memory.NewManager(s.driver, s.config.Memory, s.managerOptions(s.logger)...)
	id, err := m.CreateSession(c.Context(), req.Title)
	if err != nil {
		return s.fail(c, err)
	}

	s.mu.Lock()
	s.managers[id] = m
	s.mu.Unlock()

	title := req.Title
	if title == "" {
		title = memory.DefaultTitle
	}
	return c.Status(fiber.StatusCreated).JSON(CreateSessionResponse{ID: id, Title: title})
}

// handleGetSession returns one session record.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	session, err := s.catalog.Session(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}

	total, err := s.catalog.StoredTokensForSession(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(SessionResponse{Session: session, StoredTokens: total})
}

// handleRenameSession sets a user-chosen title.
func (s *Server) handleRenameSession(c *fiber.Ctx) error {
	var req RenameSessionRequest
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "title is required"})
	}

	if err := s.catalog.RenameSession(c.Context(), c.Params("id"), req.Title); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleDeleteSession removes a session and its turns. A live manager for
// the session is dropped, so the next write to the id starts a fresh session.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.catalog.DeleteSession(c.Context(), id); err != nil {
		return s.fail(c, err)
	}
	s.forget(id)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleListTurns returns the stored turn history of a session.
func (s *Server) handleListTurns(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.existing(c.Context(), id); err != nil {
		return s.fail(c, err)
	}

	history, err := s.catalog.SessionHistory(c.Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if history == nil {
		history = []memory.HistoryEntry{}
	}
	return c.JSON(history)
}

// handleStoreTurn runs a turn through admission and stores it if admitted.
// The session is created on first use.
func (s *Server) handleStoreTurn(c *fiber.Ctx) error {
	var req StoreTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	m, err := s.manager(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	var decision admission.Decision
	opts := []memory.StoreOption{memory.WithDecision(&decision)}
	if req.TokenCount > 0 {
		opts = append(opts, memory.WithTokenCount(req.TokenCount))
	}
	if req.FirstPrompt != "" {
		opts = append(opts, memory.WithFirstPrompt(req.FirstPrompt))
	}

	if err := m.StoreResponse(c.Context(), req.Text, req.Title, opts...); err != nil {
		return s.fail(c, err)
	}

	status := fiber.StatusOK
	if decision.Admit {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(StoreTurnResponse{
		Stored: decision.Admit,
		Reason: decision.Reason.String(),
		Score:  decision.Score,
	})
}

// handleRecall returns the stored turns most similar to a query.
func (s *Server) handleRecall(c *fiber.Ctx) error {
	var req RecallRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	m, err := s.existing(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	var opts []memory.RecallOption
	if req.TopK > 0 {
		opts = append(opts, memory.WithTopK(req.TopK))
	}
	if req.MinSimilarity > 0 {
		opts = append(opts, memory.WithMinSimilarity(req.MinSimilarity))
	}

	memories := m.FindRelevant(c.Context(), req.Query, opts...)
	if memories == nil {
		memories = []string{}
	}
	return c.JSON(RecallResponse{Memories: memories})
}

// handleReabsorb removes the oldest stored turn and returns its text.
func (s *Server) handleReabsorb(c *fiber.Ctx) error {
	var req ReabsorbRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	m, err := s.existing(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	if req.CurrentTokens != nil && !m.ShouldReabsorb(*req.CurrentTokens) {
		return c.JSON(ReabsorbResponse{})
	}

	text, err := m.ReabsorbOldest(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ReabsorbResponse{Reabsorbed: text != "", Text: text})
}

// handleMetrics reports counters per managed session and in total.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := MetricsResponse{Sessions: make(map[string]memory.Metrics, len(s.managers))}
	for id, m := range s.managers {
		metrics := m.Metrics()
		resp.Sessions[id] = metrics
		resp.Total = resp.Total.Add(metrics)
	}
	return c.JSON(resp)
}

// fail maps memory and storage errors onto HTTP statuses.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var notFound storage.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrEmptySessionID), errors.Is(err, memory.ErrInvalidText):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, memory.ErrTextTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal server error"})
	}
}
