package memory

import (
	"log/slog"
	"time"

	"github.com/papercomputeco/mnemo/pkg/admission"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/recall"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithPublisher publishes store, reabsorb and delete events.
func WithPublisher(publisher eventstream.Publisher) Option {
	return func(m *Manager) {
		m.publisher = publisher
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithCache replaces the default in-process plaintext cache.
func WithCache(cache Cache) Option {
	return func(m *Manager) {
		m.cache = cache
	}
}

// StoreOption configures a single StoreResponse call.
type StoreOption func(*storeOptions)

type storeOptions struct {
	tokenCount  int
	hasCount    bool
	firstPrompt string
	decision    *admission.Decision
}

// WithTokenCount overrides the word-count estimate of the turn.
func WithTokenCount(n int) StoreOption {
	return func(o *storeOptions) {
		o.tokenCount = n
		o.hasCount = true
	}
}

// WithFirstPrompt records the session's opening prompt, used to title the
// session until it is renamed.
func WithFirstPrompt(prompt string) StoreOption {
	return func(o *storeOptions) {
		o.firstPrompt = prompt
	}
}

// WithDecision receives the admission decision made for the turn.
func WithDecision(d *admission.Decision) StoreOption {
	return func(o *storeOptions) {
		o.decision = d
	}
}

// RecallOption overrides the configured recall settings for one call.
type RecallOption func(*recall.Options)

// WithTopK bounds the number of recalled texts.
func WithTopK(k int) RecallOption {
	return func(o *recall.Options) {
		o.TopK = k
	}
}

// WithMinSimilarity sets the similarity floor.
func WithMinSimilarity(sim float64) RecallOption {
	return func(o *recall.Options) {
		o.MinSimilarity = sim
	}
}

// WithMaxFeatures caps the recall vocabulary.
func WithMaxFeatures(n int) RecallOption {
	return func(o *recall.Options) {
		o.MaxFeatures = n
	}
}
