package memory

import (
	"github.com/papercomputeco/mnemo/pkg/admission"
	"github.com/papercomputeco/mnemo/pkg/eviction"
	"github.com/papercomputeco/mnemo/pkg/recall"
)

// DefaultTitle is given to sessions created without a title.
const DefaultTitle = "New Chat"

// Config holds the Manager's thresholds.
type Config struct {
	// TokenLimit is the context budget used by the high-usage trigger.
	TokenLimit int

	// ReabsorbInterval fires the periodic trigger every N checks.
	// Non-positive disables it.
	ReabsorbInterval int

	// EnableHistory tracks session records. When false, session
	// operations are no-ops and turns are still stored.
	EnableHistory bool

	Admission admission.Filter
	Recall    recall.Options
}

// DefaultConfig returns the default thresholds with history enabled.
func DefaultConfig() Config {
	return Config{
		TokenLimit:       eviction.DefaultTokenLimit,
		ReabsorbInterval: eviction.DefaultInterval,
		EnableHistory:    true,
		Admission:        admission.NewFilter(),
		Recall:           recall.DefaultOptions(),
	}
}

func (c Config) policy() eviction.Policy {
	limit := c.TokenLimit
	if limit <= 0 {
		limit = eviction.DefaultTokenLimit
	}
	return eviction.Policy{
		TokenLimit:    limit,
		Interval:      c.ReabsorbInterval,
		HighWatermark: eviction.DefaultHighWatermark,
	}
}
