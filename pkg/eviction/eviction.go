// Package eviction decides when the oldest stored turn of a session should
// be reabsorbed into the active context.
package eviction

const (
	// DefaultTokenLimit is the context budget in approximate tokens.
	DefaultTokenLimit = 8000

	// DefaultInterval reabsorbs on every third turn.
	DefaultInterval = 3

	// DefaultHighWatermark is the fraction of the budget that counts as
	// high usage.
	DefaultHighWatermark = 0.8
)

// ShouldReabsorb reports whether the high-usage or periodic trigger fires.
// A non-positive interval disables the periodic trigger.
func ShouldReabsorb(currentTokens, tokenLimit, turnCounter, interval int) bool {
	return Policy{
		TokenLimit:    tokenLimit,
		Interval:      interval,
		HighWatermark: DefaultHighWatermark,
	}.Check(currentTokens, turnCounter).Reabsorb
}

// Trigger names the condition that fired.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerHighUsage
	TriggerInterval
)

func (t Trigger) String() string {
	switch t {
	case TriggerHighUsage:
		return "high-usage"
	case TriggerInterval:
		return "interval"
	default:
		return "none"
	}
}

// Decision is the result of a policy check.
type Decision struct {
	Reabsorb bool
	Trigger  Trigger
}

// Policy holds the reabsorption thresholds.
type Policy struct {
	TokenLimit    int
	Interval      int
	HighWatermark float64
}

// NewPolicy returns a policy with the default thresholds.
func NewPolicy() Policy {
	return Policy{
		TokenLimit:    DefaultTokenLimit,
		Interval:      DefaultInterval,
		HighWatermark: DefaultHighWatermark,
	}
}

// Check evaluates the triggers for the given usage and turn counter. High
// usage takes precedence when both fire.
func (p Policy) Check(currentTokens, turnCounter int) Decision {
	if float64(currentTokens) > p.HighWatermark*float64(p.TokenLimit) {
		return Decision{Reabsorb: true, Trigger: TriggerHighUsage}
	}
	if p.Interval > 0 && turnCounter%p.Interval == 0 {
		return Decision{Reabsorb: true, Trigger: TriggerInterval}
	}
	return Decision{}
}
