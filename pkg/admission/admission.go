// Package admission decides whether a candidate turn is worth persisting.
package admission

import (
	"strings"

	"github.com/papercomputeco/mnemo/pkg/tokens"
)

const (
	// DefaultMinTokens is the smallest token count that can be admitted.
	DefaultMinTokens = 50

	// DefaultGradeThreshold is the lowest passing quality score.
	DefaultGradeThreshold = 6

	// MaxPassingScore is the score assigned when grading is disabled.
	MaxPassingScore = 7

	// MaxScore bounds every quality score.
	MaxScore = 10
)

// keywords signal an explanatory turn when grading is enabled.
var keywords = []string{"explain", "detail", "example"}

// Reason identifies why a turn was rejected.
type Reason int

const (
	// ReasonNone is reported for admitted turns.
	ReasonNone Reason = iota

	// ReasonTooShort is reported when the token count is below the minimum.
	ReasonTooShort

	// ReasonLowGrade is reported when the quality score is below the threshold.
	ReasonLowGrade
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTooShort:
		return "too-short"
	case ReasonLowGrade:
		return "low-grade"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a candidate turn.
type Decision struct {
	Admit  bool
	Reason Reason

	// Score is the quality score, or 0 when rejected as too short.
	Score int
}

// Filter holds the admission thresholds.
type Filter struct {
	MinTokens      int
	GradeThreshold int
	Grading        bool
}

// NewFilter returns a filter with the default thresholds and grading off.
func NewFilter() Filter {
	return Filter{
		MinTokens:      DefaultMinTokens,
		GradeThreshold: DefaultGradeThreshold,
	}
}

// Evaluate decides whether text with the given token count is admitted.
func (f Filter) Evaluate(text string, tokenCount int) Decision {
	if tokenCount < f.MinTokens {
		return Decision{Reason: ReasonTooShort}
	}

	score := Grade(text, f.Grading)
	if score < f.GradeThreshold {
		return Decision{Reason: ReasonLowGrade, Score: score}
	}

	return Decision{Admit: true, Score: score}
}

// ShouldStore reports whether the turn passes the filter with grading
// switched on or off for this call.
func (f Filter) ShouldStore(text string, tokenCount int, gradingEnabled bool) bool {
	f.Grading = gradingEnabled
	return f.Evaluate(text, tokenCount).Admit
}

// Grade scores text from 0 to MaxScore. A disabled grader always returns
// MaxPassingScore.
func Grade(text string, enabled bool) int {
	if !enabled {
		return MaxPassingScore
	}

	lengthScore := min(MaxScore, tokens.Count(text)/10)

	keywordScore := 3
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			keywordScore = 5
			break
		}
	}

	return (lengthScore + keywordScore) / 2
}
