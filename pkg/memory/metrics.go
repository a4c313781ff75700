package memory

import "sync/atomic"

// Metrics is a snapshot of a Manager's counters. Every counter only grows
// during the Manager's lifetime.
type Metrics struct {
	Stores          int64 `json:"stores"`
	SkippedShort    int64 `json:"skipped_short"`
	SkippedLowGrade int64 `json:"skipped_low_grade"`
	Reabsorbs       int64 `json:"reabsorbs"`
	Evictions       int64 `json:"evictions"`
	SemanticRecalls int64 `json:"semantic_recalls"`

	// BytesSaved accumulates plaintext bytes minus payload bytes for
	// every stored turn that compressed.
	BytesSaved int64 `json:"bytes_saved"`
}

// Skipped returns the number of rejected turns.
func (m Metrics) Skipped() int64 {
	return m.SkippedShort + m.SkippedLowGrade
}

// Add returns the field-wise sum of m and o.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Stores:          m.Stores + o.Stores,
		SkippedShort:    m.SkippedShort + o.SkippedShort,
		SkippedLowGrade: m.SkippedLowGrade + o.SkippedLowGrade,
		Reabsorbs:       m.Reabsorbs + o.Reabsorbs,
		Evictions:       m.Evictions + o.Evictions,
		SemanticRecalls: m.SemanticRecalls + o.SemanticRecalls,
		BytesSaved:      m.BytesSaved + o.BytesSaved,
	}
}

type counters struct {
	stores          atomic.Int64
	skippedShort    atomic.Int64
	skippedLowGrade atomic.Int64
	reabsorbs       atomic.Int64
	evictions       atomic.Int64
	semanticRecalls atomic.Int64
	bytesSaved      atomic.Int64
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Stores:          c.stores.Load(),
		SkippedShort:    c.skippedShort.Load(),
		SkippedLowGrade: c.skippedLowGrade.Load(),
		Reabsorbs:       c.reabsorbs.Load(),
		Evictions:       c.evictions.Load(),
		SemanticRecalls: c.semanticRecalls.Load(),
		BytesSaved:      c.bytesSaved.Load(),
	}
}
