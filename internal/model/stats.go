package model

import (
	"fmt"
	"time"
)

// AdapterOutcome describes how one adapter invocation ended
type AdapterOutcome struct {
	Adapter  string        `json:"adapter"`
	Keyword  string        `json:"keyword,omitempty"`
	Records  int           `json:"records"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the adapter produced an error
func (o AdapterOutcome) Failed() bool {
	return o.Error != ""
}

// RunStats is the partial-failure signal passed back to callers
type RunStats struct {
	Query     string           `json:"query"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Outcomes  []AdapterOutcome `json:"outcomes,omitempty"`

	FromCache bool `json:"from_cache"`
	Offline   bool `json:"offline"`

	// CacheDegraded is set when the store failed during this run
	CacheDegraded bool `json:"cache_degraded,omitempty"`

	Total             int `json:"total"`
	Refined           int `json:"refined,omitempty"`
	NewSinceLastCheck int `json:"new_since_last_check"`
}

// Record adds an adapter outcome and updates counters
func (s *RunStats) Record(o AdapterOutcome) {
	switch {
	case o.Skipped:
		s.Skipped++
	case o.Failed():
		s.Failed++
	default:
		s.Succeeded++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Merge folds the counters of another run into s
func (s *RunStats) Merge(other RunStats) {
	for _, o := range other.Outcomes {
		s.Record(o)
	}
	s.CacheDegraded = s.CacheDegraded || other.CacheDegraded
}

// String renders the "N succeeded, M failed" line
func (s RunStats) String() string {
	msg := fmt.Sprintf("%d succeeded, %d failed", s.Succeeded, s.Failed)
	if s.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	switch {
	case s.Offline:
		msg += " (offline: stale cache)"
	case s.FromCache:
		msg += " (from cache)"
	}
	return msg
}
