package model

import "time"

// Report is the outcome of one watch run, consumed by exporters
type Report struct {
	Query       string    `json:"query"`
	Keywords    []string  `json:"keywords"`
	GeneratedAt time.Time `json:"generated_at"`

	// Records is the full scored corpus
	Records []Record `json:"records"`
	Stats   RunStats `json:"stats"`

	// Articles and Studies are the high-confidence views over Records
	Threshold   float64  `json:"threshold"`
	Articles    []Record `json:"articles"`
	Studies     []Record `json:"studies"`
	WeakSignals []string `json:"weak_signals,omitempty"`

	Topics map[string]int `json:"topics,omitempty"`

	Summaries map[string]string `json:"summaries,omitempty"`
	Executive string            `json:"executive,omitempty"`

	SecondaryQuery string `json:"secondary_query,omitempty"`
}

// IsEmpty reports whether the run produced no records
func (r *Report) IsEmpty() bool {
	return len(r.Records) == 0
}
