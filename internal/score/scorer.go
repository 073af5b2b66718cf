package score

import (
	"sort"
	"strings"

	"github.com/ppiankov/veille/internal/model"
)

// Scorer computes normalized keyword relevance.
// The weight table is read-only once the scorer is built.
type Scorer struct {
	weights       map[string]float64
	defaultWeight float64
	boost         float64
}

// NewScorer creates a scorer from the scoring configuration
func NewScorer(cfg model.ScoringConfig) *Scorer {
	weights := make(map[string]float64, len(cfg.Weights))
	for k, w := range cfg.Weights {
		weights[strings.ToLower(strings.TrimSpace(k))] = w
	}
	def := cfg.DefaultWeight
	if def <= 0 {
		def = 1.0
	}
	return &Scorer{
		weights:       weights,
		defaultWeight: def,
		boost:         cfg.Boost,
	}
}

// Weight returns the weight of a keyword, falling back to the default
func (s *Scorer) Weight(keyword string) float64 {
	if w, ok := s.weights[strings.ToLower(keyword)]; ok && w > 0 {
		return w
	}
	return s.defaultWeight
}

// Breakdown exposes the intermediate values of one score
type Breakdown struct {
	Base       float64
	Hits       int
	Multiplier float64
	Final      float64
	Max        float64
	Normalized float64
}

// Explain scores a record and returns every intermediate value:
//
//	base = Σ weight(k) for matched k
//	multiplier = 1 + boost * hits
//	max = Σ weight(k) for all k * (1 + boost * len(K))
//	normalized = base * multiplier / max
func (s *Scorer) Explain(r model.Record, keywords []string) Breakdown {
	text := r.Text()
	keywords = uniqueLower(keywords)

	var b Breakdown
	var total float64
	for _, k := range keywords {
		w := s.Weight(k)
		total += w
		if strings.Contains(text, k) {
			b.Base += w
			b.Hits++
		}
	}

	b.Multiplier = 1.0 + s.boost*float64(b.Hits)
	b.Final = b.Base * b.Multiplier
	b.Max = total * (1.0 + s.boost*float64(len(keywords)))

	if b.Max > 0 {
		b.Normalized = clamp01(b.Final / b.Max)
	}
	return b
}

// Score returns the normalized relevance of r for keywords, in [0,1]
func (s *Scorer) Score(r model.Record, keywords []string) float64 {
	return s.Explain(r, keywords).Normalized
}

// ScoreAll sets RelevanceScore on every record and returns the slice
func (s *Scorer) ScoreAll(records []model.Record, keywords []string) []model.Record {
	for i := range records {
		records[i].RelevanceScore = s.Score(records[i], keywords)
		records[i].Scored = true
	}
	return records
}

// FilterRelevant keeps records whose text contains at least one required term.
// An empty required set keeps everything.
func FilterRelevant(records []model.Record, required []string) []model.Record {
	required = uniqueLower(required)
	if len(required) == 0 {
		return records
	}

	kept := make([]model.Record, 0, len(records))
	for _, r := range records {
		text := r.Text()
		for _, term := range required {
			if strings.Contains(text, term) {
				kept = append(kept, r)
				break
			}
		}
	}
	return kept
}

// HighConfidence returns the records at or above threshold without modifying the corpus
func HighConfidence(records []model.Record, threshold float64) []model.Record {
	out := make([]model.Record, 0)
	for _, r := range records {
		if r.Scored && r.RelevanceScore >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// Articles is the high-confidence news and web view
func Articles(records []model.Record, threshold float64) []model.Record {
	return bySourceType(HighConfidence(records, threshold), model.SourceNewsFeed, model.SourceWebSearch)
}

// Studies is the high-confidence academic and generative view
func Studies(records []model.Record, threshold float64) []model.Record {
	return bySourceType(HighConfidence(records, threshold), model.SourceAcademicSearch, model.SourceGenerativeSearch)
}

func bySourceType(records []model.Record, types ...model.SourceType) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		for _, t := range types {
			if r.SourceType == t {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// SortKey names an exposed ordering
type SortKey string

const (
	SortByDate      SortKey = "date"
	SortBySource    SortKey = "source"
	SortByRelevance SortKey = "relevance"
)

// Sort orders records in place and stably: date and relevance descending, source ascending.
// Unknown dates sort last.
func Sort(records []model.Record, key SortKey) {
	switch key {
	case SortByDate:
		sort.SliceStable(records, func(i, j int) bool {
			di, dj := sortableDate(records[i]), sortableDate(records[j])
			return di > dj
		})
	case SortBySource:
		sort.SliceStable(records, func(i, j int) bool {
			return strings.ToLower(records[i].SourceName) < strings.ToLower(records[j].SourceName)
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].RelevanceScore > records[j].RelevanceScore
		})
	}
}

// ParseSortKey validates a user supplied key
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(s)); k {
	case SortByDate, SortBySource, SortByRelevance:
		return k, true
	}
	return "", false
}

func sortableDate(r model.Record) string {
	if r.PublishedDate == model.UnknownDate {
		return ""
	}
	return r.PublishedDate
}

func uniqueLower(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
