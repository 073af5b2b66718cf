package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SourceType classifies the kind of provider a record came from
type SourceType string

const (
	SourceNewsFeed         SourceType = "NewsFeed"
	SourceAcademicSearch   SourceType = "AcademicSearch"
	SourceWebSearch        SourceType = "WebSearch"
	SourceGenerativeSearch SourceType = "GenerativeSearch"
)

// UnknownDate is stored when a provider omits or malforms the publication date
const UnknownDate = "unknown"

// Record is one normalized item fetched from a source
type Record struct {
	ID             string     `json:"id"`
	Keyword        string     `json:"keyword"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	SourceType     SourceType `json:"source_type"`
	SourceName     string     `json:"source_name"`
	PublishedDate  string     `json:"published_date"`
	Abstract       string     `json:"abstract"`
	Summary        string     `json:"summary,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`

	// Scored is false until the scorer has run over this record
	Scored bool `json:"scored"`
}

// Text returns the lowercased title and abstract used for matching
func (r Record) Text() string {
	return strings.ToLower(r.Title + " " + r.Abstract)
}

// DedupKey returns the batch uniqueness key (keyword, source type, url)
func (r Record) DedupKey() string {
	return r.Keyword + "|" + string(r.SourceType) + "|" + r.URL
}

// RecordID derives a stable identifier from the dedup key
func RecordID(keyword string, sourceType SourceType, url string) string {
	hash := sha256.Sum256([]byte(keyword + "|" + string(sourceType) + "|" + url))
	return hex.EncodeToString(hash[:16])
}

// DedupRecords removes records sharing a dedup key, keeping the first
func DedupRecords(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		key := r.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Query is the effective search string used as the cache key
type Query struct {
	Text      string    `json:"text"`
	Keywords  []string  `json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
}

// NewQuery normalizes keywords into an effective query.
// Keywords are trimmed, lowercased and deduplicated in first-seen order.
func NewQuery(keywords []string) Query {
	seen := make(map[string]bool, len(keywords))
	var kept []string
	for _, kw := range keywords {
		norm := strings.Join(strings.Fields(strings.ToLower(kw)), " ")
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		kept = append(kept, norm)
	}

	return Query{
		Text:      strings.Join(kept, " "),
		Keywords:  kept,
		CreatedAt: time.Now().UTC(),
	}
}

// IsEmpty reports whether the query has no usable terms
func (q Query) IsEmpty() bool {
	return q.Text == ""
}

// CacheEntry is one stored fetch batch
type CacheEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Records   []Record  `json:"records"`
}

// IsValid reports whether the entry is younger than ttl at now
func (e CacheEntry) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}
