package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/veille/internal/model"
)

// Adapter fetches records from one external provider.
// Implementations hold no mutable state and are safe for concurrent use.
type Adapter interface {
	// ID returns the adapter identifier used in configuration
	ID() string

	// SourceType returns the kind of records produced
	SourceType() model.SourceType

	// Fetch returns at most maxResults records for query
	Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error)
}

// Credentials carries provider keys read from the environment
type Credentials struct {
	GoogleAPIKey       string
	GoogleCSEID        string
	SerpAPIKey         string
	PerplexityAPIKey   string
	SemanticScholarKey string
}

// Registry holds the available adapters by ID
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// DefaultRegistry registers every built-in adapter, each wrapped with the exclude pre-filter
func DefaultRegistry(f *Fetcher, creds Credentials, opts Options) *Registry {
	r := NewRegistry()
	exclude := NewExcludeFilter(opts.ExcludeTerms)

	for _, a := range []Adapter{
		NewNewsFeedAdapter(f, "", opts.NewsWindow),
		NewArxivAdapter(f, ""),
		NewDOAJAdapter(f, ""),
		NewSemanticScholarAdapter(f, "", creds.SemanticScholarKey),
		NewGoogleSearchAdapter(f, "", creds.GoogleAPIKey, creds.GoogleCSEID),
		NewConsensusAdapter(f, "", creds.SerpAPIKey),
		NewPerplexityAdapter(f, "", creds.PerplexityAPIKey),
	} {
		r.Register(WithExclude(a, exclude))
	}

	return r
}

// Options tunes the built-in adapters
type Options struct {
	ExcludeTerms []string
	NewsWindow   string
}

// Register adds or replaces an adapter
func (r *Registry) Register(a Adapter) {
	r.adapters[a.ID()] = a
}

// Get returns the adapter with the given ID
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(id)]
	return a, ok
}

// IDs returns registered adapter IDs in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Select resolves the enabled adapter IDs, in sorted order for reproducible runs
func (r *Registry) Select(enabled map[string]bool) ([]Adapter, error) {
	var out []Adapter
	for _, id := range r.IDs() {
		if enabled[id] {
			out = append(out, r.adapters[id])
		}
	}
	for id, on := range enabled {
		if _, ok := r.adapters[strings.ToLower(id)]; on && !ok {
			return nil, fmt.Errorf("unknown source %q (available: %s)", id, strings.Join(r.IDs(), ", "))
		}
	}
	return out, nil
}

// missingCredentials builds the skip error for adapters without keys
func missingCredentials(adapter string, keys ...string) error {
	return &model.AdapterError{
		Adapter:  adapter,
		Kind:     model.ErrMissingCredentials,
		Attempts: 1,
		Err:      fmt.Errorf("set %s", strings.Join(keys, " and ")),
	}
}

// newRecord builds a normalized record; it is the only constructor adapters use
func newRecord(keyword string, st model.SourceType, sourceName, title, link, date, abstract string) model.Record {
	title = strings.TrimSpace(title)
	link = strings.TrimSpace(link)
	return model.Record{
		ID:            model.RecordID(keyword, st, link),
		Keyword:       keyword,
		Title:         title,
		URL:           link,
		SourceType:    st,
		SourceName:    strings.TrimSpace(sourceName),
		PublishedDate: NormalizeDate(date),
		Abstract:      abstract,
	}
}

// capRecords dedups and truncates to maxResults
func capRecords(records []model.Record, maxResults int) []model.Record {
	records = model.DedupRecords(records)
	if maxResults > 0 && len(records) > maxResults {
		records = records[:maxResults]
	}
	return records
}
