package source

import (
	"context"
	"strings"

	"github.com/ppiankov/veille/internal/model"
)

// ExcludeFilter drops clearly off-topic records at the source boundary
type ExcludeFilter struct {
	terms []string
}

// NewExcludeFilter creates a filter over lowercase exclude terms
func NewExcludeFilter(terms []string) *ExcludeFilter {
	f := &ExcludeFilter{}
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			f.terms = append(f.terms, t)
		}
	}
	return f
}

// Excluded reports whether the record mentions any exclude term
func (f *ExcludeFilter) Excluded(r model.Record) bool {
	text := r.Text()
	for _, term := range f.terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Apply returns the records that pass the filter
func (f *ExcludeFilter) Apply(records []model.Record) []model.Record {
	if len(f.terms) == 0 {
		return records
	}
	kept := records[:0:0]
	for _, r := range records {
		if !f.Excluded(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

type filteredAdapter struct {
	Adapter
	filter *ExcludeFilter
}

// WithExclude wraps an adapter so its output passes through the exclude filter
func WithExclude(a Adapter, f *ExcludeFilter) Adapter {
	if f == nil || len(f.terms) == 0 {
		return a
	}
	return &filteredAdapter{Adapter: a, filter: f}
}

func (a *filteredAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	records, err := a.Adapter.Fetch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	return a.filter.Apply(records), nil
}
