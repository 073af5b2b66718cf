// Package refine derives a narrower secondary query from a fetched corpus.
package refine

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/veille/internal/model"
)

// minTermLength drops short tokens that carry little meaning
const minTermLength = 3

// Refiner extracts the most frequent non-trivial terms from record abstracts
type Refiner struct {
	topN    int
	exclude map[string]bool
}

// NewRefiner creates a refiner; topN <= 0 defaults to 5
func NewRefiner(cfg model.RefineConfig) *Refiner {
	topN := cfg.TopN
	if topN <= 0 {
		topN = 5
	}
	exclude := make(map[string]bool, len(cfg.Exclude))
	for _, term := range cfg.Exclude {
		exclude[strings.ToLower(strings.TrimSpace(term))] = true
	}
	return &Refiner{topN: topN, exclude: exclude}
}

// Refine returns the secondary query, or "" when there is too little text.
// Ties are broken alphabetically so the result is deterministic.
func (r *Refiner) Refine(records []model.Record) string {
	return strings.Join(r.Terms(records), " ")
}

// Terms returns the top terms in descending frequency
func (r *Refiner) Terms(records []model.Record) []string {
	counts := make(map[string]int)
	for _, rec := range records {
		for _, tok := range tokenize(rec.Abstract) {
			if len([]rune(tok)) < minTermLength || stopWords[tok] || r.exclude[tok] || isNumeric(tok) {
				continue
			}
			counts[tok]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > r.topN {
		terms = terms[:r.topN]
	}
	return terms
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
}

func isNumeric(tok string) bool {
	for _, c := range tok {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}
