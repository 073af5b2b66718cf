package source

import (
	"strings"
	"time"

	"github.com/ppiankov/veille/internal/model"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01",
}

// NormalizeDate maps a provider date to YYYY-MM-DD, a bare YYYY, or model.UnknownDate
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.UnknownDate
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}

	if len(raw) == 4 {
		if _, err := time.Parse("2006", raw); err == nil {
			return raw
		}
	}

	// Prefix of an ISO timestamp with an unusual suffix
	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return t.Format("2006-01-02")
		}
	}

	return model.UnknownDate
}

// formatTime renders a parsed feed time for NormalizeDate, empty when nil
func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
