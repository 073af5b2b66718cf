package score

import (
	"strings"

	"github.com/ppiankov/veille/internal/model"
)

var weakSignalMarkers = []string{"startup", "emerging"}

// WeakSignals returns titles of records whose abstract hints at early-stage activity
func WeakSignals(records []model.Record) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, r := range records {
		abstract := strings.ToLower(r.Abstract)
		for _, marker := range weakSignalMarkers {
			if strings.Contains(abstract, marker) {
				if !seen[r.Title] {
					seen[r.Title] = true
					titles = append(titles, r.Title)
				}
				break
			}
		}
	}
	return titles
}

// Topic categories
const (
	TopicHealth  = "Santé"
	TopicFinance = "Finance"
	TopicAI      = "IA"
	TopicOther   = "Autres"
)

// Topics lists the categories in display order
var Topics = []string{TopicHealth, TopicFinance, TopicAI, TopicOther}

var topicRules = []struct {
	topic   string
	markers []string
}{
	{TopicHealth, []string{"health", "santé", "medical", "médical", "hôpital", "hospital"}},
	{TopicFinance, []string{"finance", "bank", "banque", "fraud", "fraude", "invest"}},
	{TopicAI, []string{" ai ", " ia ", "agent", "llm", "intelligence artificielle", "artificial intelligence"}},
}

// Categorize assigns the first matching topic, in health, finance, AI order
func Categorize(r model.Record) string {
	text := " " + r.Text() + " "
	for _, rule := range topicRules {
		for _, m := range rule.markers {
			if strings.Contains(text, m) {
				return rule.topic
			}
		}
	}
	return TopicOther
}

// TopicCounts counts records per topic
func TopicCounts(records []model.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[Categorize(r)]++
	}
	return counts
}
