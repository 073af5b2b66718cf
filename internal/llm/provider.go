package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/util"
)

// Placeholders written in place of a summary
const (
	ErrorPlaceholder       = "Erreur de résumé"
	UnavailablePlaceholder = "Résumé indisponible"
)

// maxGroupRecords caps how many records of one keyword go into a prompt
const maxGroupRecords = 10

// abstractPromptRunes trims each record abstract inside a prompt
const abstractPromptRunes = 400

const systemPrompt = "Tu es un analyste d'intelligence d'affaires."

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the generated text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Check verifies the provider is configured and reachable
	Check(ctx context.Context) error
}

// CompletionRequest contains the input for one generation call
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse contains the generated text
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", "none"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic/Gemini
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens   int
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "none",
		Timeout:     60,
		MaxTokens:   600,
		Temperature: 0.4,
	}
}

// BuildGroupPrompt constructs the per-keyword synthesis prompt.
// Only the first maxGroupRecords records are included.
func BuildGroupPrompt(keyword string, records []model.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tu es un expert en veille stratégique. Résume les informations ci-dessous concernant le sujet suivant : %q.\n", keyword)
	b.WriteString("Sois synthétique, structuré, professionnel et clair. Identifie les tendances, avancées ou faits saillants.\n")
	b.WriteString("Ne cite que les liens présents dans la liste.\n\nArticles :\n")

	for i, rec := range records {
		if i >= maxGroupRecords {
			break
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", rec.Title, util.Truncate(rec.Abstract, abstractPromptRunes), rec.URL)
	}
	return b.String()
}

// BuildExecutivePrompt constructs the overall synthesis prompt from per-keyword summaries
func BuildExecutivePrompt(keywords []string, summaries map[string]string) string {
	var b strings.Builder
	b.WriteString("Rédige un résumé exécutif de 5 à 8 phrases à partir des synthèses thématiques suivantes.\n")
	b.WriteString("Mets en avant les tendances communes, les risques et les opportunités.\n\n")

	for _, kw := range keywords {
		s, ok := summaries[kw]
		if !ok || isPlaceholder(s) {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", kw, s)
	}
	return b.String()
}

func isPlaceholder(s string) bool {
	return s == ErrorPlaceholder || s == UnavailablePlaceholder
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)]+`)

// extractURLs extracts all URLs from text
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	return unique
}

// uncitedURLs returns URLs in text that are not among the records' URLs
func uncitedURLs(text string, records []model.Record) []string {
	allowed := make(map[string]bool, len(records))
	for _, r := range records {
		allowed[r.URL] = true
	}

	var leaked []string
	for _, u := range extractURLs(text) {
		if !allowed[u] {
			leaked = append(leaked, u)
		}
	}
	return leaked
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
