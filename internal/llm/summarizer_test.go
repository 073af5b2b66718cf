package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veille/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	mu       sync.Mutex
	prompts  []string
	failOn   string
	reply    func(prompt string) string
	inFlight int32
	maxSeen  int32
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Check(ctx context.Context) error { return nil }

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	m.mu.Unlock()

	if m.failOn != "" && strings.Contains(req.Prompt, m.failOn) {
		return nil, errors.New("provider down")
	}
	text := "ok"
	if m.reply != nil {
		text = m.reply(req.Prompt)
	}
	return &CompletionResponse{Text: text}, nil
}

func records(keyword string, n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{
			Keyword:  keyword,
			Title:    fmt.Sprintf("%s article %d", keyword, i),
			URL:      fmt.Sprintf("https://example.com/%s/%d", keyword, i),
			Abstract: "résumé",
		}
	}
	return out
}

func TestSummarizer_NullProvider(t *testing.T) {
	s := NewSummarizer(nil, DefaultConfig(), nil)

	assert.False(t, s.IsEnabled())
	assert.Equal(t, "none", s.ProviderName())
	assert.Equal(t, UnavailablePlaceholder, s.Summarize(context.Background(), "texte", 100))

	grouped := map[string][]model.Record{"ia": records("ia", 2)}
	summaries := s.SummarizeGrouped(context.Background(), grouped)
	assert.Equal(t, map[string]string{"ia": UnavailablePlaceholder}, summaries)
	assert.Equal(t, UnavailablePlaceholder, s.ExecutiveSummary(context.Background(), summaries))
}

func TestSummarizer_SummarizeGrouped(t *testing.T) {
	mock := &MockProvider{
		failOn: "\"finance\"",
		reply: func(prompt string) string {
			return "synthèse"
		},
	}
	s := NewSummarizer(mock, DefaultConfig(), nil)
	require.True(t, s.IsEnabled())

	grouped := map[string][]model.Record{
		"ia":      records("ia", 15),
		"finance": records("finance", 2),
		"santé":   records("santé", 1),
		"québec":  records("québec", 1),
	}
	summaries := s.SummarizeGrouped(context.Background(), grouped)

	assert.Len(t, summaries, 4)
	assert.Equal(t, ErrorPlaceholder, summaries["finance"])
	assert.Equal(t, "synthèse", summaries["ia"])
	assert.Equal(t, "synthèse", summaries["santé"])
	assert.LessOrEqual(t, atomic.LoadInt32(&mock.maxSeen), int32(groupConcurrency))

	for _, p := range mock.prompts {
		if strings.Contains(p, "\"ia\"") {
			assert.Equal(t, maxGroupRecords, strings.Count(p, "\n- "), "ia prompt should hold at most 10 records")
		}
	}
}

func TestSummarizer_ExecutiveSkipsPlaceholders(t *testing.T) {
	mock := &MockProvider{reply: func(string) string { return "exécutif" }}
	s := NewSummarizer(mock, DefaultConfig(), nil)

	got := s.ExecutiveSummary(context.Background(), map[string]string{
		"ia":      "tendance IA",
		"finance": ErrorPlaceholder,
	})
	assert.Equal(t, "exécutif", got)
	require.Len(t, mock.prompts, 1)
	assert.Contains(t, mock.prompts[0], "tendance IA")
	assert.NotContains(t, mock.prompts[0], "## finance")

	assert.Equal(t, "", s.ExecutiveSummary(context.Background(), map[string]string{"x": ErrorPlaceholder}))
}

func TestSummarizer_SummarizeFailure(t *testing.T) {
	mock := &MockProvider{failOn: "boom"}
	s := NewSummarizer(mock, DefaultConfig(), nil)
	assert.Equal(t, ErrorPlaceholder, s.Summarize(context.Background(), "boom", 0))
}

func TestUncitedURLs(t *testing.T) {
	recs := records("ia", 1)
	text := "Voir https://example.com/ia/0. Et https://ailleurs.example/x, aussi."
	assert.Equal(t, []string{"https://ailleurs.example/x"}, uncitedURLs(text, recs))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{Provider: "none"})
	require.NoError(t, err)
	assert.IsType(t, NullProvider{}, p)

	p, err = NewProvider(Config{})
	require.NoError(t, err)
	assert.IsType(t, NullProvider{}, p)

	_, err = NewProvider(Config{Provider: "bard"})
	assert.Error(t, err)

	_, err = NewProvider(Config{Provider: "openai"})
	assert.Error(t, err, "openai without a key must fail")

	p, err = NewProvider(Config{Provider: "ollama", Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestConfigFromModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	cfg := ConfigFromModel(model.LLMConfig{Provider: "anthropic", MaxTokens: 600}, model.HTTPConfig{HTTPSProxy: "http://proxy:3128"})

	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, 600, cfg.MaxTokens)
	assert.Equal(t, "http://proxy:3128", cfg.HTTPSProxy)
}
