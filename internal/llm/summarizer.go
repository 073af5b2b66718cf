package llm

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veille/internal/model"
)

// groupConcurrency bounds simultaneous per-keyword summary calls
const groupConcurrency = 3

// Summarizer turns record groups into text. Failures never surface as
// errors: they degrade to ErrorPlaceholder and are logged.
type Summarizer struct {
	provider Provider
	config   Config
	logger   *zap.Logger
}

// NewSummarizer wraps a provider; a nil provider behaves as NullProvider
func NewSummarizer(provider Provider, config Config, logger *zap.Logger) *Summarizer {
	if provider == nil {
		provider = NullProvider{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{provider: provider, config: config, logger: logger}
}

// IsEnabled reports whether a real provider is behind the summarizer
func (s *Summarizer) IsEnabled() bool {
	_, null := s.provider.(NullProvider)
	return !null
}

// ProviderName returns the configured provider name
func (s *Summarizer) ProviderName() string {
	return s.provider.Name()
}

// Summarize generates a summary of text, or a placeholder on failure
func (s *Summarizer) Summarize(ctx context.Context, text string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}
	out, err := s.complete(ctx, text, maxTokens)
	if err != nil {
		s.logger.Warn("summary failed", zap.String("provider", s.provider.Name()), zap.Error(err))
		return ErrorPlaceholder
	}
	return out
}

// SummarizeGrouped produces one summary per keyword group
func (s *Summarizer) SummarizeGrouped(ctx context.Context, grouped map[string][]model.Record) map[string]string {
	summaries := make(map[string]string, len(grouped))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(groupConcurrency)

	for _, kw := range sortedKeys(grouped) {
		records := grouped[kw]
		g.Go(func() error {
			start := time.Now()
			text, err := s.complete(gctx, BuildGroupPrompt(kw, records), s.config.MaxTokens)
			if err != nil {
				s.logger.Warn("group summary failed",
					zap.String("provider", s.provider.Name()),
					zap.String("keyword", kw),
					zap.Error(err))
				text = ErrorPlaceholder
			} else if leaked := uncitedURLs(text, records); len(leaked) > 0 {
				s.logger.Warn("summary cites links outside its records",
					zap.String("keyword", kw),
					zap.Strings("urls", leaked))
			}

			s.logger.Debug("group summarized",
				zap.String("keyword", kw),
				zap.Int("records", len(records)),
				zap.Duration("duration", time.Since(start)))

			mu.Lock()
			summaries[kw] = text
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return summaries
}

// ExecutiveSummary synthesizes the per-keyword summaries into one text.
// It returns "" when there is nothing to synthesize.
func (s *Summarizer) ExecutiveSummary(ctx context.Context, summaries map[string]string) string {
	keywords := make([]string, 0, len(summaries))
	for kw, text := range summaries {
		if !isPlaceholder(text) {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		if !s.IsEnabled() && len(summaries) > 0 {
			return UnavailablePlaceholder
		}
		return ""
	}
	sort.Strings(keywords)

	return s.Summarize(ctx, BuildExecutivePrompt(keywords, summaries), s.config.MaxTokens)
}

func (s *Summarizer) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
		defer cancel()
	}

	resp, err := s.provider.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		Model:       s.config.Model,
		MaxTokens:   maxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return ErrorPlaceholder, nil
	}
	return resp.Text, nil
}

func sortedKeys(m map[string][]model.Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupByKeyword groups records by their originating keyword
func GroupByKeyword(records []model.Record) map[string][]model.Record {
	grouped := make(map[string][]model.Record)
	for _, r := range records {
		grouped[r.Keyword] = append(grouped[r.Keyword], r)
	}
	return grouped
}
