package cli

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/cache"
	"github.com/ppiankov/veille/internal/llm"
	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/pipeline"
	"github.com/ppiankov/veille/internal/score"
	"github.com/ppiankov/veille/internal/source"
	"github.com/ppiankov/veille/internal/util"
	"github.com/ppiankov/veille/internal/worker"
)

// app bundles what one watch or batch invocation needs
type app struct {
	pipeline *pipeline.Pipeline
	store    cache.Store
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("close cache", zap.Error(err))
	}
}

// credentialsFromEnv reads provider keys from the environment
func credentialsFromEnv() source.Credentials {
	return source.Credentials{
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		GoogleCSEID:        os.Getenv("GOOGLE_CSE_ID"),
		SerpAPIKey:         os.Getenv("SERPAPI_API_KEY"),
		PerplexityAPIKey:   os.Getenv("PERPLEXITY_API_KEY"),
		SemanticScholarKey: os.Getenv("SEMANTIC_SCHOLAR_API_KEY"),
	}
}

// newApp wires fetcher, adapters, cache, summarizer and pipeline from cfg
func newApp(ctx context.Context, cfg *model.Config, collectCfg pipeline.CollectorConfig, sortKey score.SortKey) *app {
	limiter := worker.NewLimiter(cfg.Concurrency.RequestsPerSecond, 1)
	opts := []source.FetcherOption{
		source.WithLimiter(limiter),
		source.WithLogger(logger),
		source.WithHTTPClient(util.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy)),
	}
	if cfg.HTTP.RespectRobots {
		opts = append(opts, source.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)))
	}
	fetcher := source.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, opts...)

	registry := source.DefaultRegistry(fetcher, credentialsFromEnv(), source.Options{
		ExcludeTerms: cfg.Sources.ExcludeTerms,
		NewsWindow:   cfg.Sources.NewsWindow,
	})

	store := cache.Open(cfg.Cache, logger)
	collector := pipeline.NewCollector(registry, store, collectCfg, logger)

	return &app{
		pipeline: pipeline.NewPipeline(cfg, collector,
			pipeline.WithSummarizer(newSummarizer(ctx, cfg)),
			pipeline.WithSortKey(sortKey),
			pipeline.WithLogger(logger),
		),
		store: store,
	}
}

// newSummarizer builds the configured provider. A provider that cannot be
// built or reached degrades to the null summarizer with a warning.
func newSummarizer(ctx context.Context, cfg *model.Config) *llm.Summarizer {
	llmCfg := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)

	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		logger.Warn("LLM provider unavailable, summaries disabled", zap.String("provider", llmCfg.Provider), zap.Error(err))
		provider = llm.NullProvider{}
	} else if err := provider.Check(ctx); err != nil {
		logger.Warn("LLM provider check failed, summaries disabled", zap.String("provider", llmCfg.Provider), zap.Error(err))
		provider = llm.NullProvider{}
	}

	return llm.NewSummarizer(provider, llmCfg, logger)
}
