package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/cache"
	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/source"
	"github.com/ppiankov/veille/internal/worker"
)

// CollectorConfig tunes one collector. A TTL of zero or less never expires.
type CollectorConfig struct {
	TTL        time.Duration
	MaxResults int
	Workers    int
	Parallel   bool

	// NoCache skips the cache read; results are still written through
	NoCache bool
}

// CollectorConfigFrom derives collector settings from the application config
func CollectorConfigFrom(cfg *model.Config) CollectorConfig {
	return CollectorConfig{
		TTL:        cfg.Cache.TTL,
		MaxResults: cfg.Sources.MaxResults,
		Workers:    cfg.Concurrency.Workers,
		Parallel:   cfg.Concurrency.Parallel,
	}
}

// Collector runs the enabled adapters for a keyword set behind the cache
type Collector struct {
	registry *source.Registry
	store    cache.Store
	config   CollectorConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewCollector creates a collector; a nil store disables caching
func NewCollector(registry *source.Registry, store cache.Store, config CollectorConfig, logger *zap.Logger) *Collector {
	if store == nil {
		store = cache.NullStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 20
	}
	return &Collector{
		registry: registry,
		store:    store,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// fetchJob is one (adapter, keyword) invocation
type fetchJob struct {
	index      int
	adapter    source.Adapter
	keyword    string
	maxResults int
}

type fetchResult struct {
	index    int
	adapter  string
	keyword  string
	records  []model.Record
	err      error
	duration time.Duration
}

func (r *fetchResult) GetError() error { return r.err }

func (j *fetchJob) Execute(ctx context.Context) (result worker.Result) {
	res := &fetchResult{index: j.index, adapter: j.adapter.ID(), keyword: j.keyword}
	start := time.Now()
	defer func() {
		res.duration = time.Since(start)
		if v := recover(); v != nil {
			res.records, res.err = nil, fmt.Errorf("adapter %s panicked: %v", res.adapter, v)
		}
		result = res
	}()
	res.records, res.err = j.adapter.Fetch(ctx, j.keyword, j.maxResults)
	return res
}

// Collect returns the records for keywords from the cache or the enabled adapters.
// Adapter failures are contained and reported in RunStats; only when every
// adapter fails and no cached batch of any age exists is ErrAllSourcesFailed returned.
func (c *Collector) Collect(ctx context.Context, keywords []string, enabled map[string]bool) ([]model.Record, model.RunStats, error) {
	return c.collect(ctx, keywords, enabled, c.config.MaxResults)
}

func (c *Collector) collect(ctx context.Context, keywords []string, enabled map[string]bool, maxResults int) ([]model.Record, model.RunStats, error) {
	q := model.NewQuery(keywords)
	stats := model.RunStats{Query: q.Text}
	if q.IsEmpty() {
		return nil, stats, fmt.Errorf("no keywords given")
	}
	log := c.logger.With(zap.String("query", q.Text))

	adapters, err := c.registry.Select(enabled)
	if err != nil {
		return nil, stats, err
	}
	if len(adapters) == 0 {
		return nil, stats, fmt.Errorf("no sources enabled")
	}

	// The previous batch serves the cache hit, the offline fallback and the new-results count
	var previous *model.CacheEntry
	if c.config.NoCache {
		previous = c.readAnyAge(ctx, q.Text, &stats)
	} else {
		valid, entry, err := cache.Lookup(ctx, c.store, q.Text, c.config.TTL, c.now())
		if err != nil {
			log.Warn("cache read failed", zap.Error(err))
			stats.CacheDegraded = true
		}
		if valid {
			stats.FromCache = true
			stats.Total = len(entry.Records)
			log.Info("served from cache", zap.Int("records", stats.Total), zap.Time("cached_at", entry.Timestamp))
			return entry.Records, stats, nil
		}
		previous = entry
	}

	jobs := make([]worker.Job, 0, len(adapters)*len(q.Keywords))
	for _, a := range adapters {
		for _, kw := range q.Keywords {
			jobs = append(jobs, &fetchJob{index: len(jobs), adapter: a, keyword: kw, maxResults: maxResults})
		}
	}

	var results []worker.Result
	if c.config.Parallel {
		results = worker.RunParallel(ctx, c.config.Workers, jobs)
	} else {
		results = worker.RunSequential(ctx, jobs)
	}

	// A job cut off by cancellation, or never started, counts as a failure of its adapter
	fetched := make([]*fetchResult, len(jobs))
	for _, r := range results {
		if fr, ok := r.(*fetchResult); ok && fr != nil {
			fetched[fr.index] = fr
		}
	}
	for i, fr := range fetched {
		if fr != nil {
			continue
		}
		job := jobs[i].(*fetchJob)
		reason := ctx.Err()
		if reason == nil {
			reason = errors.New("job produced no result")
		}
		fetched[i] = &fetchResult{index: i, adapter: job.adapter.ID(), keyword: job.keyword, err: reason}
	}

	var merged []model.Record
	for _, r := range fetched {
		outcome := model.AdapterOutcome{
			Adapter:  r.adapter,
			Keyword:  r.keyword,
			Records:  len(r.records),
			Duration: r.duration,
		}
		fields := []zap.Field{zap.String("adapter", r.adapter), zap.String("keyword", r.keyword)}

		switch {
		case errors.Is(r.err, model.ErrMissingCredentials):
			outcome.Skipped = true
			outcome.Records = 0
			log.Debug("adapter skipped", append(fields, zap.Error(r.err))...)
		case r.err != nil:
			outcome.Error = r.err.Error()
			outcome.Records = 0
			log.Warn("adapter failed", append(fields, zap.Error(r.err))...)
		default:
			merged = append(merged, r.records...)
			log.Debug("adapter done", append(fields, zap.Int("records", len(r.records)), zap.Duration("duration", r.duration))...)
		}
		stats.Record(outcome)
	}

	if stats.Succeeded == 0 {
		if previous != nil && len(previous.Records) > 0 {
			stats.Offline = true
			stats.Total = len(previous.Records)
			log.Warn("all sources failed, serving stale cache",
				zap.Time("cached_at", previous.Timestamp), zap.Int("records", stats.Total))
			return previous.Records, stats, nil
		}
		log.Warn("all sources failed", zap.String("stats", stats.String()))
		return nil, stats, model.ErrAllSourcesFailed
	}

	merged = model.DedupRecords(merged)
	stats.Total = len(merged)
	stats.NewSinceLastCheck = countNew(merged, previous)

	if len(merged) > 0 {
		// Results gathered before a deadline are still worth keeping
		if err := c.store.Write(context.WithoutCancel(ctx), q.Text, merged, c.now()); err != nil {
			log.Warn("cache write failed", zap.Error(err))
			stats.CacheDegraded = true
		}
	}

	log.Info("collect finished",
		zap.String("stats", stats.String()),
		zap.Int("records", stats.Total),
		zap.Int("new", stats.NewSinceLastCheck))

	return merged, stats, nil
}

// readAnyAge loads the latest batch regardless of TTL
func (c *Collector) readAnyAge(ctx context.Context, query string, stats *model.RunStats) *model.CacheEntry {
	_, entry, err := cache.Lookup(ctx, c.store, query, 0, c.now())
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("query", query), zap.Error(err))
		stats.CacheDegraded = true
		return nil
	}
	return entry
}

// countNew counts records whose (keyword, url) does not appear in the previous batch
func countNew(current []model.Record, previous *model.CacheEntry) int {
	if previous == nil {
		return len(current)
	}
	seen := make(map[string]bool, len(previous.Records))
	for _, r := range previous.Records {
		seen[r.Keyword+"|"+r.URL] = true
	}
	n := 0
	for _, r := range current {
		if !seen[r.Keyword+"|"+r.URL] {
			n++
		}
	}
	return n
}
