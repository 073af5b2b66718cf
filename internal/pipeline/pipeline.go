package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/llm"
	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/refine"
	"github.com/ppiankov/veille/internal/score"
)

// minFastResults is the floor for the halved per-adapter cap in fast mode
const minFastResults = 5

// Pipeline orchestrates one complete watch run
type Pipeline struct {
	config     *model.Config
	collector  *Collector
	scorer     *score.Scorer
	refiner    *refine.Refiner
	summarizer *llm.Summarizer
	sortKey    score.SortKey
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSummarizer sets the summarizer; without one, summaries are skipped
func WithSummarizer(s *llm.Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// WithSortKey sets the ordering of the report records
func WithSortKey(k score.SortKey) Option {
	return func(p *Pipeline) { p.sortKey = k }
}

// WithLogger sets the pipeline logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, collector *Collector, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:    cfg,
		collector: collector,
		scorer:    score.NewScorer(cfg.Scoring),
		refiner:   refine.NewRefiner(cfg.Refine),
		sortKey:   score.SortByRelevance,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunWatch collects, refines, scores and summarizes the corpus for keywords.
// adapterFlags overrides the configured sources when non-nil. Fast mode limits
// the run to free adapters with a halved cap and skips refinement and summaries.
// When every source fails with no cache to fall back on, the returned report
// still carries the run stats alongside ErrAllSourcesFailed.
func (p *Pipeline) RunWatch(ctx context.Context, keywords []string, adapterFlags map[string]bool, fastMode bool) (*model.Report, error) {
	q := model.NewQuery(keywords)
	enabled := adapterFlags
	if enabled == nil {
		enabled = p.config.Sources.Enabled
	}
	maxResults := p.config.Sources.MaxResults
	if fastMode {
		enabled = freeOnly(enabled)
		maxResults = max(maxResults/2, minFastResults)
	}

	report := &model.Report{
		Query:       q.Text,
		Keywords:    q.Keywords,
		GeneratedAt: p.now().UTC(),
		Threshold:   p.config.Scoring.Threshold,
	}

	records, stats, err := p.collector.collect(ctx, q.Keywords, enabled, maxResults)
	report.Stats = stats
	if err != nil {
		if errors.Is(err, model.ErrAllSourcesFailed) {
			return report, err
		}
		return nil, fmt.Errorf("collect: %w", err)
	}

	if !fastMode && p.config.Refine.Enabled && !stats.FromCache {
		records = p.refine(ctx, records, enabled, maxResults, report)
	}

	filterTerms := append(append([]string{}, p.config.Scoring.Required...), q.Keywords...)
	records = score.FilterRelevant(records, filterTerms)
	records = p.scorer.ScoreAll(records, q.Keywords)
	score.Sort(records, p.sortKey)

	report.Records = records
	report.Articles = score.Articles(records, report.Threshold)
	report.Studies = score.Studies(records, report.Threshold)
	report.WeakSignals = score.WeakSignals(records)
	report.Topics = score.TopicCounts(records)

	if !fastMode && p.summarizer != nil && len(records) > 0 {
		grouped := llm.GroupByKeyword(records)
		report.Summaries = p.summarizer.SummarizeGrouped(ctx, grouped)
		report.Executive = p.summarizer.ExecutiveSummary(ctx, report.Summaries)
	}

	p.logger.Info("watch finished",
		zap.String("query", q.Text),
		zap.String("stats", report.Stats.String()),
		zap.Int("records", len(records)),
		zap.Int("articles", len(report.Articles)),
		zap.Int("studies", len(report.Studies)),
		zap.Bool("fast", fastMode))

	return report, nil
}

// refine runs the secondary query on the refinement sources and merges its records
func (p *Pipeline) refine(ctx context.Context, records []model.Record, enabled map[string]bool, maxResults int, report *model.Report) []model.Record {
	secondary := p.refiner.Refine(records)
	if secondary == "" {
		return records
	}
	report.SecondaryQuery = secondary

	sources := make(map[string]bool, len(p.config.Refine.Sources))
	for _, id := range p.config.Refine.Sources {
		if enabled[id] {
			sources[id] = true
		}
	}
	if len(sources) == 0 {
		return records
	}

	extra, stats, err := p.collector.collect(ctx, []string{secondary}, sources, maxResults)
	if err != nil {
		p.logger.Warn("refinement round failed", zap.String("secondary", secondary), zap.Error(err))
		return records
	}

	before := len(records)
	records = dedupKeywordURL(append(records, extra...))
	report.Stats.Merge(stats)
	report.Stats.Refined = len(records) - before

	p.logger.Debug("refinement merged",
		zap.String("secondary", secondary),
		zap.Int("added", report.Stats.Refined))
	return records
}

// freeOnly keeps the enabled adapters that need no credentials
func freeOnly(enabled map[string]bool) map[string]bool {
	out := make(map[string]bool, len(model.FreeAdapters))
	for _, id := range model.FreeAdapters {
		if enabled[id] {
			out[id] = true
		}
	}
	return out
}

// dedupKeywordURL drops records repeating an earlier (keyword, url) pair
func dedupKeywordURL(records []model.Record) []model.Record {
	seen := make(map[string]bool, len(records))
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		key := r.Keyword + "|" + r.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
