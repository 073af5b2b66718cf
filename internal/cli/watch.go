package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veille/internal/export"
	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/pipeline"
	"github.com/ppiankov/veille/internal/score"
)

var (
	profile     string
	sourcesFlag []string
	fastMode    bool
	sequential  bool
	maxResults  int
	ttl         time.Duration
	noCache     bool
	outCSV      string
	outJSON     string
	outMD       string
	threshold   float64
	sortBy      string
	llmProvider string
	llmModel    string
	timeout     time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [keywords...]",
	Short: "Collect, score and summarize results for a keyword set",
	Long: `Watch queries every enabled source for each keyword, reuses cached
results younger than the TTL, scores relevance and writes the report.

Example:
  veille watch ia finance
  veille watch --profile fintech --md veille.md
  veille watch agentique québec --sources news,arxiv --fast --csv out.csv`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addWatchFlags(watchCmd)

	watchCmd.Flags().StringVar(&profile, "profile", "", "named keyword profile from config")
	watchCmd.Flags().StringVar(&outCSV, "csv", "", "output CSV path")
	watchCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	watchCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
}

// addWatchFlags registers the flags shared by watch and batch
func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&sourcesFlag, "sources", nil, "comma-separated sources to use (default: enabled in config)")
	cmd.Flags().BoolVar(&fastMode, "fast", false, "free sources only, halved result cap, no refinement or summaries")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "query sources one at a time")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "max results per source and keyword (default from config)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "cache validity window (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached results (results are still cached)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "high-confidence score threshold (default from config)")
	cmd.Flags().StringVar(&sortBy, "sort", "relevance", "sort records by date, source or relevance")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama, gemini, none)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall run timeout")
}

// watchConfig applies flag overrides to the loaded configuration
func watchConfig(cmd *cobra.Command) (*model.Config, pipeline.CollectorConfig, score.SortKey, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, pipeline.CollectorConfig{}, "", err
	}

	if cmd.Flags().Changed("max-results") {
		cfg.Sources.MaxResults = maxResults
	}
	if cmd.Flags().Changed("ttl") {
		cfg.Cache.TTL = ttl
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Scoring.Threshold = threshold
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if sequential {
		cfg.Concurrency.Parallel = false
	}
	if len(sourcesFlag) > 0 {
		cfg.Sources.Enabled = make(map[string]bool, len(sourcesFlag))
		for _, id := range sourcesFlag {
			if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
				cfg.Sources.Enabled[id] = true
			}
		}
	}

	key, ok := score.ParseSortKey(sortBy)
	if !ok {
		return nil, pipeline.CollectorConfig{}, "", fmt.Errorf("invalid --sort %q (use date, source or relevance)", sortBy)
	}

	collectCfg := pipeline.CollectorConfigFrom(cfg)
	collectCfg.NoCache = noCache
	return cfg, collectCfg, key, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, collectCfg, sortKey, err := watchConfig(cmd)
	if err != nil {
		return err
	}

	keywords := args
	if profile != "" {
		terms, ok := cfg.Profiles[profile]
		if !ok {
			return fmt.Errorf("unknown profile %q", profile)
		}
		keywords = append(append([]string{}, terms...), args...)
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords: pass keywords or --profile")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a := newApp(ctx, cfg, collectCfg, sortKey)
	defer a.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Watching: %s\n", strings.Join(keywords, ", "))
		fmt.Fprintf(os.Stderr, "Cache TTL: %v (no-cache: %v)\n\n", cfg.Cache.TTL, noCache)
	}

	report, err := a.pipeline.RunWatch(ctx, keywords, cfg.Sources.Enabled, fastMode)
	if report != nil {
		printRunSummary(report)
	}
	if err != nil {
		if errors.Is(err, model.ErrAllSourcesFailed) {
			return fmt.Errorf("no results: %w", err)
		}
		return fmt.Errorf("watch failed: %w", err)
	}

	return writeOutputs(report, outCSV, outJSON, outMD)
}

// printRunSummary prints the partial-failure signal and the headline counts
func printRunSummary(report *model.Report) {
	fmt.Fprintf(os.Stderr, "%s\n", report.Stats.String())
	fmt.Fprintf(os.Stderr, "%d results, %d articles, %d studies above %.2f",
		len(report.Records), len(report.Articles), len(report.Studies), report.Threshold)
	if report.Stats.NewSinceLastCheck > 0 {
		fmt.Fprintf(os.Stderr, ", %d new since last check", report.Stats.NewSinceLastCheck)
	}
	fmt.Fprintln(os.Stderr)
	if report.SecondaryQuery != "" {
		fmt.Fprintf(os.Stderr, "Secondary query: %s (+%d)\n", report.SecondaryQuery, report.Stats.Refined)
	}
}

// writeOutputs writes each requested format; with none requested, Markdown goes to stdout
func writeOutputs(report *model.Report, csvPath, jsonPath, mdPath string) error {
	if csvPath == "" && jsonPath == "" && mdPath == "" {
		return export.WriteMarkdown(os.Stdout, report)
	}

	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{csvPath, func(w io.Writer) error { return export.WriteCSV(w, report.Records) }},
		{jsonPath, func(w io.Writer) error { return export.WriteJSON(w, report) }},
		{mdPath, func(w io.Writer) error { return export.WriteMarkdown(w, report) }},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := export.WriteFile(out.path, out.write); err != nil {
			return fmt.Errorf("write %s: %w", out.path, err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", out.path)
	}
	return nil
}
