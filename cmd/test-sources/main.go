// Test program that queries every adapter live for one keyword.
// Shows which providers answer, how fast, and what they return.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/source"
	"github.com/ppiankov/veille/internal/util"
)

func main() {
	keyword := "agentic finance"
	if len(os.Args) > 1 {
		keyword = strings.Join(os.Args[1:], " ")
	}

	fmt.Printf("=== Source Adapter Test: %q ===\n\n", keyword)

	cfg := model.DefaultConfig()
	fetcher := source.NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		source.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)),
	)
	registry := source.DefaultRegistry(fetcher, source.Credentials{
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		GoogleCSEID:        os.Getenv("GOOGLE_CSE_ID"),
		SerpAPIKey:         os.Getenv("SERPAPI_API_KEY"),
		PerplexityAPIKey:   os.Getenv("PERPLEXITY_API_KEY"),
		SemanticScholarKey: os.Getenv("SEMANTIC_SCHOLAR_API_KEY"),
	}, source.Options{ExcludeTerms: cfg.Sources.ExcludeTerms})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, id := range registry.IDs() {
		adapter, _ := registry.Get(id)
		fmt.Printf("Testing: %s (%s)\n", id, adapter.SourceType())
		fmt.Println(strings.Repeat("-", 60))

		start := time.Now()
		records, err := adapter.Fetch(ctx, keyword, 3)
		elapsed := time.Since(start).Round(time.Millisecond)

		switch {
		case err != nil:
			fmt.Printf("  ✗ %v (%v)\n", err, elapsed)
		case len(records) == 0:
			fmt.Printf("  ✓ no results (%v)\n", elapsed)
		default:
			fmt.Printf("  ✓ %d results (%v)\n", len(records), elapsed)
			for _, r := range records {
				fmt.Printf("     - [%s] %s\n", r.PublishedDate, util.Truncate(r.Title, 70))
				fmt.Printf("       %s\n", r.URL)
			}
		}
		fmt.Println()
	}

	fmt.Println("=== Test Complete ===")
	fmt.Println("\nNote: adapters without credentials report a missing-credentials error.")
}
