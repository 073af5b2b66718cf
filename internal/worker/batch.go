package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// RunParallel executes jobs on a bounded pool and returns results in completion order
func RunParallel(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	// Results are buffered for every job so workers never block before Wait drains them
	pool := newPool(ctx, workers, len(jobs))
	pool.Start()

	for _, job := range jobs {
		if !pool.Submit(job) {
			break
		}
	}

	return pool.Wait()
}

// RunSequential executes jobs one after another, stopping early if ctx is cancelled
func RunSequential(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		results = append(results, run(ctx, job))
	}
	return results
}

// ReadKeywordSetsFromFile reads one comma-separated keyword set per line.
// Empty lines and # comments are skipped; duplicate lines are dropped.
func ReadKeywordSetsFromFile(filePath string) ([][]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sets [][]string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var keywords []string
		for _, kw := range strings.Split(line, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			continue
		}

		key := strings.ToLower(strings.Join(keywords, ","))
		if !seen[key] {
			seen[key] = true
			sets = append(sets, keywords)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sets, nil
}
