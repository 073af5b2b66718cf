package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veille/internal/export"
	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/worker"
)

var (
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run several keyword sets from a file",
	Long: `Batch runs one watch per line of the input file:
- One comma-separated keyword set per line (# comments allowed)
- Sets run one after another and share the cache and rate limiter
- Each set gets its own CSV, JSON and Markdown report

Example:
  veille batch sets.txt
  veille batch sets.txt --output-dir ./rapports --fast`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addWatchFlags(batchCmd)

	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veille-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "batch-timeout", time.Hour, "total timeout for the batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, collectCfg, sortKey, err := watchConfig(cmd)
	if err != nil {
		return err
	}

	sets, err := worker.ReadKeywordSetsFromFile(file)
	if err != nil {
		return fmt.Errorf("read keyword sets: %w", err)
	}
	if len(sets) == 0 {
		return fmt.Errorf("no keyword sets in %s", file)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a := newApp(ctx, cfg, collectCfg, sortKey)
	defer a.Close()

	fmt.Fprintf(os.Stderr, "Loaded %d keyword sets from %s\n\n", len(sets), file)

	successCount, failureCount := 0, 0
	for _, keywords := range sets {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "✗ batch stopped: %v\n", ctx.Err())
			break
		}

		label := strings.Join(keywords, ", ")
		runCtx, runCancel := context.WithTimeout(ctx, timeout)
		report, err := a.pipeline.RunWatch(runCtx, keywords, cfg.Sources.Enabled, fastMode)
		runCancel()
		if err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			continue
		}

		if err := writeBatchReport(report, outputDir); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", label, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d results, %s)\n", label, len(report.Records), report.Stats.String())
		logger.Debug("batch set done",
			zap.String("query", report.Query),
			zap.Int("new", report.Stats.NewSinceLastCheck),
		)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d sets\n", len(sets))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)

	if successCount == 0 {
		return fmt.Errorf("every keyword set failed")
	}
	return nil
}

// writeBatchReport writes the three formats under dir, named after the query
func writeBatchReport(report *model.Report, dir string) error {
	base := filepath.Join(dir, sanitizeFilename(report.Query))

	if err := export.WriteFile(base+".csv", func(w io.Writer) error { return export.WriteCSV(w, report.Records) }); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	if err := export.WriteFile(base+".json", func(w io.Writer) error { return export.WriteJSON(w, report) }); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	if err := export.WriteFile(base+".md", func(w io.Writer) error { return export.WriteMarkdown(w, report) }); err != nil {
		return fmt.Errorf("write Markdown: %w", err)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename turns a query into a safe file name
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".-_")
	if s == "" {
		s = "report"
	}

	// Limit length on rune boundaries
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}

	return s
}
