// Package export writes watch reports as CSV, JSON and Markdown.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/score"
)

// CSVHeader lists the tabular export columns in order
var CSVHeader = []string{"title", "url", "source", "source_name", "date", "abstract", "summary", "relevance_score"}

// WriteCSV writes one row per record. Unscored records have an empty score cell.
func WriteCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		relevance := ""
		if r.Scored {
			relevance = strconv.FormatFloat(r.RelevanceScore, 'f', 3, 64)
		}
		row := []string{r.Title, r.URL, string(r.SourceType), r.SourceName, r.PublishedDate, r.Abstract, r.Summary, relevance}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteMarkdown renders the report for reading
func WriteMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Veille stratégique : %s\n\n", report.Query)
	fmt.Fprintf(&b, "_Généré le %s. %s. %d résultats", report.GeneratedAt.Format("2006-01-02 15:04 MST"), report.Stats.String(), len(report.Records))
	if report.Stats.NewSinceLastCheck > 0 {
		fmt.Fprintf(&b, ", %d nouveaux", report.Stats.NewSinceLastCheck)
	}
	b.WriteString("._\n\n")

	if report.Executive != "" {
		b.WriteString("## Résumé exécutif\n\n")
		b.WriteString(report.Executive)
		b.WriteString("\n\n")
	}

	if len(report.Summaries) > 0 {
		b.WriteString("## Synthèses par sujet\n\n")
		keys := make([]string, 0, len(report.Summaries))
		for k := range report.Summaries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", k, report.Summaries[k])
		}
	}

	writeRecordSection(&b, fmt.Sprintf("Articles (score ≥ %.2f)", report.Threshold), report.Articles)
	writeRecordSection(&b, fmt.Sprintf("Études (score ≥ %.2f)", report.Threshold), report.Studies)

	if len(report.Topics) > 0 {
		b.WriteString("## Thématiques\n\n")
		for _, topic := range score.Topics {
			if n := report.Topics[topic]; n > 0 {
				fmt.Fprintf(&b, "- %s : %d\n", topic, n)
			}
		}
		b.WriteString("\n")
	}

	if len(report.WeakSignals) > 0 {
		b.WriteString("## Signaux faibles\n\n")
		for _, s := range report.WeakSignals {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	if report.SecondaryQuery != "" {
		fmt.Fprintf(&b, "_Requête secondaire : %s (%d résultats ajoutés)._\n", report.SecondaryQuery, report.Stats.Refined)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRecordSection(b *strings.Builder, title string, records []model.Record) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, r := range records {
		fmt.Fprintf(b, "- [%s](%s) · %s · %s · %.2f\n", r.Title, r.URL, r.SourceName, r.PublishedDate, r.RelevanceScore)
	}
	b.WriteString("\n")
}

// WriteFile creates path and writes the report in the format given by fn
func WriteFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
