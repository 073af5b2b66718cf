package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veille/internal/model"
)

func sampleReport() *model.Report {
	article := model.Record{
		Keyword:        "ia",
		Title:          "IA, finance et \"fraude\"",
		URL:            "https://news.example/1",
		SourceType:     model.SourceNewsFeed,
		SourceName:     "Le Devoir",
		PublishedDate:  "2025-03-01",
		Abstract:       "Une startup québécoise\nlance un agent.",
		RelevanceScore: 0.95,
		Scored:         true,
	}
	study := model.Record{
		Keyword:        "ia",
		Title:          "Agentic fraud detection",
		URL:            "https://doaj.example/2",
		SourceType:     model.SourceAcademicSearch,
		SourceName:     "Journal of AI",
		PublishedDate:  model.UnknownDate,
		RelevanceScore: 0.91,
		Scored:         true,
	}
	stats := model.RunStats{Succeeded: 3, Failed: 1, NewSinceLastCheck: 2}

	return &model.Report{
		Query:          "ia",
		Keywords:       []string{"ia"},
		GeneratedAt:    time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC),
		Records:        []model.Record{article, study},
		Stats:          stats,
		Threshold:      0.9,
		Articles:       []model.Record{article},
		Studies:        []model.Record{study},
		WeakSignals:    []string{article.Title},
		Topics:         map[string]int{"Finance": 1, "IA": 1},
		Summaries:      map[string]string{"ia": "Synthèse IA."},
		Executive:      "Résumé global.",
		SecondaryQuery: "agents fraud",
	}
}

func TestWriteCSV(t *testing.T) {
	report := sampleReport()
	unscored := model.Record{Title: "raw", URL: "https://x.example"}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, append(report.Records, unscored)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, CSVHeader, rows[0])
	want := []string{
		"IA, finance et \"fraude\"", "https://news.example/1", "NewsFeed", "Le Devoir",
		"2025-03-01", "Une startup québécoise\nlance un agent.", "", "0.950",
	}
	if diff := cmp.Diff(want, rows[1]); diff != "" {
		t.Errorf("first row mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "unknown", rows[2][4])
	assert.Equal(t, "", rows[3][7], "unscored records have no score")
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(CSVHeader, ",")+"\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ia", decoded["query"])
	assert.Len(t, decoded["records"], 2)
	assert.Equal(t, "Résumé global.", decoded["executive"])
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleReport()))
	md := buf.String()

	for _, want := range []string{
		"# Veille stratégique : ia",
		"3 succeeded, 1 failed",
		"2 nouveaux",
		"## Résumé exécutif\n\nRésumé global.",
		"### ia\n\nSynthèse IA.",
		"## Articles (score ≥ 0.90)",
		"- [Agentic fraud detection](https://doaj.example/2) · Journal of AI · unknown · 0.91",
		"## Signaux faibles",
		"- Finance : 1\n- IA : 1",
		"Requête secondaire : agents fraud",
	} {
		assert.Contains(t, md, want)
	}
}

func TestWriteMarkdown_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, &model.Report{Query: "ia"}))
	assert.NotContains(t, buf.String(), "## Articles")
	assert.NotContains(t, buf.String(), "Résumé exécutif")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")
	require.NoError(t, WriteFile(path, func(w io.Writer) error {
		return WriteCSV(w, sampleReport().Records)
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "title,url,source"))
}
