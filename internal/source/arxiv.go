package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/util"
)

const defaultArxivURL = "http://export.arxiv.org/api/query"

// arxivCategories restricts results to AI, econometrics and machine learning
const arxivCategories = "(cat:cs.AI OR cat:econ.EM OR cat:cs.LG)"

// ArxivAdapter queries the arXiv Atom API
type ArxivAdapter struct {
	fetcher *Fetcher
	baseURL string
}

// NewArxivAdapter creates the arXiv adapter
func NewArxivAdapter(f *Fetcher, baseURL string) *ArxivAdapter {
	if baseURL == "" {
		baseURL = defaultArxivURL
	}
	return &ArxivAdapter{fetcher: f, baseURL: baseURL}
}

func (a *ArxivAdapter) ID() string { return model.AdapterArxiv }
func (a *ArxivAdapter) SourceType() model.SourceType { return model.SourceAcademicSearch }

// Fetch implements Adapter
func (a *ArxivAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	term := query
	if strings.Contains(term, " ") {
		term = strconv.Quote(term)
	}
	params := url.Values{}
	params.Set("search_query", fmt.Sprintf("all:%s AND %s", term, arxivCategories))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")

	resp, err := a.fetcher.FetchWithRetry(ctx, &Request{
		URL:     a.baseURL + "?" + params.Encode(),
		Accept:  "application/atom+xml",
		Adapter: a.ID(),
	})
	if err != nil {
		return nil, err
	}

	// The API answers some failures with an HTML page and a 200
	if !bytes.HasPrefix(bytes.TrimSpace(resp.Body), []byte("<?xml")) {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("expected XML, got %q", util.Truncate(string(resp.Body), 40)))
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("parse atom: %w", err))
	}

	records := make([]model.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		if link == "" {
			continue
		}

		name := "arXiv"
		if cat := arxivPrimaryCategory(item); cat != "" {
			name = fmt.Sprintf("arXiv (%s)", cat)
		}

		date := formatTime(item.PublishedParsed)
		if date == "" {
			date = item.Published
		}

		records = append(records, newRecord(query, a.SourceType(), name,
			util.CollapseSpaces(item.Title), link, date, util.HTMLToText(item.Description)))
	}

	return capRecords(records, maxResults), nil
}

func arxivPrimaryCategory(item *gofeed.Item) string {
	if ext, ok := item.Extensions["arxiv"]; ok {
		if cats := ext["primary_category"]; len(cats) > 0 {
			if term := cats[0].Attrs["term"]; term != "" {
				return term
			}
		}
	}
	if len(item.Categories) > 0 {
		return item.Categories[0]
	}
	return ""
}
