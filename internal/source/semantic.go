package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/util"
)

const defaultSemanticURL = "https://api.semanticscholar.org/graph/v1/paper/search"

// SemanticScholarAdapter queries the Semantic Scholar graph API.
// The API key is optional; unauthenticated calls share a low rate limit.
type SemanticScholarAdapter struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

type semanticResponse struct {
	Total int `json:"total"`
	Data  []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		URL      string `json:"url"`
		Abstract string `json:"abstract"`
		Venue    string `json:"venue"`
		Year     int    `json:"year"`
	} `json:"data"`
}

// NewSemanticScholarAdapter creates the Semantic Scholar adapter
func NewSemanticScholarAdapter(f *Fetcher, baseURL, apiKey string) *SemanticScholarAdapter {
	if baseURL == "" {
		baseURL = defaultSemanticURL
	}
	return &SemanticScholarAdapter{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

func (a *SemanticScholarAdapter) ID() string { return model.AdapterSemantic }
func (a *SemanticScholarAdapter) SourceType() model.SourceType { return model.SourceAcademicSearch }

// Fetch implements Adapter
func (a *SemanticScholarAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(maxResults))
	params.Set("fields", "title,url,abstract,venue,year")

	req := &Request{URL: a.baseURL + "?" + params.Encode(), Adapter: a.ID()}
	if a.apiKey != "" {
		req.Header = map[string]string{"x-api-key": a.apiKey}
	}

	resp, err := a.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	var payload semanticResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("decode json: %w", err))
	}

	records := make([]model.Record, 0, len(payload.Data))
	for _, p := range payload.Data {
		link := p.URL
		if link == "" && p.PaperID != "" {
			link = "https://www.semanticscholar.org/paper/" + p.PaperID
		}
		if link == "" || p.Title == "" {
			continue
		}

		name := p.Venue
		if name == "" {
			name = "Semantic Scholar"
		}
		date := ""
		if p.Year > 0 {
			date = strconv.Itoa(p.Year)
		}

		records = append(records, newRecord(query, a.SourceType(), name, p.Title, link, date, util.HTMLToText(p.Abstract)))
	}

	return capRecords(records, maxResults), nil
}
