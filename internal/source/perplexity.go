package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/util"
)

const defaultPerplexityURL = "https://api.perplexity.ai/search"

// PerplexityAdapter queries the Perplexity search API
type PerplexityAdapter struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

type perplexityRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type perplexityResponse struct {
	Results []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Snippet     string `json:"snippet"`
		Date        string `json:"date"`
		PublishedAt string `json:"published_at"`
	} `json:"results"`
}

// NewPerplexityAdapter creates the Perplexity adapter
func NewPerplexityAdapter(f *Fetcher, baseURL, apiKey string) *PerplexityAdapter {
	if baseURL == "" {
		baseURL = defaultPerplexityURL
	}
	return &PerplexityAdapter{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

func (a *PerplexityAdapter) ID() string { return model.AdapterPerplexity }
func (a *PerplexityAdapter) SourceType() model.SourceType { return model.SourceGenerativeSearch }

// Fetch implements Adapter
func (a *PerplexityAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	if a.apiKey == "" {
		return nil, missingCredentials(a.ID(), "PERPLEXITY_API_KEY")
	}

	body, err := json.Marshal(perplexityRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := a.fetcher.FetchWithRetry(ctx, &Request{
		Method:  http.MethodPost,
		URL:     a.baseURL,
		Body:    body,
		Header:  map[string]string{"Authorization": "Bearer " + a.apiKey},
		Adapter: a.ID(),
	})
	if err != nil {
		return nil, err
	}

	var payload perplexityResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("decode json: %w", err))
	}

	records := make([]model.Record, 0, len(payload.Results))
	for _, res := range payload.Results {
		if res.URL == "" {
			continue
		}
		date := res.PublishedAt
		if date == "" {
			date = res.Date
		}
		records = append(records, newRecord(query, a.SourceType(), hostOf(res.URL), res.Title, res.URL, date, util.HTMLToText(res.Snippet)))
	}

	return capRecords(records, maxResults), nil
}
