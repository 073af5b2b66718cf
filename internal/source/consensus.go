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

const defaultSerpAPIURL = "https://serpapi.com/search"

// ConsensusAdapter finds consensus.app study pages through SerpAPI's Google engine
type ConsensusAdapter struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic_results"`
}

// NewConsensusAdapter creates the Consensus adapter
func NewConsensusAdapter(f *Fetcher, baseURL, apiKey string) *ConsensusAdapter {
	if baseURL == "" {
		baseURL = defaultSerpAPIURL
	}
	return &ConsensusAdapter{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

func (a *ConsensusAdapter) ID() string { return model.AdapterConsensus }
func (a *ConsensusAdapter) SourceType() model.SourceType { return model.SourceAcademicSearch }

// Fetch implements Adapter
func (a *ConsensusAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	if a.apiKey == "" {
		return nil, missingCredentials(a.ID(), "SERPAPI_API_KEY")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query+" site:consensus.app")
	params.Set("num", strconv.Itoa(maxResults))
	params.Set("api_key", a.apiKey)

	resp, err := a.fetcher.FetchWithRetry(ctx, &Request{URL: a.baseURL + "?" + params.Encode(), Adapter: a.ID()})
	if err != nil {
		return nil, err
	}

	var payload serpResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("decode json: %w", err))
	}
	if payload.Error != "" && len(payload.OrganicResults) == 0 {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("serpapi: %s", payload.Error))
	}

	records := make([]model.Record, 0, len(payload.OrganicResults))
	for _, res := range payload.OrganicResults {
		if res.Link == "" {
			continue
		}
		records = append(records, newRecord(query, a.SourceType(), "Consensus", res.Title, res.Link, res.Date, util.HTMLToText(res.Snippet)))
	}

	return capRecords(records, maxResults), nil
}
