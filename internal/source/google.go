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

const (
	defaultGoogleURL = "https://www.googleapis.com/customsearch/v1"
	googleMaxPerPage = 10
)

// GoogleSearchAdapter queries the Google Programmable Search (CSE) JSON API
type GoogleSearchAdapter struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
	cx      string
}

type googleResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		DisplayLink string `json:"displayLink"`
		Pagemap     struct {
			Metatags []map[string]string `json:"metatags"`
		} `json:"pagemap"`
	} `json:"items"`
}

// NewGoogleSearchAdapter creates the Google CSE adapter
func NewGoogleSearchAdapter(f *Fetcher, baseURL, apiKey, cx string) *GoogleSearchAdapter {
	if baseURL == "" {
		baseURL = defaultGoogleURL
	}
	return &GoogleSearchAdapter{fetcher: f, baseURL: baseURL, apiKey: apiKey, cx: cx}
}

func (a *GoogleSearchAdapter) ID() string { return model.AdapterGoogle }
func (a *GoogleSearchAdapter) SourceType() model.SourceType { return model.SourceWebSearch }

// Fetch implements Adapter. The API caps a page at 10 results.
func (a *GoogleSearchAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	if a.apiKey == "" || a.cx == "" {
		return nil, missingCredentials(a.ID(), "GOOGLE_API_KEY", "GOOGLE_CSE_ID")
	}

	num := maxResults
	if num > googleMaxPerPage || num <= 0 {
		num = googleMaxPerPage
	}
	params := url.Values{}
	params.Set("key", a.apiKey)
	params.Set("cx", a.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	resp, err := a.fetcher.FetchWithRetry(ctx, &Request{URL: a.baseURL + "?" + params.Encode(), Adapter: a.ID()})
	if err != nil {
		return nil, err
	}

	var payload googleResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("decode json: %w", err))
	}

	records := make([]model.Record, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Link == "" {
			continue
		}
		date := ""
		for _, tags := range item.Pagemap.Metatags {
			if d := tags["article:published_time"]; d != "" {
				date = d
				break
			}
		}
		name := item.DisplayLink
		if name == "" {
			name = hostOf(item.Link)
		}
		records = append(records, newRecord(query, a.SourceType(), name, item.Title, item.Link, date, util.HTMLToText(item.Snippet)))
	}

	return capRecords(records, maxResults), nil
}
