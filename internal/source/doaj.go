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

const defaultDOAJURL = "https://doaj.org/api/v1/search/articles/"

// DOAJAdapter queries the Directory of Open Access Journals
type DOAJAdapter struct {
	fetcher *Fetcher
	baseURL string
}

type doajResponse struct {
	Results []struct {
		CreatedDate string `json:"created_date"`
		Bibjson     struct {
			Title    string `json:"title"`
			Abstract string `json:"abstract"`
			Year     string `json:"year"`
			Month    string `json:"month"`
			Link     []struct {
				URL  string `json:"url"`
				Type string `json:"type"`
			} `json:"link"`
			Journal struct {
				Title string `json:"title"`
			} `json:"journal"`
		} `json:"bibjson"`
	} `json:"results"`
}

// NewDOAJAdapter creates the DOAJ adapter
func NewDOAJAdapter(f *Fetcher, baseURL string) *DOAJAdapter {
	if baseURL == "" {
		baseURL = defaultDOAJURL
	}
	return &DOAJAdapter{fetcher: f, baseURL: baseURL}
}

func (a *DOAJAdapter) ID() string { return model.AdapterDOAJ }
func (a *DOAJAdapter) SourceType() model.SourceType { return model.SourceAcademicSearch }

// Fetch implements Adapter
func (a *DOAJAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("pageSize", strconv.Itoa(maxResults))

	resp, err := a.fetcher.FetchWithRetry(ctx, &Request{
		URL:     a.baseURL + url.PathEscape(query) + "?" + params.Encode(),
		Adapter: a.ID(),
	})
	if err != nil {
		return nil, err
	}

	var payload doajResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("decode json: %w", err))
	}

	records := make([]model.Record, 0, len(payload.Results))
	for _, res := range payload.Results {
		bib := res.Bibjson
		link := ""
		for _, l := range bib.Link {
			if l.URL == "" {
				continue
			}
			if link == "" || l.Type == "fulltext" {
				link = l.URL
			}
		}
		if link == "" {
			continue
		}

		date := res.CreatedDate
		if date == "" && bib.Year != "" {
			date = bib.Year
			if m, err := strconv.Atoi(bib.Month); err == nil && m >= 1 && m <= 12 {
				date = fmt.Sprintf("%s-%02d", bib.Year, m)
			}
		}

		name := bib.Journal.Title
		if name == "" {
			name = "DOAJ"
		}

		records = append(records, newRecord(query, a.SourceType(), name,
			util.HTMLToText(bib.Title), link, date, util.HTMLToText(bib.Abstract)))
	}

	return capRecords(records, maxResults), nil
}
