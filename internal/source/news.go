package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/veille/internal/model"
	"github.com/ppiankov/veille/internal/util"
)

const defaultNewsURL = "https://news.google.com/rss/search"

// NewsFeedAdapter searches the Google News RSS endpoint
type NewsFeedAdapter struct {
	fetcher *Fetcher
	baseURL string
	window  string
}

// NewNewsFeedAdapter creates the news adapter. window restricts recency (e.g. "7d"); empty disables it.
func NewNewsFeedAdapter(f *Fetcher, baseURL, window string) *NewsFeedAdapter {
	if baseURL == "" {
		baseURL = defaultNewsURL
	}
	return &NewsFeedAdapter{fetcher: f, baseURL: baseURL, window: window}
}

func (a *NewsFeedAdapter) ID() string { return model.AdapterNews }
func (a *NewsFeedAdapter) SourceType() model.SourceType { return model.SourceNewsFeed }

// Fetch implements Adapter
func (a *NewsFeedAdapter) Fetch(ctx context.Context, query string, maxResults int) ([]model.Record, error) {
	q := query
	if a.window != "" {
		q += " when:" + a.window
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	resp, err := a.fetcher.FetchWithRetry(ctx, &Request{
		URL:         a.baseURL + "?" + params.Encode(),
		Accept:      "application/rss+xml, application/xml;q=0.9",
		Adapter:     a.ID(),
		CheckRobots: true,
	})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(resp.Body))
	if err != nil {
		return nil, model.NewFormatError(a.ID(), fmt.Errorf("parse rss: %w", err))
	}

	records := make([]model.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}

		snippet, publisher := parseNewsDescription(item.Description)
		title := item.Title
		if publisher == "" {
			title, publisher = splitPublisher(title)
		} else {
			title = strings.TrimSuffix(title, " - "+publisher)
		}
		if publisher == "" {
			publisher = hostOf(item.Link)
		}
		if snippet == title {
			snippet = ""
		}

		date := formatTime(item.PublishedParsed)
		if date == "" {
			date = item.Published
		}

		records = append(records, newRecord(query, a.SourceType(), publisher, title, item.Link, date, snippet))
	}

	return capRecords(records, maxResults), nil
}

// parseNewsDescription extracts the text snippet and the <font> publisher label
// from a Google News item description.
func parseNewsDescription(description string) (snippet, publisher string) {
	if strings.TrimSpace(description) == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return util.HTMLToText(description), ""
	}

	font := doc.Find("font").First()
	publisher = util.CollapseSpaces(font.Text())
	font.Remove()

	snippet = util.CollapseSpaces(doc.Text())
	return snippet, publisher
}

// splitPublisher splits "Headline - Publisher" titles
func splitPublisher(title string) (string, string) {
	idx := strings.LastIndex(title, " - ")
	if idx <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+3:])
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
