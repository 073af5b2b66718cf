package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veille/internal/model"
)

const newsFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>"ia" - Google News</title>
<item>
  <title>Une IA agentique pour la banque - Le Devoir</title>
  <link>https://news.example.com/a1</link>
  <pubDate>Tue, 14 Oct 2025 08:30:00 GMT</pubDate>
  <description>&lt;a href="https://news.example.com/a1"&gt;Une IA agentique pour la banque&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;Le Devoir&lt;/font&gt;</description>
</item>
<item>
  <title>Carbon capture breakthrough - Climate Wire</title>
  <link>https://news.example.com/a2</link>
  <pubDate>Mon, 13 Oct 2025 08:30:00 GMT</pubDate>
  <description>Carbon capture and climate</description>
</item>
<item>
  <title>Fraude et IA au Québec - La Presse</title>
  <link>https://news.example.com/a3</link>
  <pubDate>not a date</pubDate>
</item>
</channel></rss>`

const arxivFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2501.00001v1</id>
    <published>2025-01-02T18:00:00Z</published>
    <title>Agentic   LLMs for
      Fraud Detection</title>
    <summary>We study agentic systems in finance.</summary>
    <link href="http://arxiv.org/abs/2501.00001v1" rel="alternate" type="text/html"/>
    <arxiv:primary_category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI"/>
  </entry>
</feed>`

func newTestFetcher() *Fetcher {
	return NewFetcher(5*time.Second, "veille-test", 1<<20)
}

func serveBody(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewsFeedAdapter_Fetch(t *testing.T) {
	server := serveBody(t, newsFixture, func(r *http.Request) {
		assert.Equal(t, "ia when:7d", r.URL.Query().Get("q"))
		assert.Equal(t, "US:en", r.URL.Query().Get("ceid"))
	})

	adapter := NewNewsFeedAdapter(newTestFetcher(), server.URL, "7d")
	records, err := adapter.Fetch(context.Background(), "ia", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "Une IA agentique pour la banque", first.Title)
	assert.Equal(t, "Le Devoir", first.SourceName)
	assert.Equal(t, "2025-10-14", first.PublishedDate)
	assert.Equal(t, model.SourceNewsFeed, first.SourceType)
	assert.Equal(t, "ia", first.Keyword)
	assert.Empty(t, first.Abstract, "snippet repeating the title is dropped")
	assert.Equal(t, model.RecordID("ia", model.SourceNewsFeed, "https://news.example.com/a1"), first.ID)
	assert.False(t, first.Scored)

	third := records[2]
	assert.Equal(t, "Fraude et IA au Québec", third.Title)
	assert.Equal(t, "La Presse", third.SourceName)
	assert.Equal(t, model.UnknownDate, third.PublishedDate)
}

func TestNewsFeedAdapter_CapsResults(t *testing.T) {
	server := serveBody(t, newsFixture, nil)
	records, err := NewNewsFeedAdapter(newTestFetcher(), server.URL, "").Fetch(context.Background(), "ia", 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestNewsFeedAdapter_MalformedIsFormatError(t *testing.T) {
	server := serveBody(t, "this is not a feed", nil)
	_, err := NewNewsFeedAdapter(newTestFetcher(), server.URL, "").Fetch(context.Background(), "ia", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFormat))
}

func TestExcludeFilter_WrapsAdapter(t *testing.T) {
	server := serveBody(t, newsFixture, nil)
	adapter := WithExclude(NewNewsFeedAdapter(newTestFetcher(), server.URL, ""),
		NewExcludeFilter([]string{"CO2", "carbon capture", "climate"}))

	records, err := adapter.Fetch(context.Background(), "ia", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.NotContains(t, r.URL, "/a2")
	}
	assert.Equal(t, model.AdapterNews, adapter.ID())
}

func TestArxivAdapter_Fetch(t *testing.T) {
	server := serveBody(t, arxivFixture, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, `all:"agentic finance" AND (cat:cs.AI OR cat:econ.EM OR cat:cs.LG)`, q.Get("search_query"))
		assert.Equal(t, "5", q.Get("max_results"))
	})

	records, err := NewArxivAdapter(newTestFetcher(), server.URL).Fetch(context.Background(), "agentic finance", 5)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Agentic LLMs for Fraud Detection", r.Title)
	assert.Equal(t, "http://arxiv.org/abs/2501.00001v1", r.URL)
	assert.Equal(t, "arXiv (cs.AI)", r.SourceName)
	assert.Equal(t, "2025-01-02", r.PublishedDate)
	assert.Equal(t, "We study agentic systems in finance.", r.Abstract)
	assert.Equal(t, model.SourceAcademicSearch, r.SourceType)
}

func TestArxivAdapter_NonXMLIsFormatError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, "<html>Rate exceeded</html>")
	}))
	defer server.Close()

	_, err := NewArxivAdapter(newTestFetcher(), server.URL).Fetch(context.Background(), "ia", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrFormat))
	assert.Equal(t, int32(1), hits.Load(), "format errors are not retried")
}

func TestDOAJAdapter_Fetch(t *testing.T) {
	body := `{"results":[
	 {"created_date":"2024-05-06T10:00:00Z","bibjson":{"title":"Banque et <i>IA</i>","abstract":"<jats:p>Étude.</jats:p>",
	  "link":[{"url":"https://doaj.example/1","type":"fulltext"}],"journal":{"title":"Revue Finance"}}},
	 {"bibjson":{"title":"No link"}},
	 {"bibjson":{"title":"Old","year":"2021","month":"3","link":[{"url":"https://doaj.example/2"}]}}
	]}`
	server := serveBody(t, body, func(r *http.Request) {
		assert.Equal(t, "/ia%20finance", r.URL.EscapedPath())
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
	})

	records, err := NewDOAJAdapter(newTestFetcher(), server.URL+"/").Fetch(context.Background(), "ia finance", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Banque et IA", records[0].Title)
	assert.Equal(t, "Étude.", records[0].Abstract)
	assert.Equal(t, "Revue Finance", records[0].SourceName)
	assert.Equal(t, "2024-05-06", records[0].PublishedDate)

	assert.Equal(t, "DOAJ", records[1].SourceName)
	assert.Equal(t, "2021-03-01", records[1].PublishedDate)
}

func TestDOAJAdapter_DefaultEndpoint(t *testing.T) {
	a := NewDOAJAdapter(newTestFetcher(), "")
	assert.Equal(t, "https://doaj.org/api/v1/search/articles/", a.baseURL)
}

func TestDOAJAdapter_BadJSON(t *testing.T) {
	server := serveBody(t, "{not json", nil)
	_, err := NewDOAJAdapter(newTestFetcher(), server.URL+"/").Fetch(context.Background(), "ia", 10)
	assert.ErrorIs(t, err, model.ErrFormat)
}

func TestSemanticScholarAdapter_Fetch(t *testing.T) {
	body := `{"total":2,"data":[
	 {"paperId":"abc","title":"Agentic AI","url":"","abstract":"Multi-agent finance.","venue":"NeurIPS","year":2024},
	 {"paperId":"def","title":"Second","url":"https://s2.example/def","abstract":null,"venue":"","year":0}
	]}`
	server := serveBody(t, body, func(r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.Equal(t, "title,url,abstract,venue,year", r.URL.Query().Get("fields"))
	})

	records, err := NewSemanticScholarAdapter(newTestFetcher(), server.URL, "key-1").Fetch(context.Background(), "ia", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://www.semanticscholar.org/paper/abc", records[0].URL)
	assert.Equal(t, "NeurIPS", records[0].SourceName)
	assert.Equal(t, "2024", records[0].PublishedDate)
	assert.Equal(t, "Semantic Scholar", records[1].SourceName)
	assert.Equal(t, model.UnknownDate, records[1].PublishedDate)
}

func TestGoogleSearchAdapter(t *testing.T) {
	t.Run("missing credentials skip the network", func(t *testing.T) {
		_, err := NewGoogleSearchAdapter(newTestFetcher(), "http://127.0.0.1:1", "", "").Fetch(context.Background(), "ia", 5)
		assert.ErrorIs(t, err, model.ErrMissingCredentials)
	})

	t.Run("fetch", func(t *testing.T) {
		body := `{"items":[{"title":"IA en finance","link":"https://site.example/x","snippet":"Snippet <b>bold</b>",
		  "displayLink":"site.example","pagemap":{"metatags":[{"article:published_time":"2025-02-03T04:05:06Z"}]}}]}`
		server := serveBody(t, body, func(r *http.Request) {
			assert.Equal(t, "10", r.URL.Query().Get("num"))
			assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		})
		records, err := NewGoogleSearchAdapter(newTestFetcher(), server.URL, "k", "cx-1").Fetch(context.Background(), "ia", 25)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "site.example", records[0].SourceName)
		assert.Equal(t, "Snippet bold", records[0].Abstract)
		assert.Equal(t, "2025-02-03", records[0].PublishedDate)
		assert.Equal(t, model.SourceWebSearch, records[0].SourceType)
	})
}

func TestConsensusAdapter_Fetch(t *testing.T) {
	body := `{"organic_results":[{"title":"Does AI reduce fraud?","link":"https://consensus.app/papers/1","snippet":"Yes.","date":"Mar 4, 2024"}]}`
	server := serveBody(t, body, func(r *http.Request) {
		assert.Equal(t, "fraude site:consensus.app", r.URL.Query().Get("q"))
	})
	records, err := NewConsensusAdapter(newTestFetcher(), server.URL, "serp").Fetch(context.Background(), "fraude", 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Consensus", records[0].SourceName)
	assert.Equal(t, "2024-03-04", records[0].PublishedDate)
}

func TestConsensusAdapter_APIError(t *testing.T) {
	server := serveBody(t, `{"error":"Invalid API key"}`, nil)
	_, err := NewConsensusAdapter(newTestFetcher(), server.URL, "bad").Fetch(context.Background(), "ia", 5)
	assert.ErrorIs(t, err, model.ErrFormat)
}

func TestPerplexityAdapter_Fetch(t *testing.T) {
	server := serveBody(t, `{"results":[{"title":"Agents","url":"https://www.pplx.example/a","snippet":"s","published_at":"2025-06-01"}]}`,
		func(r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer p-key", r.Header.Get("Authorization"))
			payload, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"query":"ia","max_results":3}`, string(payload))
		})

	records, err := NewPerplexityAdapter(newTestFetcher(), server.URL, "p-key").Fetch(context.Background(), "ia", 3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pplx.example", records[0].SourceName)
	assert.Equal(t, model.SourceGenerativeSearch, records[0].SourceType)
	assert.Equal(t, "2025-06-01", records[0].PublishedDate)
}

func TestRegistry_Select(t *testing.T) {
	reg := DefaultRegistry(newTestFetcher(), Credentials{}, Options{ExcludeTerms: []string{"co2"}})
	assert.Equal(t, []string{"arxiv", "consensus", "doaj", "google", "news", "perplexity", "semantic"}, reg.IDs())

	adapters, err := reg.Select(map[string]bool{"news": true, "arxiv": true, "google": false})
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.Equal(t, "arxiv", adapters[0].ID())
	assert.Equal(t, "news", adapters[1].ID())

	_, err = reg.Select(map[string]bool{"bing": true})
	assert.Error(t, err)
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2025-01-02T18:00:00Z":             "2025-01-02",
		"Tue, 14 Oct 2025 08:30:00 GMT":    "2025-10-14",
		"Tue, 7 Oct 2025 08:30:00 +0200":   "2025-10-07",
		"2024-05-06":                       "2024-05-06",
		"2024-05-06T10:00:00.123456+00:00": "2024-05-06",
		"2021":                             "2021",
		"Mar 4, 2024":                      "2024-03-04",
		"":                                 model.UnknownDate,
		"yesterday":                        model.UnknownDate,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDate(in), "NormalizeDate(%q)", in)
	}
}
