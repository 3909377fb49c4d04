package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Title, URL, Snippet string
}

func fixtures(n int) []fixture {
	out := make([]fixture, n)
	for i := range out {
		out[i] = fixture{
			Title:   fmt.Sprintf("Result %d", i+1),
			URL:     fmt.Sprintf("https://example.com/%d", i+1),
			Snippet: fmt.Sprintf("Snippet number %d", i+1),
		}
	}
	return out
}

func assertRoundTrip(t *testing.T, want []fixture, got []Result) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Title, got[i].Title)
		assert.Equal(t, want[i].URL, got[i].URL)
		assert.Equal(t, want[i].Snippet, got[i].Snippet)
	}
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestBrave_RoundTrip(t *testing.T) {
	items := fixtures(7)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))

		var results []map[string]string
		for _, it := range items {
			results = append(results, map[string]string{"title": it.Title, "url": it.URL, "description": it.Snippet})
		}
		json.NewEncoder(w).Encode(map[string]any{"web": map[string]any{"results": results}})
	})

	b, err := NewBrave("test-key", WithBraveBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := b.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Equal(t, "brave", resp.Provider)
	assertRoundTrip(t, items[:5], resp.Results)
}

func TestBrave_StripsMarkup(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"web":{"results":[{"title":"Go &amp; Rust","url":"https://x.dev","description":"The <strong>Go</strong>   programming <em>language</em>"}]}}`)
	})
	b, err := NewBrave("k", WithBraveBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := b.Search(context.Background(), "go", 3)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Go & Rust", resp.Results[0].Title)
	assert.Equal(t, "The Go programming language", resp.Results[0].Snippet)
}

func TestNewBrave_RequiresKey(t *testing.T) {
	t.Setenv("BRAVE_API_KEY", "")
	_, err := NewBrave("")
	assert.Error(t, err)
}

func TestTavily_RoundTrip(t *testing.T) {
	items := fixtures(3)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tv-key", r.Header.Get("Authorization"))

		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "weather in paris", req.Query)
		assert.Equal(t, 10, req.MaxResults)
		assert.True(t, req.IncludeAnswer)

		var results []map[string]any
		for _, it := range items {
			results = append(results, map[string]any{"title": it.Title, "url": it.URL, "content": it.Snippet, "score": 0.9})
		}
		json.NewEncoder(w).Encode(map[string]any{"answer": "Sunny, 21C.", "results": results})
	})

	tv, err := NewTavily("tv-key", WithTavilyBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := tv.Search(context.Background(), "  weather in paris ", 10)
	require.NoError(t, err)
	assert.Equal(t, "Sunny, 21C.", resp.Answer)
	assert.Equal(t, "weather in paris", resp.Query)
	assertRoundTrip(t, items, resp.Results)
	assert.Equal(t, 0.9, resp.Results[0].Score)
}

func TestSerpAPI_Types(t *testing.T) {
	items := fixtures(4)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "sp-key", q.Get("api_key"))
		assert.Equal(t, "google", q.Get("engine"))

		var organic, news, shopping []map[string]any
		for _, it := range items {
			organic = append(organic, map[string]any{"title": it.Title, "link": it.URL, "snippet": it.Snippet})
			news = append(news, map[string]any{"title": it.Title, "link": it.URL, "snippet": it.Snippet, "source": "Wire"})
			shopping = append(shopping, map[string]any{"title": it.Title, "link": it.URL, "price": "$10", "source": "Shop"})
		}
		body := map[string]any{"answer_box": map[string]any{"answer": "42"}}
		switch q.Get("tbm") {
		case "nws":
			body["news_results"] = news
		case "shop":
			body["shopping_results"] = shopping
		default:
			body["organic_results"] = organic
		}
		json.NewEncoder(w).Encode(body)
	})

	s, err := NewSerpAPI("sp-key", WithSerpAPIBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "meaning of life", 3)
	require.NoError(t, err)
	assert.Equal(t, "42", resp.Answer)
	assertRoundTrip(t, items[:3], resp.Results)

	resp, err = s.SearchType(context.Background(), "headlines", 10, SearchNews)
	require.NoError(t, err)
	assertRoundTrip(t, items, resp.Results)
	assert.Equal(t, "news", resp.Results[0].Source)

	resp, err = s.SearchType(context.Background(), "shoes", 10, SearchShopping)
	require.NoError(t, err)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, "$10 Shop", resp.Results[0].Snippet)

	_, err = s.SearchType(context.Background(), "x", 1, "images")
	assert.Error(t, err)
}

func TestSerpAPI_ErrorKey(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": "Invalid API key."}`)
	})
	s, err := NewSerpAPI("bad", WithSerpAPIBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key.")
	assert.Contains(t, err.Error(), "401")
}

const googlePage = `<html><body>
<div class="ezO2md"><a href="/url?q=https://go.dev/&amp;sa=U&amp;ved=1"><span class="CVA68e">The Go Programming Language</span></a>
<span class="FrIlee">Go is an <b>open source</b> programming language.</span></div>
<div class="ezO2md"><a href="/search?q=related"><span class="CVA68e">Related searches</span></a></div>
<div class="ezO2md"><a href="/url?q=https://pkg.go.dev/&amp;sa=U"><span class="CVA68e">Go Packages</span></a>
<span class="FrIlee">Discover packages.</span></div>
<div class="g"><a href="https://go.dev/doc/"><h3>Documentation</h3></a><div class="VwiC3b">Guides and references.</div></div>
</body></html>`

func TestGoogle_Parse(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Lynx")
		assert.Equal(t, "active", r.URL.Query().Get("safe"))
		io.WriteString(w, googlePage)
	})
	g := NewGoogle(WithGoogleBaseURL(srv.URL))

	resp, err := g.Search(context.Background(), "golang", 10)
	require.NoError(t, err)
	assertRoundTrip(t, []fixture{
		{"The Go Programming Language", "https://go.dev/", "Go is an open source programming language."},
		{"Go Packages", "https://pkg.go.dev/", "Discover packages."},
		{"Documentation", "https://go.dev/doc/", "Guides and references."},
	}, resp.Results)

	resp, err = g.Search(context.Background(), "golang", 1)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestSearch_EmptyQuery(t *testing.T) {
	g := NewGoogle(WithGoogleBaseURL("http://127.0.0.1:0"))
	_, err := g.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestResponse_Markdown(t *testing.T) {
	r := &Response{Query: "go", Answer: "A language.", Results: []Result{
		{Title: "Go", URL: "https://go.dev", Snippet: "Build simple software."},
	}}
	md := r.Markdown()
	assert.Contains(t, md, `## Search Results for "go"`)
	assert.Contains(t, md, "**Answer:** A language.")
	assert.Contains(t, md, "### 1. [Go](https://go.dev)\n\nBuild simple software.")

	empty := (&Response{Query: "none"}).Markdown()
	assert.Contains(t, empty, "No results found.")
}

func TestPlugin_Functions(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, googlePage)
	})
	serp, err := NewSerpAPI("k", WithSerpAPIBaseURL(srv.URL))
	require.NoError(t, err)
	p := New(WithProvider(NewGoogle(WithGoogleBaseURL(srv.URL))), WithProvider(serp), WithLogger(&log.NoOpLogger{}))

	var names []string
	for _, fn := range p.Functions() {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"search", "google_search", "serpapi_search"}, names)

	reg := plugin.NewRegistry(plugin.WithRegistryLogger(&log.NoOpLogger{}))
	require.NoError(t, reg.Register(p))

	res := reg.Invoke(context.Background(), "websearch", "search", plugin.Args{"query": "golang", "max_results": 2})
	require.True(t, res.Success, res.Error)
	data := res.Data.(Data)
	assert.Equal(t, "google", data.Provider)
	assert.Len(t, data.Results, 2)
	assert.True(t, strings.HasPrefix(data.Markdown, "## Search Results"))

	res = reg.Invoke(context.Background(), "websearch", "search", plugin.Args{"query": ""})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindValidation, res.Kind)

	res = reg.Invoke(context.Background(), "websearch", "search", plugin.Args{"query": "x", "provider": "bing"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `unknown provider "bing"`)

	res = reg.Invoke(context.Background(), "websearch", "serpapi_search", plugin.Args{"query": "x", "type": "images"})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindValidation, res.Kind)
}

func TestPlugin_ProviderFailure(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	tv, err := NewTavily("k", WithTavilyBaseURL(srv.URL))
	require.NoError(t, err)
	p := New(WithProvider(tv), WithLogger(&log.NoOpLogger{}))

	fn, ok := plugin.Lookup(p, "tavily_search")
	require.True(t, ok)
	res := fn.Call(context.Background(), plugin.Args{"query": "anything"})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindExternalCall, res.Kind)
	assert.Contains(t, res.Error, "status 502")
}
