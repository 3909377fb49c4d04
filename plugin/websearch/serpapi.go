package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

// SearchType selects which SerpApi result block is returned.
type SearchType string

const (
	SearchOrganic  SearchType = "organic"
	SearchNews     SearchType = "news"
	SearchShopping SearchType = "shopping"
)

// SerpAPI searches Google through serpapi.com.
type SerpAPI struct {
	APIKey     string
	BaseURL    string
	Engine     string
	Location   string
	HTTPClient *http.Client
}

var _ SearchAdapter = (*SerpAPI)(nil)

type SerpAPIOption func(*SerpAPI)

// WithSerpAPIBaseURL sets the endpoint URL.
func WithSerpAPIBaseURL(baseURL string) SerpAPIOption {
	return func(s *SerpAPI) { s.BaseURL = baseURL }
}

// WithSerpAPILocation biases results towards a location, e.g. "Austin, Texas".
func WithSerpAPILocation(location string) SerpAPIOption {
	return func(s *SerpAPI) { s.Location = location }
}

// WithSerpAPIHTTPClient sets the HTTP client.
func WithSerpAPIHTTPClient(c *http.Client) SerpAPIOption {
	return func(s *SerpAPI) { s.HTTPClient = c }
}

// NewSerpAPI creates a SerpApi adapter.
// If apiKey is empty, it tries to read from SERPAPI_API_KEY environment variable.
func NewSerpAPI(apiKey string, opts ...SerpAPIOption) (*SerpAPI, error) {
	if apiKey == "" {
		apiKey = os.Getenv("SERPAPI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("SERPAPI_API_KEY not set")
	}
	s := &SerpAPI{
		APIKey:  apiKey,
		BaseURL: "https://serpapi.com/search.json",
		Engine:  "google",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SerpAPI) Name() string { return "serpapi" }

type serpResponse struct {
	Error     string `json:"error"`
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answer_box"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	NewsResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  any    `json:"source"`
		Date    string `json:"date"`
	} `json:"news_results"`
	ShoppingResults []struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Price  string `json:"price"`
		Source string `json:"source"`
	} `json:"shopping_results"`
}

// Search returns organic results.
func (s *SerpAPI) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	return s.SearchType(ctx, query, maxResults, SearchOrganic)
}

// SearchType returns results of the given kind.
func (s *SerpAPI) SearchType(ctx context.Context, query string, maxResults int, kind SearchType) (*Response, error) {
	q, err := checkQuery(query)
	if err != nil {
		return nil, err
	}
	n := clampResults(maxResults, 100)

	params := url.Values{}
	params.Set("engine", s.Engine)
	params.Set("q", q)
	params.Set("num", strconv.Itoa(n))
	params.Set("api_key", s.APIKey)
	if s.Location != "" {
		params.Set("location", s.Location)
	}
	switch kind {
	case "", SearchOrganic:
		kind = SearchOrganic
	case SearchNews:
		params.Set("tbm", "nws")
	case SearchShopping:
		params.Set("tbm", "shop")
	default:
		return nil, fmt.Errorf("unknown search type %q", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var raw serpResponse
	if err := doJSON(s.HTTPClient, req, s.Name(), &raw); err != nil {
		// error replies carry {"error": "..."} with a non-200 status
		var se *StatusError
		if errors.As(err, &se) && json.Unmarshal([]byte(se.Body), &raw) == nil && raw.Error != "" {
			return nil, fmt.Errorf("serpapi: %s (status %d)", raw.Error, se.Code)
		}
		return nil, err
	}
	if raw.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", raw.Error)
	}

	out := &Response{Provider: s.Name(), Query: q, Results: []Result{}}
	out.Answer = clean(raw.AnswerBox.Answer)
	if out.Answer == "" {
		out.Answer = clean(raw.AnswerBox.Snippet)
	}
	add := func(r Result) {
		if len(out.Results) < n {
			out.Results = append(out.Results, r)
		}
	}
	switch kind {
	case SearchOrganic:
		for _, r := range raw.OrganicResults {
			add(Result{Title: clean(r.Title), URL: r.Link, Snippet: clean(r.Snippet), Source: string(SearchOrganic)})
		}
	case SearchNews:
		for _, r := range raw.NewsResults {
			snippet := clean(r.Snippet)
			if r.Date != "" {
				snippet = clean(r.Date + " - " + snippet)
			}
			add(Result{Title: clean(r.Title), URL: r.Link, Snippet: snippet, Source: string(SearchNews)})
		}
	case SearchShopping:
		for _, r := range raw.ShoppingResults {
			add(Result{Title: clean(r.Title), URL: r.Link, Snippet: clean(r.Price + " " + r.Source), Source: string(SearchShopping)})
		}
	}
	return out, nil
}
