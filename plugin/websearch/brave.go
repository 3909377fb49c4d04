package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

// Brave searches the web with the Brave Search API.
type Brave struct {
	APIKey     string
	BaseURL    string
	Country    string
	Lang       string
	HTTPClient *http.Client
}

var _ SearchAdapter = (*Brave)(nil)

type BraveOption func(*Brave)

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *Brave) { b.BaseURL = baseURL }
}

// WithBraveCountry sets the country code for search results (e.g., "US", "DE").
func WithBraveCountry(country string) BraveOption {
	return func(b *Brave) { b.Country = country }
}

// WithBraveLang sets the language code for search results (e.g., "en", "fr").
func WithBraveLang(lang string) BraveOption {
	return func(b *Brave) { b.Lang = lang }
}

// WithBraveHTTPClient sets the HTTP client.
func WithBraveHTTPClient(c *http.Client) BraveOption {
	return func(b *Brave) { b.HTTPClient = c }
}

// NewBrave creates a Brave adapter.
// If apiKey is empty, it tries to read from BRAVE_API_KEY environment variable.
func NewBrave(apiKey string, opts ...BraveOption) (*Brave, error) {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}
	b := &Brave{
		APIKey:  apiKey,
		BaseURL: "https://api.search.brave.com/res/v1/web/search",
		Country: "US",
		Lang:    "en",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns up to maxResults web results (Brave allows 20).
func (b *Brave) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	q, err := checkQuery(query)
	if err != nil {
		return nil, err
	}
	n := clampResults(maxResults, 20)

	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(n))
	if b.Country != "" {
		params.Set("country", b.Country)
	}
	if b.Lang != "" {
		params.Set("search_lang", b.Lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	var raw braveResponse
	if err := doJSON(b.HTTPClient, req, b.Name(), &raw); err != nil {
		return nil, err
	}

	out := &Response{Provider: b.Name(), Query: q, Results: []Result{}}
	for _, r := range raw.Web.Results {
		if len(out.Results) == n {
			break
		}
		out.Results = append(out.Results, Result{
			Title:   clean(r.Title),
			URL:     r.URL,
			Snippet: clean(r.Description),
			Source:  "web",
		})
	}
	return out, nil
}
