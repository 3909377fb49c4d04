package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// Tavily searches with the Tavily API, which also returns a short answer.
type Tavily struct {
	APIKey      string
	BaseURL     string
	SearchDepth string // basic or advanced
	Topic       string // general or news
	HTTPClient  *http.Client
}

var _ SearchAdapter = (*Tavily)(nil)

type TavilyOption func(*Tavily)

// WithTavilyBaseURL sets the endpoint URL.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(t *Tavily) { t.BaseURL = baseURL }
}

// WithTavilyDepth selects "basic" or "advanced" search.
func WithTavilyDepth(depth string) TavilyOption {
	return func(t *Tavily) { t.SearchDepth = depth }
}

// WithTavilyTopic selects "general" or "news".
func WithTavilyTopic(topic string) TavilyOption {
	return func(t *Tavily) { t.Topic = topic }
}

// WithTavilyHTTPClient sets the HTTP client.
func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) { t.HTTPClient = c }
}

// NewTavily creates a Tavily adapter.
// If apiKey is empty, it tries to read from TAVILY_API_KEY environment variable.
func NewTavily(apiKey string, opts ...TavilyOption) (*Tavily, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not set")
	}
	t := &Tavily{
		APIKey:      apiKey,
		BaseURL:     "https://api.tavily.com/search",
		SearchDepth: "basic",
		Topic:       "general",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth,omitempty"`
	Topic         string `json:"topic,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns up to maxResults results (Tavily allows 20) and the
// provider's answer when it has one.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	q, err := checkQuery(query)
	if err != nil {
		return nil, err
	}
	n := clampResults(maxResults, 20)

	payload, err := json.Marshal(tavilyRequest{
		Query:         q,
		MaxResults:    n,
		SearchDepth:   t.SearchDepth,
		Topic:         t.Topic,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	var raw tavilyResponse
	if err := doJSON(t.HTTPClient, req, t.Name(), &raw); err != nil {
		return nil, err
	}

	out := &Response{Provider: t.Name(), Query: q, Answer: clean(raw.Answer), Results: []Result{}}
	for _, r := range raw.Results {
		if len(out.Results) == n {
			break
		}
		out.Results = append(out.Results, Result{
			Title:   clean(r.Title),
			URL:     r.URL,
			Snippet: clean(r.Content),
			Source:  t.Topic,
			Score:   r.Score,
		})
	}
	return out, nil
}
