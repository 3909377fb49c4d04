package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultMaxResults = 5
	maxBodyBytes      = 4 << 20
)

// ErrEmptyQuery is returned for blank queries before any request is made.
var ErrEmptyQuery = errors.New("search query is empty")

// Result is one search hit, normalized across providers.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Source  string  `json:"source,omitempty"` // organic, news, shopping...
	Score   float64 `json:"score,omitempty"`
}

// Response is the normalized answer of one provider call.
type Response struct {
	Provider string   `json:"provider"`
	Query    string   `json:"query"`
	Answer   string   `json:"answer,omitempty"`
	Results  []Result `json:"results"`
}

// SearchAdapter is implemented by every search backend.
type SearchAdapter interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) (*Response, error)
}

// Markdown renders the response as a numbered list of linked results.
func (r *Response) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Search Results for %q\n\n", r.Query)
	if r.Answer != "" {
		fmt.Fprintf(&b, "**Answer:** %s\n\n", r.Answer)
	}
	if len(r.Results) == 0 {
		b.WriteString("No results found.\n")
		return b.String()
	}
	for i, res := range r.Results {
		fmt.Fprintf(&b, "### %d. [%s](%s)\n\n", i+1, res.Title, res.URL)
		if res.Snippet != "" {
			b.WriteString(res.Snippet)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// StatusError reports a non-200 reply from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

var strict = bluemonday.StrictPolicy()

// clean strips markup and collapses whitespace in provider text.
func clean(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func clampResults(n, max int) int {
	if n <= 0 {
		n = DefaultMaxResults
	}
	if n > max {
		n = max
	}
	return n
}

func checkQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}

func doRequest(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return nil, &StatusError{Provider: provider, Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

func doJSON(client *http.Client, req *http.Request, provider string, out any) error {
	body, err := doRequest(client, req, provider)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
