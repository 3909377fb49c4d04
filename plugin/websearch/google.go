package websearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Lynx gets the plain HTML results page, which is stable enough to parse.
const googleUserAgent = "Lynx/2.8.9rel.1 libwww-FM/2.14 SSL-MM/1.4.1 OpenSSL/1.1.1d"

// Google scrapes the public Google results page. It needs no API key but
// is subject to rate limiting and markup changes.
type Google struct {
	BaseURL    string
	Lang       string
	SafeSearch bool
	HTTPClient *http.Client
}

var _ SearchAdapter = (*Google)(nil)

type GoogleOption func(*Google)

// WithGoogleBaseURL sets the results page URL.
func WithGoogleBaseURL(baseURL string) GoogleOption {
	return func(g *Google) { g.BaseURL = baseURL }
}

// WithGoogleLang sets the interface language, e.g. "en".
func WithGoogleLang(lang string) GoogleOption {
	return func(g *Google) { g.Lang = lang }
}

// WithGoogleHTTPClient sets the HTTP client.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.HTTPClient = c }
}

// NewGoogle creates a Google scraper with safe search on.
func NewGoogle(opts ...GoogleOption) *Google {
	g := &Google{
		BaseURL:    "https://www.google.com/search",
		Lang:       "en",
		SafeSearch: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) Name() string { return "google" }

// Search fetches and parses one results page.
func (g *Google) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	q, err := checkQuery(query)
	if err != nil {
		return nil, err
	}
	n := clampResults(maxResults, 100)

	params := url.Values{}
	params.Set("q", q)
	params.Set("num", strconv.Itoa(n+2))
	params.Set("hl", g.Lang)
	if g.SafeSearch {
		params.Set("safe", "active")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", googleUserAgent)
	req.Header.Set("Accept", "*/*")
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+"})

	body, err := doRequest(g.HTTPClient, req, g.Name())
	if err != nil {
		return nil, err
	}
	results, err := parseGoogleResults(body, n)
	if err != nil {
		return nil, err
	}
	return &Response{Provider: g.Name(), Query: q, Results: results}, nil
}

// parseGoogleResults understands both the basic-HTML layout served to
// text browsers and the classic div.g layout.
func parseGoogleResults(page []byte, max int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	results := []Result{}
	seen := map[string]bool{}
	collect := func(block *goquery.Selection, titleSel, snippetSel string) {
		if len(results) >= max {
			return
		}
		link := block.Find("a[href]").First()
		href, _ := link.Attr("href")
		target := resultURL(href)
		if target == "" || seen[target] {
			return
		}
		title := clean(link.Find(titleSel).First().Text())
		if title == "" {
			return
		}
		seen[target] = true
		results = append(results, Result{
			Title:   title,
			URL:     target,
			Snippet: clean(block.Find(snippetSel).First().Text()),
			Source:  "organic",
		})
	}

	doc.Find("div.ezO2md").Each(func(_ int, s *goquery.Selection) {
		collect(s, "span.CVA68e", "span.FrIlee")
	})
	doc.Find("div.g").Each(func(_ int, s *goquery.Selection) {
		collect(s, "h3", "div.VwiC3b")
	})
	return results, nil
}

// resultURL unwraps Google's /url?q= redirect links and drops internal ones.
func resultURL(href string) string {
	if strings.HasPrefix(href, "/url?") {
		vals, err := url.ParseQuery(strings.TrimPrefix(href, "/url?"))
		if err != nil {
			return ""
		}
		href = vals.Get("q")
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}
