package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
)

// Plugin exposes the configured search providers as plugin functions.
type Plugin struct {
	providers  map[string]SearchAdapter
	order      []string
	maxResults int
	logger     log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

// WithProvider adds a search backend. The first one added is the default
// for the generic search function.
func WithProvider(a SearchAdapter) Option {
	return func(p *Plugin) {
		if a == nil {
			return
		}
		if _, ok := p.providers[a.Name()]; !ok {
			p.order = append(p.order, a.Name())
		}
		p.providers[a.Name()] = a
	}
}

// WithMaxResults sets the default number of results per query.
func WithMaxResults(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.maxResults = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates the plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		providers:  map[string]SearchAdapter{},
		maxResults: DefaultMaxResults,
		logger:     log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "websearch" }

func (p *Plugin) Description() string {
	return "Search the web through " + strings.Join(p.order, ", ") + "."
}

// Providers lists provider names in registration order.
func (p *Plugin) Providers() []string { return append([]string(nil), p.order...) }

// Data is the payload of a successful search.
type Data struct {
	*Response
	Markdown string `json:"markdown"`
}

var (
	queryParam = plugin.Parameter{Name: "query", Type: "string", Required: true, Description: "search query"}
	maxParam   = plugin.Parameter{Name: "max_results", Type: "integer", Description: "number of results to return"}
)

func (p *Plugin) Functions() []plugin.Function {
	if len(p.order) == 0 {
		return nil
	}
	fns := []plugin.Function{{
		Name:        "search",
		Description: "Search the web and return titles, URLs and snippets. Default provider: " + p.order[0] + ".",
		Parameters: []plugin.Parameter{queryParam, maxParam,
			{Name: "provider", Type: "string", Description: "one of " + strings.Join(p.order, ", ")}},
		Handler: func(ctx context.Context, args plugin.Args) plugin.Result {
			name, err := args.StringOr("provider", p.order[0])
			if err != nil {
				return plugin.Fail(err)
			}
			a, ok := p.providers[strings.ToLower(name)]
			if !ok {
				return plugin.Fail(plugin.Invalid("unknown provider %q", name))
			}
			return p.search(ctx, a, args)
		},
	}}

	for _, name := range p.order {
		a := p.providers[name]
		fn := plugin.Function{
			Name:        name + "_search",
			Description: fmt.Sprintf("Search the web with %s.", name),
			Parameters:  []plugin.Parameter{queryParam, maxParam},
			Handler: func(ctx context.Context, args plugin.Args) plugin.Result {
				return p.search(ctx, a, args)
			},
		}
		if serp, ok := a.(*SerpAPI); ok {
			fn.Description = "Search Google through SerpApi. Returns organic, news or shopping results."
			fn.Parameters = append(fn.Parameters, plugin.Parameter{
				Name: "type", Type: "string", Description: "organic (default), news or shopping",
			})
			fn.Handler = func(ctx context.Context, args plugin.Args) plugin.Result {
				kind, err := args.StringOr("type", string(SearchOrganic))
				if err != nil {
					return plugin.Fail(err)
				}
				switch SearchType(kind) {
				case SearchOrganic, SearchNews, SearchShopping:
				default:
					return plugin.Fail(plugin.Invalid("type must be organic, news or shopping, got %q", kind))
				}
				return p.run(ctx, serp.Name(), args, func(ctx context.Context, q string, n int) (*Response, error) {
					return serp.SearchType(ctx, q, n, SearchType(kind))
				})
			}
		}
		fns = append(fns, fn)
	}
	return fns
}

func (p *Plugin) search(ctx context.Context, a SearchAdapter, args plugin.Args) plugin.Result {
	return p.run(ctx, a.Name(), args, a.Search)
}

func (p *Plugin) run(ctx context.Context, provider string, args plugin.Args,
	do func(ctx context.Context, q string, n int) (*Response, error)) plugin.Result {
	q, err := args.RequireString("query")
	if err != nil {
		return plugin.Fail(err)
	}
	n, err := args.Int("max_results", p.maxResults)
	if err != nil {
		return plugin.Fail(err)
	}

	p.logger.Info("🔍 %s search: %s", provider, q)
	resp, err := do(ctx, q, n)
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			return plugin.Fail(plugin.Invalid("%v", err))
		}
		return plugin.Fail(plugin.External(provider+" search", err))
	}
	p.logger.Debug("%s returned %d results", provider, len(resp.Results))
	return plugin.OK(Data{Response: resp, Markdown: resp.Markdown()})
}
