package openaicompat

import (
	"net/http"
	"os"

	"github.com/tmc/langchaingo/callbacks"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1"
)

type options struct {
	apiKey           string
	model            string
	baseURL          string
	organization     string
	httpClient       *http.Client
	callbacksHandler callbacks.Handler
}

// Option is a function that configures an LLM.
type Option func(*options)

// WithAPIKey sets the API key. Defaults to OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(opts *options) { opts.apiKey = apiKey }
}

// WithModel sets the default model name. Defaults to OPENAI_MODEL, then DefaultModel.
func WithModel(model string) Option {
	return func(opts *options) { opts.model = model }
}

// WithBaseURL points the client at any OpenAI-compatible endpoint, such as
// a local vLLM server or a gateway in front of another provider.
// Defaults to OPENAI_BASE_URL, then DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) { opts.baseURL = baseURL }
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(opts *options) { opts.organization = org }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) { opts.httpClient = client }
}

// WithCallbacks sets the callbacks handler.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *options) { opts.callbacksHandler = handler }
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
