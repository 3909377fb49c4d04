package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/kernelplugins/codegen"
	"github.com/smallnest/kernelplugins/log"
)

// Validate checks values and cross-field requirements, reporting every
// problem at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Sandbox.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.timeout must be > 0, got %s", c.Sandbox.Timeout))
	}
	if c.Codegen.MaxRetries < 0 || c.Codegen.MaxRetries > codegen.MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("codegen.max_retries must be between 0 and %d, got %d", codegen.MaxRetriesLimit, c.Codegen.MaxRetries))
	}
	if c.Shell.Timeout < 0 {
		errs = append(errs, fmt.Errorf("shell.timeout must be >= 0, got %s", c.Shell.Timeout))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature))
	}

	seen := map[string]bool{}
	for _, p := range c.Search.Providers {
		name := strings.ToLower(p)
		if seen[name] {
			errs = append(errs, fmt.Errorf("search.providers lists %q twice", p))
		}
		seen[name] = true
		var key string
		switch name {
		case "google":
			continue
		case "tavily":
			key = c.Search.TavilyAPIKey
		case "serpapi":
			key = c.Search.SerpAPIKey
		case "brave":
			key = c.Search.BraveAPIKey
		default:
			errs = append(errs, fmt.Errorf("search.providers: unknown provider %q", p))
			continue
		}
		if key == "" {
			errs = append(errs, fmt.Errorf("search.%s_api_key is required when %s is listed", name, name))
		}
	}

	return errors.Join(errs...)
}
