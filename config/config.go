// Package config loads the settings the kernelplugins command uses to build
// its plugin registry.
//
// Sources are applied in order:
//  1. Built-in defaults
//  2. YAML file (explicit path, KERNELPLUGINS_CONFIG, ./kernelplugins.yaml,
//     /etc/kernelplugins/config.yaml)
//  3. Environment variable overrides
//  4. _file secret references
//  5. Validation
package config

import (
	"time"

	"github.com/smallnest/kernelplugins/codegen"
	"github.com/smallnest/kernelplugins/plugin/shell"
	"github.com/smallnest/kernelplugins/plugin/websearch"
	"github.com/smallnest/kernelplugins/sandbox"
)

// Config holds every setting of the command.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	LLM      LLMConfig      `yaml:"llm"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Codegen  CodegenConfig  `yaml:"codegen"`
	Shell    ShellConfig    `yaml:"shell"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Redis    RedisConfig    `yaml:"redis"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level      string `yaml:"level"`      // debug, info, warn, error, none; default: info
	Console    bool   `yaml:"console"`    // colorized phase output; default: true
	Timestamps bool   `yaml:"timestamps"` // default: false
	ASCII      bool   `yaml:"ascii"`      // replace emoji; default: false
}

// LLMConfig points at an OpenAI-compatible endpoint. Code generation is
// disabled when APIKey is empty.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIKeyFile  string  `yaml:"api_key_file"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"` // default: 0.2
	MaxTokens   int     `yaml:"max_tokens"`  // default: 2048
}

// SandboxConfig mirrors sandbox.Config.
type SandboxConfig struct {
	Interpreter     string        `yaml:"interpreter"`
	Timeout         time.Duration `yaml:"timeout"`           // default: 30s
	MaxOutputLength int           `yaml:"max_output_length"` // default: 4000
	MemoryLimitMB   int           `yaml:"memory_limit_mb"`   // default: 512
	Denylist        []string      `yaml:"denylist"`          // default: sandbox.DefaultDenylist
	AllowNetwork    bool          `yaml:"allow_network"`
	AllowFileWrite  bool          `yaml:"allow_file_write"`
	AutoInstall     bool          `yaml:"auto_install"`
}

// CodegenConfig tunes the generate-execute loop.
type CodegenConfig struct {
	MaxRetries int `yaml:"max_retries"` // default: 2
}

// ShellConfig controls the shell plugin, which is off unless enabled.
type ShellConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"` // default: 60s
	Dir     string        `yaml:"dir"`
}

// SearchConfig lists the search providers in preference order.
type SearchConfig struct {
	Providers      []string `yaml:"providers"`   // default: every provider with a key, then google
	MaxResults     int      `yaml:"max_results"` // default: 5
	TavilyAPIKey   string   `yaml:"tavily_api_key"`
	TavilyKeyFile  string   `yaml:"tavily_api_key_file"`
	SerpAPIKey     string   `yaml:"serpapi_api_key"`
	SerpAPIKeyFile string   `yaml:"serpapi_api_key_file"`
	BraveAPIKey    string   `yaml:"brave_api_key"`
	BraveKeyFile   string   `yaml:"brave_api_key_file"`
}

// PostgresConfig enables the postgres plugin when DSN is set.
type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	DSNFile string `yaml:"dsn_file"`
	Schema  string `yaml:"schema"`   // default: public
	MaxRows int    `yaml:"max_rows"` // default: 1000
}

// SQLiteConfig enables the sqlite plugin when Path is set.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MongoDBConfig enables the mongodb plugin when URI is set.
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	URIFile  string `yaml:"uri_file"`
	Database string `yaml:"database"`
}

// RedisConfig enables the redis plugin when Addr is set.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
	DB           int    `yaml:"db"`
}

// Defaults returns a Config with every default applied.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Console: true},
		LLM: LLMConfig{Temperature: 0.2, MaxTokens: 2048},
		Sandbox: SandboxConfig{
			Timeout:         sandbox.DefaultTimeout,
			MaxOutputLength: sandbox.DefaultMaxOutputLength,
			MemoryLimitMB:   sandbox.DefaultMemoryLimitMB,
		},
		Codegen:  CodegenConfig{MaxRetries: codegen.DefaultMaxRetries},
		Shell:    ShellConfig{Timeout: shell.DefaultTimeout},
		Search:   SearchConfig{MaxResults: websearch.DefaultMaxResults},
		Postgres: PostgresConfig{Schema: "public", MaxRows: 1000},
	}
}

// SandboxConfig converts the section into a sandbox.Config.
func (c *Config) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		Interpreter:     c.Sandbox.Interpreter,
		Timeout:         c.Sandbox.Timeout,
		MaxOutputLength: c.Sandbox.MaxOutputLength,
		MemoryLimitMB:   c.Sandbox.MemoryLimitMB,
		Denylist:        c.Sandbox.Denylist,
		AllowNetwork:    c.Sandbox.AllowNetwork,
		AllowFileWrite:  c.Sandbox.AllowFileWrite,
		AutoInstall:     c.Sandbox.AutoInstall,
	}
}

// SearchProviders returns the providers to enable, in order.
func (c *Config) SearchProviders() []string {
	if len(c.Search.Providers) > 0 {
		return c.Search.Providers
	}
	var out []string
	if c.Search.TavilyAPIKey != "" {
		out = append(out, "tavily")
	}
	if c.Search.SerpAPIKey != "" {
		out = append(out, "serpapi")
	}
	if c.Search.BraveAPIKey != "" {
		out = append(out, "brave")
	}
	return append(out, "google")
}
