package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the variable holding the config file path.
const EnvConfig = "KERNELPLUGINS_CONFIG"

// Load builds the configuration from defaults, the YAML file, the
// environment and secret files, then validates it. An empty path triggers
// discovery; a missing file is only an error when named explicitly.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if file := discover(path); file != "" {
		if err := loadYAML(file, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", file, err)
		}
	}

	applyEnv(&cfg)

	if err := resolveFiles(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func discover(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	for _, candidate := range []string{"kernelplugins.yaml", "/etc/kernelplugins/config.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Log.Level, "KERNELPLUGINS_LOG_LEVEL")
	set(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	set(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	set(&cfg.LLM.Model, "OPENAI_MODEL")
	set(&cfg.Search.TavilyAPIKey, "TAVILY_API_KEY")
	set(&cfg.Search.SerpAPIKey, "SERPAPI_API_KEY")
	set(&cfg.Search.BraveAPIKey, "BRAVE_API_KEY")
	set(&cfg.Postgres.DSN, "DATABASE_URL")
	set(&cfg.SQLite.Path, "SQLITE_PATH")
	set(&cfg.MongoDB.URI, "MONGODB_URI")
	set(&cfg.MongoDB.Database, "MONGODB_DATABASE")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")

	if v := os.Getenv("KERNELPLUGINS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Codegen.MaxRetries = n
		}
	}
	if v := os.Getenv("KERNELPLUGINS_SHELL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Shell.Enabled = b
		}
	}
}

// resolveFiles fills each secret from its _file field when the value
// itself is empty.
func resolveFiles(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"llm.api_key_file", cfg.LLM.APIKeyFile, &cfg.LLM.APIKey},
		{"search.tavily_api_key_file", cfg.Search.TavilyKeyFile, &cfg.Search.TavilyAPIKey},
		{"search.serpapi_api_key_file", cfg.Search.SerpAPIKeyFile, &cfg.Search.SerpAPIKey},
		{"search.brave_api_key_file", cfg.Search.BraveKeyFile, &cfg.Search.BraveAPIKey},
		{"postgres.dsn_file", cfg.Postgres.DSNFile, &cfg.Postgres.DSN},
		{"mongodb.uri_file", cfg.MongoDB.URIFile, &cfg.MongoDB.URI},
		{"redis.password_file", cfg.Redis.PasswordFile, &cfg.Redis.Password},
	}
	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		data, err := os.ReadFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = strings.TrimSpace(string(data))
	}
	return nil
}
