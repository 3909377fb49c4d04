package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/smallnest/kernelplugins/codegen"
	"github.com/smallnest/kernelplugins/config"
	"github.com/smallnest/kernelplugins/llms/openaicompat"
	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/plugin/calculator"
	"github.com/smallnest/kernelplugins/plugin/mongodb"
	"github.com/smallnest/kernelplugins/plugin/postgres"
	"github.com/smallnest/kernelplugins/plugin/python"
	"github.com/smallnest/kernelplugins/plugin/redis"
	"github.com/smallnest/kernelplugins/plugin/shell"
	"github.com/smallnest/kernelplugins/plugin/sqlite"
	"github.com/smallnest/kernelplugins/plugin/websearch"
	"github.com/smallnest/kernelplugins/sandbox"
	"github.com/tmc/langchaingo/llms"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// app owns the registry and every client opened for it.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	registry *plugin.Registry
	closers  []func() error
}

func newLogger(cfg config.LogConfig, w io.Writer) (log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Console {
		return log.NewConsoleLogger(w,
			log.WithConsoleLevel(level),
			log.WithTimestamps(cfg.Timestamps),
			log.WithASCII(cfg.ASCII),
		), nil
	}
	return log.NewGologLoggerTo(w, "[kernelplugins] ", level), nil
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	log.SetDefaultLogger(logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: plugin.NewRegistry(plugin.WithRegistryLogger(logger)),
	}
	if err := a.build(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *app) onClose(f func() error) { a.closers = append(a.closers, f) }

// Close releases clients in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	errs = append(errs, a.registry.Close())
	return errors.Join(errs...)
}

func (a *app) build(ctx context.Context) error {
	steps := []func(context.Context) error{
		a.addCalculator,
		a.addPython,
		a.addShell,
		a.addSearch,
		a.addPostgres,
		a.addSQLite,
		a.addMongoDB,
		a.addRedis,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	a.logger.Debug("registered plugins: %s", strings.Join(a.registry.Names(), ", "))
	return nil
}

func (a *app) addCalculator(context.Context) error {
	return a.registry.Register(calculator.New())
}

func (a *app) generator(denylist []string) (codegen.CodeGenerator, error) {
	c := a.cfg.LLM
	if c.APIKey == "" {
		a.logger.Debug("no LLM API key configured, code generation disabled")
		return nil, nil
	}
	opts := []openaicompat.Option{openaicompat.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, openaicompat.WithBaseURL(c.BaseURL))
	}
	if c.Model != "" {
		opts = append(opts, openaicompat.WithModel(c.Model))
	}
	model, err := openaicompat.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return codegen.NewGenerator(model,
		codegen.WithLogger(a.logger),
		codegen.WithSystemPrompt(codegen.SystemPrompt(denylist)),
		codegen.WithCallOptions(llms.WithTemperature(c.Temperature), llms.WithMaxTokens(c.MaxTokens)),
	)
}

func (a *app) addPython(context.Context) error {
	sbCfg := a.cfg.SandboxConfig()
	sbCfg.Logger = a.logger
	sb, err := sandbox.New(sbCfg)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	a.onClose(sb.Close)

	opts := []python.Option{python.WithLogger(a.logger), python.WithMaxRetries(a.cfg.Codegen.MaxRetries)}
	gen, err := a.generator(sb.Config().Denylist)
	if err != nil {
		return err
	}
	if gen != nil {
		opts = append(opts, python.WithGenerator(gen))
	}
	return a.registry.Register(python.New(sb, opts...))
}

func (a *app) addShell(context.Context) error {
	c := a.cfg.Shell
	if !c.Enabled {
		return nil
	}
	return a.registry.Register(shell.New(
		shell.WithTimeout(c.Timeout),
		shell.WithDir(c.Dir),
		shell.WithLogger(a.logger),
	))
}

func (a *app) addSearch(context.Context) error {
	c := a.cfg.Search
	opts := []websearch.Option{websearch.WithMaxResults(c.MaxResults), websearch.WithLogger(a.logger)}
	for _, name := range a.cfg.SearchProviders() {
		var (
			provider websearch.SearchAdapter
			err      error
		)
		switch strings.ToLower(name) {
		case "tavily":
			provider, err = websearch.NewTavily(c.TavilyAPIKey)
		case "serpapi":
			provider, err = websearch.NewSerpAPI(c.SerpAPIKey)
		case "brave":
			provider, err = websearch.NewBrave(c.BraveAPIKey)
		case "google":
			provider = websearch.NewGoogle()
		default:
			err = fmt.Errorf("unknown provider %q", name)
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		opts = append(opts, websearch.WithProvider(provider))
	}
	return a.registry.Register(websearch.New(opts...))
}

func (a *app) addPostgres(ctx context.Context) error {
	c := a.cfg.Postgres
	if c.DSN == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, c.DSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	a.onClose(func() error { pool.Close(); return nil })
	return a.registry.Register(postgres.New(pool,
		postgres.WithSchema(c.Schema),
		postgres.WithMaxRows(c.MaxRows),
		postgres.WithLogger(a.logger),
	))
}

func (a *app) addSQLite(ctx context.Context) error {
	path := a.cfg.SQLite.Path
	if path == "" {
		return nil
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	a.onClose(db.Close)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return a.registry.Register(sqlite.New(db, sqlite.WithLogger(a.logger)))
}

func (a *app) addMongoDB(ctx context.Context) error {
	c := a.cfg.MongoDB
	if c.URI == "" {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	a.onClose(func() error { return client.Disconnect(context.Background()) })
	return a.registry.Register(mongodb.New(mongodb.NewClient(client),
		mongodb.WithDatabase(c.Database),
		mongodb.WithLogger(a.logger),
	))
}

func (a *app) addRedis(context.Context) error {
	c := a.cfg.Redis
	if c.Addr == "" {
		return nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	a.onClose(client.Close)
	return a.registry.Register(redis.New(client, redis.WithLogger(a.logger)))
}
