package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
)

const (
	DefaultMaxKeys = 1000
	scanBatch      = 100
)

// Plugin exposes a Redis keyspace. The client is owned by the caller.
type Plugin struct {
	client  redis.UniversalClient
	maxKeys int
	logger  log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

// WithMaxKeys caps the keys returned by one keys call.
func WithMaxKeys(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.maxKeys = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates the plugin.
func New(client redis.UniversalClient, opts ...Option) *Plugin {
	p := &Plugin{client: client, maxKeys: DefaultMaxKeys, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "redis" }

func (p *Plugin) Description() string { return "Read and write Redis keys and hashes." }

var keyParam = plugin.Parameter{Name: "key", Type: "string", Required: true, Description: "key name"}

func (p *Plugin) Functions() []plugin.Function {
	return []plugin.Function{
		{Name: "get", Description: "Get the string value of a key.",
			Parameters: []plugin.Parameter{keyParam}, Handler: p.get},
		{Name: "set", Description: "Set a key. Non-string values are stored as JSON.",
			Parameters: []plugin.Parameter{keyParam,
				{Name: "value", Type: "string", Required: true, Description: "value to store"},
				{Name: "ttl_seconds", Type: "integer", Description: "expiry in seconds, 0 keeps the key forever"}},
			Handler: p.set},
		{Name: "delete", Description: "Delete one or more keys.",
			Parameters: []plugin.Parameter{
				{Name: "key", Type: "string", Description: "key name"},
				{Name: "keys", Type: "array", Description: "key names"}},
			Handler: p.delete},
		{Name: "keys", Description: "List keys matching a glob pattern using SCAN.",
			Parameters: []plugin.Parameter{
				{Name: "pattern", Type: "string", Description: "glob pattern, default *"},
				{Name: "limit", Type: "integer", Description: fmt.Sprintf("maximum keys, default %d", p.maxKeys)}},
			Handler: p.keys},
		{Name: "hgetall", Description: "Get every field of a hash.",
			Parameters: []plugin.Parameter{keyParam}, Handler: p.hgetall},
		{Name: "hset", Description: "Set fields of a hash.",
			Parameters: []plugin.Parameter{keyParam,
				{Name: "fields", Type: "object", Required: true, Description: "field to value map"}},
			Handler: p.hset},
		{Name: "ttl", Description: "Remaining time to live of a key in seconds. -1 means no expiry, -2 a missing key.",
			Parameters: []plugin.Parameter{keyParam}, Handler: p.ttl},
	}
}

func (p *Plugin) fail(op string, err error) plugin.Result {
	p.logger.Error("redis %s failed: %v", op, err)
	return plugin.Fail(plugin.External(op, err))
}

// text renders a value for storage.
func text(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", plugin.Invalid("value cannot be encoded: %v", err)
	}
	return string(b), nil
}

func (p *Plugin) get(ctx context.Context, args plugin.Args) plugin.Result {
	key, err := args.RequireString("key")
	if err != nil {
		return plugin.Fail(err)
	}
	val, err := p.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return plugin.OK(map[string]any{"key": key, "found": false})
	}
	if err != nil {
		return p.fail("get", err)
	}
	return plugin.OK(map[string]any{"key": key, "found": true, "value": val})
}

func (p *Plugin) set(ctx context.Context, args plugin.Args) plugin.Result {
	key, err := args.RequireString("key")
	if err != nil {
		return plugin.Fail(err)
	}
	val, err := text(args["value"])
	if err != nil {
		return plugin.Fail(err)
	}
	ttl, err := args.Int("ttl_seconds", 0)
	if err != nil {
		return plugin.Fail(err)
	}
	if ttl < 0 {
		return plugin.Fail(plugin.Invalid("ttl_seconds must not be negative"))
	}
	if err := p.client.Set(ctx, key, val, time.Duration(ttl)*time.Second).Err(); err != nil {
		return p.fail("set", err)
	}
	return plugin.OK(map[string]any{"key": key, "stored": true})
}

func (p *Plugin) delete(ctx context.Context, args plugin.Args) plugin.Result {
	keys, _, err := args.StringSlice("keys")
	if err != nil {
		return plugin.Fail(err)
	}
	if k, ok, err := args.String("key"); err != nil {
		return plugin.Fail(err)
	} else if ok && k != "" {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return plugin.Fail(plugin.Missing("key"))
	}
	n, err := p.client.Del(ctx, keys...).Result()
	if err != nil {
		return p.fail("delete", err)
	}
	return plugin.OK(map[string]any{"deleted": n})
}

func (p *Plugin) keys(ctx context.Context, args plugin.Args) plugin.Result {
	pattern, err := args.StringOr("pattern", "*")
	if err != nil {
		return plugin.Fail(err)
	}
	limit, err := args.Int("limit", p.maxKeys)
	if err != nil {
		return plugin.Fail(err)
	}
	if limit <= 0 || limit > p.maxKeys {
		limit = p.maxKeys
	}

	var (
		out       []string
		cursor    uint64
		truncated bool
	)
	seen := map[string]bool{}
	for {
		batch, next, err := p.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return p.fail("keys", err)
		}
		for _, k := range batch {
			if seen[k] {
				continue
			}
			if len(out) == limit {
				truncated = true
				break
			}
			seen[k] = true
			out = append(out, k)
		}
		cursor = next
		if cursor == 0 || truncated {
			break
		}
	}
	if out == nil {
		out = []string{}
	}
	return plugin.OK(map[string]any{"keys": out, "count": len(out), "truncated": truncated})
}

func (p *Plugin) hgetall(ctx context.Context, args plugin.Args) plugin.Result {
	key, err := args.RequireString("key")
	if err != nil {
		return plugin.Fail(err)
	}
	fields, err := p.client.HGetAll(ctx, key).Result()
	if err != nil {
		return p.fail("hgetall", err)
	}
	return plugin.OK(map[string]any{"key": key, "fields": fields})
}

func (p *Plugin) hset(ctx context.Context, args plugin.Args) plugin.Result {
	key, err := args.RequireString("key")
	if err != nil {
		return plugin.Fail(err)
	}
	fields, err := args.RequireMap("fields")
	if err != nil {
		return plugin.Fail(err)
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		if values[k], err = text(v); err != nil {
			return plugin.Fail(err)
		}
	}
	n, err := p.client.HSet(ctx, key, values).Result()
	if err != nil {
		return p.fail("hset", err)
	}
	return plugin.OK(map[string]any{"key": key, "added": n})
}

func (p *Plugin) ttl(ctx context.Context, args plugin.Args) plugin.Result {
	key, err := args.RequireString("key")
	if err != nil {
		return plugin.Fail(err)
	}
	d, err := p.client.TTL(ctx, key).Result()
	if err != nil {
		return p.fail("ttl", err)
	}
	secs := int64(d / time.Second)
	if d < 0 {
		// go-redis passes the -1 and -2 sentinels through unscaled.
		secs = int64(d)
	}
	return plugin.OK(map[string]any{"key": key, "ttl_seconds": secs})
}
