package postgres

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
)

// DBPool is the subset of *pgxpool.Pool the plugin uses.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	DefaultSchema  = "public"
	DefaultMaxRows = 1000
	defaultLimit   = 100
)

// Plugin exposes a PostgreSQL database. The pool is owned by the caller.
type Plugin struct {
	pool    DBPool
	schema  string
	maxRows int
	logger  log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

// WithSchema sets the schema used when a table name is unqualified.
func WithSchema(schema string) Option {
	return func(p *Plugin) { p.schema = schema }
}

// WithMaxRows caps the rows returned by one query.
func WithMaxRows(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.maxRows = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates the plugin over an established pool.
func New(pool DBPool, opts ...Option) *Plugin {
	p := &Plugin{
		pool:    pool,
		schema:  DefaultSchema,
		maxRows: DefaultMaxRows,
		logger:  log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "postgres" }

func (p *Plugin) Description() string {
	return "Query and modify a PostgreSQL database."
}

// QueryResult holds the rows of a query or the outcome of a command.
type QueryResult struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	Truncated    bool             `json:"truncated,omitempty"`
	Command      string           `json:"command,omitempty"`
	RowsAffected int64            `json:"rows_affected"`
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  any    `json:"default,omitempty"`
}

var (
	rowQueryRe  = regexp.MustCompile(`(?is)^\s*(select|with|show|values|explain|table)\b|\breturning\b`)
	typeRe      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ,()\[\]]*$`)
	forbiddenRe = regexp.MustCompile(`;|--|/\*`)
)

// ident quotes a table name that may be schema-qualified.
func (p *Plugin) ident(name string) (string, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) > 2 {
		return "", plugin.Invalid("invalid table name %q", name)
	}
	if len(parts) == 1 {
		parts = []string{p.schema, parts[0]}
	}
	for _, part := range parts {
		if part == "" || len(part) > 63 {
			return "", plugin.Invalid("invalid table name %q", name)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

func (p *Plugin) split(name string) (schema, table string) {
	if s, t, ok := strings.Cut(name, "."); ok {
		return s, t
	}
	return p.schema, name
}

func column(name string) (string, error) {
	if name == "" || len(name) > 63 {
		return "", plugin.Invalid("invalid column name %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query runs sql and collects at most the configured number of rows.
func (p *Plugin) Query(ctx context.Context, sql string, args ...any) (*QueryResult, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &QueryResult{Rows: []map[string]any{}}
	for _, fd := range rows.FieldDescriptions() {
		res.Columns = append(res.Columns, fd.Name)
	}
	for rows.Next() {
		if len(res.Rows) >= p.maxRows {
			res.Truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(vals))
		for i, v := range vals {
			if i < len(res.Columns) {
				row[res.Columns[i]] = normalize(v)
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res.RowCount = len(res.Rows)
	res.RowsAffected = int64(res.RowCount)
	return res, nil
}

// Exec runs a statement that returns no rows.
func (p *Plugin) Exec(ctx context.Context, sql string, args ...any) (*QueryResult, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Command: tag.String(), RowsAffected: tag.RowsAffected()}, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return string(t)
	}
	return v
}

func (p *Plugin) fail(op string, err error) plugin.Result {
	p.logger.Error("postgres %s failed: %v", op, err)
	return plugin.Fail(plugin.External(op, err))
}
