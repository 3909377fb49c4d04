package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
)

const (
	DefaultMaxRows = 1000
	defaultLimit   = 100
)

// Plugin exposes a SQLite database. The *sql.DB is owned by the caller.
type Plugin struct {
	db      *sql.DB
	maxRows int
	logger  log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

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

// New creates the plugin over an open database handle.
func New(db *sql.DB, opts ...Option) *Plugin {
	p := &Plugin{db: db, maxRows: DefaultMaxRows, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "sqlite" }

func (p *Plugin) Description() string { return "Query and modify a SQLite database." }

// QueryResult holds the rows of a query or the outcome of a statement.
type QueryResult struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	Truncated    bool             `json:"truncated,omitempty"`
	RowsAffected int64            `json:"rows_affected"`
	LastInsertID int64            `json:"last_insert_id,omitempty"`
}

// Column is one row of PRAGMA table_info.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	Default    any    `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

var (
	rowQueryRe  = regexp.MustCompile(`(?is)^\s*(select|with|pragma|values|explain)\b|\breturning\b`)
	typeRe      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ,()]*$`)
	forbiddenRe = regexp.MustCompile(`;|--|/\*`)
)

// quote renders name as a SQLite identifier.
func quote(name string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return "", plugin.Invalid("invalid identifier %q", name)
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
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
func (p *Plugin) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) >= p.maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

// Exec runs a statement that returns no rows.
func (p *Plugin) Exec(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	r, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	res := &QueryResult{}
	res.RowsAffected, _ = r.RowsAffected()
	res.LastInsertID, _ = r.LastInsertId()
	return res, nil
}

func (p *Plugin) fail(op string, err error) plugin.Result {
	p.logger.Error("sqlite %s failed: %v", op, err)
	return plugin.Fail(plugin.External(op, err))
}

var tableParam = plugin.Parameter{Name: "table", Type: "string", Required: true, Description: "table name"}

func (p *Plugin) Functions() []plugin.Function {
	return []plugin.Function{
		{
			Name:        "execute_query",
			Description: "Run a SQL statement. Use ? placeholders with params.",
			Parameters: []plugin.Parameter{
				{Name: "query", Type: "string", Required: true, Description: "SQL statement"},
				{Name: "params", Type: "array", Description: "positional parameters"},
			},
			Handler: p.executeQuery,
		},
		{
			Name:        "list_tables",
			Description: "List the tables in the database.",
			Handler:     p.listTables,
		},
		{
			Name:        "describe_table",
			Description: "Describe the columns of a table.",
			Parameters:  []plugin.Parameter{tableParam},
			Handler:     p.describeTable,
		},
		{
			Name:        "fetch_table_data",
			Description: "Fetch rows from a table.",
			Parameters: []plugin.Parameter{tableParam,
				{Name: "limit", Type: "integer", Description: fmt.Sprintf("maximum rows, default %d", defaultLimit)}},
			Handler: p.fetchTableData,
		},
		{
			Name:        "insert_data",
			Description: "Insert one row.",
			Parameters: []plugin.Parameter{tableParam,
				{Name: "data", Type: "object", Required: true, Description: "column to value map"}},
			Handler: p.insertData,
		},
		{
			Name:        "update_data",
			Description: "Update rows matching every where condition.",
			Parameters: []plugin.Parameter{tableParam,
				{Name: "data", Type: "object", Required: true, Description: "column to new value map"},
				{Name: "where", Type: "object", Required: true, Description: "column to value equality conditions"}},
			Handler: p.updateData,
		},
		{
			Name:        "delete_data",
			Description: "Delete rows matching every where condition.",
			Parameters: []plugin.Parameter{tableParam,
				{Name: "where", Type: "object", Required: true, Description: "column to value equality conditions"}},
			Handler: p.deleteData,
		},
		{
			Name:        "create_table",
			Description: "Create a table if it does not exist.",
			Parameters: []plugin.Parameter{tableParam,
				{Name: "columns", Type: "object", Required: true, Description: `column to type map, e.g. {"id": "INTEGER PRIMARY KEY"}`}},
			Handler: p.createTable,
		},
		{
			Name:        "drop_table",
			Description: "Drop a table if it exists.",
			Parameters:  []plugin.Parameter{tableParam},
			Handler:     p.dropTable,
		},
	}
}

func (p *Plugin) executeQuery(ctx context.Context, args plugin.Args) plugin.Result {
	query, err := args.RequireString("query")
	if err != nil {
		return plugin.Fail(err)
	}
	var params []any
	if v, ok := args["params"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return plugin.Fail(plugin.Invalid("params must be an array, got %T", v))
		}
		params = list
	}
	var res *QueryResult
	if rowQueryRe.MatchString(query) {
		res, err = p.Query(ctx, query, params...)
	} else {
		res, err = p.Exec(ctx, query, params...)
	}
	if err != nil {
		return p.fail("execute_query", err)
	}
	return plugin.OK(res)
}

func (p *Plugin) listTables(ctx context.Context, _ plugin.Args) plugin.Result {
	res, err := p.Query(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return p.fail("list_tables", err)
	}
	tables := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		tables = append(tables, fmt.Sprint(row["name"]))
	}
	return plugin.OK(map[string]any{"tables": tables})
}

func (p *Plugin) describeTable(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	res, err := p.Query(ctx, "PRAGMA table_info("+ident+")")
	if err != nil {
		return p.fail("describe_table", err)
	}
	if len(res.Rows) == 0 {
		return plugin.Fail(plugin.Invalid("table %q not found", name))
	}
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{
			Name:       fmt.Sprint(row["name"]),
			Type:       fmt.Sprint(row["type"]),
			NotNull:    fmt.Sprint(row["notnull"]) != "0",
			Default:    row["dflt_value"],
			PrimaryKey: fmt.Sprint(row["pk"]) != "0",
		})
	}
	return plugin.OK(map[string]any{"table": name, "columns": cols})
}

func (p *Plugin) fetchTableData(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	limit, err := args.Int("limit", defaultLimit)
	if err != nil {
		return plugin.Fail(err)
	}
	if limit <= 0 {
		return plugin.Fail(plugin.Invalid("limit must be positive, got %d", limit))
	}
	res, err := p.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT ?", ident), limit)
	if err != nil {
		return p.fail("fetch_table_data", err)
	}
	return plugin.OK(res)
}

func (p *Plugin) insertData(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	data, err := args.RequireMap("data")
	if err != nil {
		return plugin.Fail(err)
	}
	keys := sortedKeys(data)
	cols := make([]string, len(keys))
	vals := make([]any, len(keys))
	for i, k := range keys {
		if cols[i], err = quote(k); err != nil {
			return plugin.Fail(err)
		}
		vals[i] = data[k]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ident,
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", "))
	res, err := p.Exec(ctx, query, vals...)
	if err != nil {
		return p.fail("insert_data", err)
	}
	return plugin.OK(res)
}

// conditions renders m as "col" = ? clauses joined by sep. In a WHERE
// list a nil value becomes IS NULL.
func conditions(m map[string]any, sep string) (string, []any, error) {
	where := sep == " AND "
	parts := make([]string, 0, len(m))
	vals := make([]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		col, err := quote(k)
		if err != nil {
			return "", nil, err
		}
		if where && m[k] == nil {
			parts = append(parts, col+" IS NULL")
			continue
		}
		parts = append(parts, col+" = ?")
		vals = append(vals, m[k])
	}
	return strings.Join(parts, sep), vals, nil
}

func (p *Plugin) updateData(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	data, err := args.RequireMap("data")
	if err != nil {
		return plugin.Fail(err)
	}
	where, err := args.RequireMap("where")
	if err != nil {
		return plugin.Fail(err)
	}
	set, setVals, err := conditions(data, ", ")
	if err != nil {
		return plugin.Fail(err)
	}
	cond, condVals, err := conditions(where, " AND ")
	if err != nil {
		return plugin.Fail(err)
	}
	res, err := p.Exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s", ident, set, cond),
		append(setVals, condVals...)...)
	if err != nil {
		return p.fail("update_data", err)
	}
	return plugin.OK(res)
}

func (p *Plugin) deleteData(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	where, err := args.RequireMap("where")
	if err != nil {
		return plugin.Fail(err)
	}
	cond, vals, err := conditions(where, " AND ")
	if err != nil {
		return plugin.Fail(err)
	}
	res, err := p.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", ident, cond), vals...)
	if err != nil {
		return p.fail("delete_data", err)
	}
	return plugin.OK(res)
}

func (p *Plugin) createTable(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	columns, err := args.RequireMap("columns")
	if err != nil {
		return plugin.Fail(err)
	}
	defs := make([]string, 0, len(columns))
	for _, k := range sortedKeys(columns) {
		col, err := quote(k)
		if err != nil {
			return plugin.Fail(err)
		}
		typ, ok := columns[k].(string)
		typ = strings.TrimSpace(typ)
		if !ok || !typeRe.MatchString(typ) || forbiddenRe.MatchString(typ) {
			return plugin.Fail(plugin.Invalid("invalid type for column %q: %v", k, columns[k]))
		}
		defs = append(defs, col+" "+typ)
	}
	res, err := p.Exec(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident, strings.Join(defs, ", ")))
	if err != nil {
		return p.fail("create_table", err)
	}
	return plugin.OK(res)
}

func (p *Plugin) dropTable(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := quote(name)
	if err != nil {
		return plugin.Fail(err)
	}
	res, err := p.Exec(ctx, "DROP TABLE IF EXISTS "+ident)
	if err != nil {
		return p.fail("drop_table", err)
	}
	return plugin.OK(res)
}
