package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/kernelplugins/plugin"
)

var tableParam = plugin.Parameter{Name: "table", Type: "string", Required: true,
	Description: "table name, optionally schema-qualified"}

func (p *Plugin) Functions() []plugin.Function {
	return []plugin.Function{
		{
			Name:        "execute_query",
			Description: "Run a SQL statement. Use $1, $2 placeholders with params. Returns rows for queries and the affected row count for commands.",
			Parameters: []plugin.Parameter{
				{Name: "query", Type: "string", Required: true, Description: "SQL statement"},
				{Name: "params", Type: "array", Description: "positional parameters"},
			},
			Handler: p.executeQuery,
		},
		{
			Name:        "list_tables",
			Description: "List the tables of a schema.",
			Parameters:  []plugin.Parameter{{Name: "schema", Type: "string", Description: "schema name, default " + p.schema}},
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
			Description: "Insert one row and return it.",
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
				{Name: "columns", Type: "object", Required: true, Description: `column to type map, e.g. {"id": "serial primary key"}`}},
			Handler: p.createTable,
		},
		{
			Name:        "drop_table",
			Description: "Drop a table.",
			Parameters: []plugin.Parameter{tableParam,
				{Name: "if_exists", Type: "boolean", Description: "ignore a missing table, default true"}},
			Handler: p.dropTable,
		},
		{
			Name:        "last_inserted_id",
			Description: "Return the value most recently produced by a sequence in this session.",
			Handler:     p.lastInsertedID,
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

func (p *Plugin) listTables(ctx context.Context, args plugin.Args) plugin.Result {
	schema, err := args.StringOr("schema", p.schema)
	if err != nil {
		return plugin.Fail(err)
	}
	res, err := p.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`,
		schema)
	if err != nil {
		return p.fail("list_tables", err)
	}
	tables := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		tables = append(tables, fmt.Sprint(row["table_name"]))
	}
	return plugin.OK(map[string]any{"schema": schema, "tables": tables})
}

func (p *Plugin) describeTable(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	if _, err := p.ident(name); err != nil {
		return plugin.Fail(err)
	}
	schema, table := p.split(name)
	res, err := p.Query(ctx,
		`SELECT column_name, data_type, is_nullable, column_default FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`,
		schema, table)
	if err != nil {
		return p.fail("describe_table", err)
	}
	if len(res.Rows) == 0 {
		return plugin.Fail(plugin.Invalid("table %q not found", name))
	}
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{
			Name:     fmt.Sprint(row["column_name"]),
			Type:     fmt.Sprint(row["data_type"]),
			Nullable: fmt.Sprint(row["is_nullable"]) == "YES",
			Default:  row["column_default"],
		})
	}
	return plugin.OK(map[string]any{"table": name, "columns": cols})
}

func (p *Plugin) fetchTableData(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := p.ident(name)
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
	res, err := p.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, limit))
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
	ident, err := p.ident(name)
	if err != nil {
		return plugin.Fail(err)
	}
	data, err := args.RequireMap("data")
	if err != nil {
		return plugin.Fail(err)
	}
	if len(data) == 0 {
		return plugin.Fail(plugin.Invalid("data must not be empty"))
	}

	keys := sortedKeys(data)
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	vals := make([]any, len(keys))
	for i, k := range keys {
		if cols[i], err = column(k); err != nil {
			return plugin.Fail(err)
		}
		marks[i] = fmt.Sprintf("$%d", i+1)
		vals[i] = data[k]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		ident, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := p.Query(ctx, sql, vals...)
	if err != nil {
		return p.fail("insert_data", err)
	}
	return plugin.OK(res)
}

// conditions renders m as "col" = $n clauses joined by sep, numbering
// placeholders from n. In a WHERE list a nil value becomes IS NULL.
func conditions(m map[string]any, n int, sep string) (string, []any, error) {
	where := sep == " AND "
	parts := make([]string, 0, len(m))
	vals := make([]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		col, err := column(k)
		if err != nil {
			return "", nil, err
		}
		if where && m[k] == nil {
			parts = append(parts, col+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", col, n+len(vals)))
		vals = append(vals, m[k])
	}
	return strings.Join(parts, sep), vals, nil
}

func (p *Plugin) updateData(ctx context.Context, args plugin.Args) plugin.Result {
	name, err := args.RequireString("table")
	if err != nil {
		return plugin.Fail(err)
	}
	ident, err := p.ident(name)
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
	if len(data) == 0 || len(where) == 0 {
		return plugin.Fail(plugin.Invalid("data and where must not be empty"))
	}
	set, setVals, err := conditions(data, 1, ", ")
	if err != nil {
		return plugin.Fail(err)
	}
	cond, condVals, err := conditions(where, len(setVals)+1, " AND ")
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
	ident, err := p.ident(name)
	if err != nil {
		return plugin.Fail(err)
	}
	where, err := args.RequireMap("where")
	if err != nil {
		return plugin.Fail(err)
	}
	if len(where) == 0 {
		return plugin.Fail(plugin.Invalid("where must not be empty"))
	}
	cond, vals, err := conditions(where, 1, " AND ")
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
	ident, err := p.ident(name)
	if err != nil {
		return plugin.Fail(err)
	}
	columns, err := args.RequireMap("columns")
	if err != nil {
		return plugin.Fail(err)
	}
	if len(columns) == 0 {
		return plugin.Fail(plugin.Invalid("columns must not be empty"))
	}
	defs := make([]string, 0, len(columns))
	for _, k := range sortedKeys(columns) {
		col, err := column(k)
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
	ident, err := p.ident(name)
	if err != nil {
		return plugin.Fail(err)
	}
	ifExists, err := args.Bool("if_exists", true)
	if err != nil {
		return plugin.Fail(err)
	}
	sql := "DROP TABLE " + ident
	if ifExists {
		sql = "DROP TABLE IF EXISTS " + ident
	}
	res, err := p.Exec(ctx, sql)
	if err != nil {
		return p.fail("drop_table", err)
	}
	return plugin.OK(res)
}

func (p *Plugin) lastInsertedID(ctx context.Context, _ plugin.Args) plugin.Result {
	var id int64
	if err := p.pool.QueryRow(ctx, "SELECT LASTVAL()").Scan(&id); err != nil {
		return p.fail("last_inserted_id", err)
	}
	return plugin.OK(map[string]any{"id": id})
}
