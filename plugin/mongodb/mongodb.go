package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const DefaultMaxDocuments = 100

// Plugin exposes a MongoDB deployment.
type Plugin struct {
	client   Client
	database string
	maxDocs  int
	logger   log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

// WithDatabase sets the database used when a call names none.
func WithDatabase(name string) Option {
	return func(p *Plugin) { p.database = name }
}

// WithMaxDocuments caps the documents returned by find_documents.
func WithMaxDocuments(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.maxDocs = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates the plugin.
func New(client Client, opts ...Option) *Plugin {
	p := &Plugin{client: client, maxDocs: DefaultMaxDocuments, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "mongodb" }

func (p *Plugin) Description() string {
	return "Manage MongoDB databases, collections and documents."
}

var (
	dbParam     = plugin.Parameter{Name: "database", Type: "string", Description: "database name"}
	collParam   = plugin.Parameter{Name: "collection", Type: "string", Required: true, Description: "collection name"}
	filterParam = plugin.Parameter{Name: "filter", Type: "object", Description: "query filter in MongoDB Extended JSON"}
)

func (p *Plugin) Functions() []plugin.Function {
	db := dbParam
	db.Required = p.database == ""
	if !db.Required {
		db.Description += ", default " + p.database
	}
	dbColl := []plugin.Parameter{db, collParam}
	withFilter := []plugin.Parameter{db, collParam, filterParam}

	return []plugin.Function{
		{Name: "list_databases", Description: "List database names.", Handler: p.listDatabases},
		{Name: "database_exists", Description: "Report whether a database exists.",
			Parameters: []plugin.Parameter{db}, Handler: p.databaseExists},
		{Name: "drop_database", Description: "Drop a database.",
			Parameters: []plugin.Parameter{db}, Handler: p.dropDatabase},
		{Name: "list_collections", Description: "List the collections of a database.",
			Parameters: []plugin.Parameter{db}, Handler: p.listCollections},
		{Name: "collection_exists", Description: "Report whether a collection exists.",
			Parameters: dbColl, Handler: p.collectionExists},
		{Name: "create_collection", Description: "Create a collection.",
			Parameters: dbColl, Handler: p.createCollection},
		{Name: "drop_collection", Description: "Drop a collection.",
			Parameters: dbColl, Handler: p.dropCollection},
		{Name: "database_stats", Description: "Return dbStats for a database.",
			Parameters: []plugin.Parameter{db}, Handler: p.databaseStats},
		{Name: "collection_stats", Description: "Return collStats for a collection.",
			Parameters: dbColl, Handler: p.collectionStats},
		{Name: "insert_document", Description: "Insert a document and return its _id.",
			Parameters: []plugin.Parameter{db, collParam,
				{Name: "document", Type: "object", Required: true, Description: "document in MongoDB Extended JSON"}},
			Handler: p.insertDocument},
		{Name: "find_document", Description: "Find the first document matching a filter.",
			Parameters: withFilter, Handler: p.findDocument},
		{Name: "find_documents", Description: "Find documents matching a filter.",
			Parameters: append(withFilter[:3:3],
				plugin.Parameter{Name: "limit", Type: "integer", Description: fmt.Sprintf("maximum documents, default %d", p.maxDocs)},
				plugin.Parameter{Name: "sort", Type: "object", Description: `sort specification, e.g. {"age": -1}`}),
			Handler: p.findDocuments},
		{Name: "update_document", Description: "Update the first document matching a filter, or every one with many=true. A plain update document is applied with $set.",
			Parameters: []plugin.Parameter{db, collParam,
				{Name: "filter", Type: "object", Required: true, Description: "query filter"},
				{Name: "update", Type: "object", Required: true, Description: "update document or operators"},
				{Name: "many", Type: "boolean", Description: "update every match"}},
			Handler: p.updateDocument},
		{Name: "delete_document", Description: "Delete the first document matching a filter, or every one with many=true.",
			Parameters: []plugin.Parameter{db, collParam,
				{Name: "filter", Type: "object", Required: true, Description: "query filter"},
				{Name: "many", Type: "boolean", Description: "delete every match"}},
			Handler: p.deleteDocument},
		{Name: "count_documents", Description: "Count documents matching a filter.",
			Parameters: withFilter, Handler: p.countDocuments},
		{Name: "first_document", Description: "Return the document with the lowest _id.",
			Parameters: dbColl, Handler: p.edgeDocument(1)},
		{Name: "last_document", Description: "Return the document with the highest _id.",
			Parameters: dbColl, Handler: p.edgeDocument(-1)},
	}
}

func (p *Plugin) db(args plugin.Args) (string, error) {
	name, err := args.StringOr("database", p.database)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return "", plugin.Missing("database")
	}
	return name, nil
}

func (p *Plugin) target(args plugin.Args) (db, coll string, err error) {
	if db, err = p.db(args); err != nil {
		return "", "", err
	}
	if coll, err = args.RequireString("collection"); err != nil {
		return "", "", err
	}
	return db, coll, nil
}

// document decodes args[key] as Extended JSON. Absent keys yield an
// empty document.
func document(args plugin.Args, key string) (bson.M, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return bson.M{}, nil
	}
	var raw []byte
	switch t := v.(type) {
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, plugin.Invalid("%s must be a JSON object: %v", key, err)
		}
		raw = b
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, plugin.Invalid("%s must be a JSON object: %v", key, err)
	}
	if doc == nil {
		doc = bson.M{}
	}
	return doc, nil
}

// sortSpec decodes a sort object into an ordered bson.D. Keys are sorted
// since JSON objects carry no order.
func sortSpec(args plugin.Args) (bson.D, error) {
	m, ok, err := args.Map("sort")
	if err != nil || !ok {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var d bson.D
	for _, k := range keys {
		dir := 1
		if f, ok := m[k].(float64); ok && f < 0 {
			dir = -1
		}
		d = append(d, bson.E{Key: k, Value: dir})
	}
	return d, nil
}

// plain converts driver values to relaxed Extended JSON so results
// survive the JSON envelope, e.g. ObjectID becomes {"$oid": "..."}.
func plain(v any) any {
	b, err := bson.MarshalExtJSON(bson.M{"v": v}, false, false)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out["v"]
}

func (p *Plugin) fail(op string, err error) plugin.Result {
	p.logger.Error("mongodb %s failed: %v", op, err)
	return plugin.Fail(plugin.External(op, err))
}

func (p *Plugin) listDatabases(ctx context.Context, _ plugin.Args) plugin.Result {
	names, err := p.client.ListDatabases(ctx)
	if err != nil {
		return p.fail("list_databases", err)
	}
	return plugin.OK(map[string]any{"databases": names})
}

func (p *Plugin) databaseExists(ctx context.Context, args plugin.Args) plugin.Result {
	db, err := p.db(args)
	if err != nil {
		return plugin.Fail(err)
	}
	names, err := p.client.ListDatabases(ctx)
	if err != nil {
		return p.fail("database_exists", err)
	}
	return plugin.OK(map[string]any{"database": db, "exists": slices.Contains(names, db)})
}

func (p *Plugin) dropDatabase(ctx context.Context, args plugin.Args) plugin.Result {
	db, err := p.db(args)
	if err != nil {
		return plugin.Fail(err)
	}
	if err := p.client.DropDatabase(ctx, db); err != nil {
		return p.fail("drop_database", err)
	}
	p.logger.Info("dropped database %s", db)
	return plugin.OK(map[string]any{"database": db, "dropped": true})
}

func (p *Plugin) listCollections(ctx context.Context, args plugin.Args) plugin.Result {
	db, err := p.db(args)
	if err != nil {
		return plugin.Fail(err)
	}
	names, err := p.client.ListCollections(ctx, db)
	if err != nil {
		return p.fail("list_collections", err)
	}
	slices.Sort(names)
	return plugin.OK(map[string]any{"database": db, "collections": names})
}

func (p *Plugin) collectionExists(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	names, err := p.client.ListCollections(ctx, db)
	if err != nil {
		return p.fail("collection_exists", err)
	}
	return plugin.OK(map[string]any{"collection": coll, "exists": slices.Contains(names, coll)})
}

func (p *Plugin) createCollection(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	if err := p.client.CreateCollection(ctx, db, coll); err != nil {
		return p.fail("create_collection", err)
	}
	return plugin.OK(map[string]any{"database": db, "collection": coll, "created": true})
}

func (p *Plugin) dropCollection(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	if err := p.client.DropCollection(ctx, db, coll); err != nil {
		return p.fail("drop_collection", err)
	}
	return plugin.OK(map[string]any{"database": db, "collection": coll, "dropped": true})
}

func (p *Plugin) databaseStats(ctx context.Context, args plugin.Args) plugin.Result {
	db, err := p.db(args)
	if err != nil {
		return plugin.Fail(err)
	}
	stats, err := p.client.RunCommand(ctx, db, bson.D{{Key: "dbStats", Value: 1}})
	if err != nil {
		return p.fail("database_stats", err)
	}
	return plugin.OK(plain(stats))
}

func (p *Plugin) collectionStats(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	stats, err := p.client.RunCommand(ctx, db, bson.D{{Key: "collStats", Value: coll}})
	if err != nil {
		return p.fail("collection_stats", err)
	}
	return plugin.OK(plain(stats))
}

func (p *Plugin) insertDocument(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	doc, err := document(args, "document")
	if err != nil {
		return plugin.Fail(err)
	}
	if len(doc) == 0 {
		return plugin.Fail(plugin.Invalid("document must not be empty"))
	}
	id, err := p.client.InsertOne(ctx, db, coll, doc)
	if err != nil {
		return p.fail("insert_document", err)
	}
	return plugin.OK(map[string]any{"inserted_id": plain(id)})
}

func (p *Plugin) findOne(ctx context.Context, op string, args plugin.Args, filter bson.M, sort bson.D) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	doc, err := p.client.FindOne(ctx, db, coll, filter, sort)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return plugin.OK(map[string]any{"found": false, "document": nil})
	}
	if err != nil {
		return p.fail(op, err)
	}
	return plugin.OK(map[string]any{"found": true, "document": plain(doc)})
}

func (p *Plugin) findDocument(ctx context.Context, args plugin.Args) plugin.Result {
	filter, err := document(args, "filter")
	if err != nil {
		return plugin.Fail(err)
	}
	return p.findOne(ctx, "find_document", args, filter, nil)
}

func (p *Plugin) edgeDocument(dir int) plugin.Handler {
	op := "first_document"
	if dir < 0 {
		op = "last_document"
	}
	return func(ctx context.Context, args plugin.Args) plugin.Result {
		return p.findOne(ctx, op, args, bson.M{}, bson.D{{Key: "_id", Value: dir}})
	}
}

func (p *Plugin) findDocuments(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	filter, err := document(args, "filter")
	if err != nil {
		return plugin.Fail(err)
	}
	sort, err := sortSpec(args)
	if err != nil {
		return plugin.Fail(err)
	}
	limit, err := args.Int("limit", p.maxDocs)
	if err != nil {
		return plugin.Fail(err)
	}
	if limit <= 0 || limit > p.maxDocs {
		limit = p.maxDocs
	}
	docs, err := p.client.Find(ctx, db, coll, filter, sort, int64(limit))
	if err != nil {
		return p.fail("find_documents", err)
	}
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = plain(d)
	}
	return plugin.OK(map[string]any{"documents": out, "count": len(out)})
}

// hasOperators reports whether update uses $-operators.
func hasOperators(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func (p *Plugin) updateDocument(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	filter, err := document(args, "filter")
	if err != nil {
		return plugin.Fail(err)
	}
	update, err := document(args, "update")
	if err != nil {
		return plugin.Fail(err)
	}
	if len(update) == 0 {
		return plugin.Fail(plugin.Invalid("update must not be empty"))
	}
	if !hasOperators(update) {
		update = bson.M{"$set": update}
	}
	many, err := args.Bool("many", false)
	if err != nil {
		return plugin.Fail(err)
	}
	matched, modified, err := p.client.Update(ctx, db, coll, filter, update, many)
	if err != nil {
		return p.fail("update_document", err)
	}
	return plugin.OK(map[string]any{"matched_count": matched, "modified_count": modified})
}

func (p *Plugin) deleteDocument(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	filter, err := document(args, "filter")
	if err != nil {
		return plugin.Fail(err)
	}
	many, err := args.Bool("many", false)
	if err != nil {
		return plugin.Fail(err)
	}
	if many && len(filter) == 0 {
		return plugin.Fail(plugin.Invalid("refusing to delete every document without a filter"))
	}
	n, err := p.client.Delete(ctx, db, coll, filter, many)
	if err != nil {
		return p.fail("delete_document", err)
	}
	return plugin.OK(map[string]any{"deleted_count": n})
}

func (p *Plugin) countDocuments(ctx context.Context, args plugin.Args) plugin.Result {
	db, coll, err := p.target(args)
	if err != nil {
		return plugin.Fail(err)
	}
	filter, err := document(args, "filter")
	if err != nil {
		return plugin.Fail(err)
	}
	n, err := p.client.Count(ctx, db, coll, filter)
	if err != nil {
		return p.fail("count_documents", err)
	}
	return plugin.OK(map[string]any{"count": n})
}
