package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client is the set of MongoDB operations the plugin needs. NewClient
// adapts a *mongo.Client; tests substitute their own.
type Client interface {
	ListDatabases(ctx context.Context) ([]string, error)
	DropDatabase(ctx context.Context, db string) error
	ListCollections(ctx context.Context, db string) ([]string, error)
	CreateCollection(ctx context.Context, db, coll string) error
	DropCollection(ctx context.Context, db, coll string) error
	RunCommand(ctx context.Context, db string, cmd bson.D) (bson.M, error)

	InsertOne(ctx context.Context, db, coll string, doc bson.M) (any, error)
	// FindOne returns mongo.ErrNoDocuments when nothing matches.
	FindOne(ctx context.Context, db, coll string, filter bson.M, sort bson.D) (bson.M, error)
	Find(ctx context.Context, db, coll string, filter bson.M, sort bson.D, limit int64) ([]bson.M, error)
	Update(ctx context.Context, db, coll string, filter, update bson.M, many bool) (matched, modified int64, err error)
	Delete(ctx context.Context, db, coll string, filter bson.M, many bool) (int64, error)
	Count(ctx context.Context, db, coll string, filter bson.M) (int64, error)
}

type driverClient struct {
	c *mongo.Client
}

// NewClient wraps a connected driver client. The caller keeps ownership
// and disconnects it.
func NewClient(c *mongo.Client) Client {
	return &driverClient{c: c}
}

func (d *driverClient) ListDatabases(ctx context.Context) ([]string, error) {
	return d.c.ListDatabaseNames(ctx, bson.D{})
}

func (d *driverClient) DropDatabase(ctx context.Context, db string) error {
	return d.c.Database(db).Drop(ctx)
}

func (d *driverClient) ListCollections(ctx context.Context, db string) ([]string, error) {
	return d.c.Database(db).ListCollectionNames(ctx, bson.D{})
}

func (d *driverClient) CreateCollection(ctx context.Context, db, coll string) error {
	return d.c.Database(db).CreateCollection(ctx, coll)
}

func (d *driverClient) DropCollection(ctx context.Context, db, coll string) error {
	return d.c.Database(db).Collection(coll).Drop(ctx)
}

func (d *driverClient) RunCommand(ctx context.Context, db string, cmd bson.D) (bson.M, error) {
	var out bson.M
	if err := d.c.Database(db).RunCommand(ctx, cmd).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *driverClient) InsertOne(ctx context.Context, db, coll string, doc bson.M) (any, error) {
	res, err := d.c.Database(db).Collection(coll).InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (d *driverClient) FindOne(ctx context.Context, db, coll string, filter bson.M, sort bson.D) (bson.M, error) {
	opts := options.FindOne()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	var out bson.M
	if err := d.c.Database(db).Collection(coll).FindOne(ctx, filter, opts).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *driverClient) Find(ctx context.Context, db, coll string, filter bson.M, sort bson.D, limit int64) ([]bson.M, error) {
	opts := options.Find().SetLimit(limit)
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	cur, err := d.c.Database(db).Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *driverClient) Update(ctx context.Context, db, coll string, filter, update bson.M, many bool) (int64, int64, error) {
	c := d.c.Database(db).Collection(coll)
	var (
		res *mongo.UpdateResult
		err error
	)
	if many {
		res, err = c.UpdateMany(ctx, filter, update)
	} else {
		res, err = c.UpdateOne(ctx, filter, update)
	}
	if err != nil {
		return 0, 0, err
	}
	return res.MatchedCount, res.ModifiedCount, nil
}

func (d *driverClient) Delete(ctx context.Context, db, coll string, filter bson.M, many bool) (int64, error) {
	c := d.c.Database(db).Collection(coll)
	var (
		res *mongo.DeleteResult
		err error
	)
	if many {
		res, err = c.DeleteMany(ctx, filter)
	} else {
		res, err = c.DeleteOne(ctx, filter)
	}
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (d *driverClient) Count(ctx context.Context, db, coll string, filter bson.M) (int64, error) {
	return d.c.Database(db).Collection(coll).CountDocuments(ctx, filter)
}
