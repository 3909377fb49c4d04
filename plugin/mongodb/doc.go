// Package mongodb exposes MongoDB databases, collections and documents as a
// plugin.
//
// Filters, documents and updates are MongoDB Extended JSON, so
// {"_id": {"$oid": "..."}} selects by ObjectID. Results are rendered back
// to relaxed Extended JSON.
//
//	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(ctx)
//	registry.Register(mongodb.New(mongodb.NewClient(client), mongodb.WithDatabase("app")))
package mongodb
