// Package postgres exposes a PostgreSQL database as a plugin.
//
// The plugin runs over a caller-owned pool, typically a *pgxpool.Pool:
//
//	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	registry.Register(postgres.New(pool))
//
// Table and column names are quoted with pgx.Identifier and values are
// always bound as parameters. Statements passed to execute_query are run
// as given; use $1, $2 placeholders for values.
package postgres
