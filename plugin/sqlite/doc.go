// Package sqlite exposes a SQLite database as a plugin.
//
// Open the database with the go-sqlite3 driver and hand the handle over:
//
//	db, err := sql.Open("sqlite3", "file:app.db?_foreign_keys=on")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	registry.Register(sqlite.New(db))
package sqlite
