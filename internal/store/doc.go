// Package store provides the storage-access capability using SQLite.
//
// # Connections
//
// Databases are addressed by URL. The scheme picks the driver:
//
//   - sqlite:<path>   modernc.org/sqlite (pure Go)
//   - sqlite3:<path>  github.com/mattn/go-sqlite3 (cgo)
//
// Relative paths resolve against the application data directory. Every
// connection is opened with WAL journaling and foreign keys enabled.
//
// # Commands
//
// The capability exposes:
//
//   - plugin:sql|load     {"db": url}
//   - plugin:sql|execute  {"db": url, "query": sql, "values": [...]}
//   - plugin:sql|select   {"db": url, "query": sql, "values": [...]}
//   - plugin:sql|close    {"db": url} (omit db to close all)
//
// Execute returns {"rows_affected", "last_insert_id"}; select returns one
// JSON object per row keyed by column name.
package store
