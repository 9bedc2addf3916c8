// Package sqlite provides the modernc.org/sqlite backed catalog driver.
//
// The package mirrors the postgres driver layout while supplying SQLite specific
// connection management, migrations, and the catalog repository.
package sqlite
