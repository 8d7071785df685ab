// Package migration manages the workflows table schema via golang-migrate.
// Migrations are embedded per dialect (postgres, mysql, sqlite) and applied
// with the migrate CLI subcommands or at startup. The sqlite dialect uses
// the go-sqlite3 driver under the "sqlite3" name; the "sqlite" name belongs
// to the store's glebarez driver, which shares the binary.
// This package is internal and should not be imported by external projects.
package migration
