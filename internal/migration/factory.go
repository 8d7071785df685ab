package migration

import (
	"fmt"

	"github.com/reviewflow/reviewflow/config"
)

// NewMigratorFromConfig builds a migrator for the service's configured
// database backend.
func NewMigratorFromConfig(cfg *config.Config) (*Migrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Storage.Database)
}

// NewMigratorFromDatabaseConfig builds a migrator from the SQL backend
// settings.
func NewMigratorFromDatabaseConfig(dbCfg config.DatabaseConfig) (*Migrator, error) {
	dialect, err := ParseDialect(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database dialect: %w", err)
	}

	var dbURL string
	switch dialect {
	case DialectPostgres:
		dbURL = BuildDatabaseURL(dialect, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)
	case DialectMySQL:
		dbURL = BuildDatabaseURL(dialect, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, "")
	case DialectSQLite:
		dbURL = BuildDatabaseURL(dialect, "", 0, dbCfg.Path, "", "", "")
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}

	return NewMigrator(&Config{
		Dialect:     dialect,
		DatabaseURL: dbURL,
	})
}

// NewMigratorFromURL builds a migrator from a dialect name and raw URL.
func NewMigratorFromURL(dialect, dbURL string) (*Migrator, error) {
	d, err := ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{
		Dialect:     d,
		DatabaseURL: dbURL,
	})
}
