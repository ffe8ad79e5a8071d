// Package eventstore opens the configured event store backend.
package eventstore

import (
	"database/sql"
	"fmt"

	"github.com/aevon-lab/aevon-insights/internal/core/config"
	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/aevon-lab/aevon-insights/internal/core/storage/duckdb"
	"github.com/aevon-lab/aevon-insights/internal/core/storage/postgres"
)

// Store is an opened event store backend.
type Store interface {
	storage.Source
	storage.EventWriter
	DB() *sql.DB
	Close() error
}

var (
	_ Store = (*postgres.Adapter)(nil)
	_ Store = (*duckdb.Store)(nil)
)

// Open connects to the backend selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.NewAdapter(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.QueryTimeout, cfg.AutoMigrate)
	case config.DriverDuckDB:
		path := cfg.DSN
		if path == ":memory:" {
			path = ""
		}
		return duckdb.Open(path, cfg.QueryTimeout)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
