package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aevon-lab/aevon-insights/internal/core/storage"
	"github.com/aevon-lab/aevon-insights/internal/migrations"
	_ "github.com/duckdb/duckdb-go/v2" // Register duckdb driver
)

const defaultQueryTimeout = 30 * time.Second

// Store implements storage.Source over an embedded DuckDB database.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates a DuckDB database and applies the events schema.
// An empty path opens an in-memory database.
func Open(path string, queryTimeout time.Duration) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}

	if err := migrations.ApplyDuckDB(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("[DuckDB] Store opened", "path", path, "query_timeout", queryTimeout)
	return NewStoreWithDB(db, queryTimeout), nil
}

// NewStoreWithDB wraps an already opened database whose schema is in place.
func NewStoreWithDB(db *sql.DB, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Store{db: db, queryTimeout: queryTimeout}
}

// Acquire implements storage.Source.
func (s *Store) Acquire(ctx context.Context) (storage.Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire duckdb connection: %w", err)
	}
	return &conn{conn: c, queryTimeout: s.queryTimeout}, nil
}

// InsertEvents implements storage.EventWriter.
func (s *Store) InsertEvents(ctx context.Context, events []storage.Event) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, queryInsertEvent)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insertEvent statement: %w", err)
	}
	defer stmt.Close()

	for i, evt := range events {
		args := evt.Args()
		args[2] = evt.Datetime.UTC().Format(timestampLayout)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}

	slog.Info("[DuckDB] Inserted events", "count", len(events))
	return len(events), nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close duckdb database: %w", err)
	}
	return nil
}

type conn struct {
	conn         *sql.Conn
	queryTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func (c *conn) QueryBuckets(ctx context.Context, req storage.AggregationRequest) ([]storage.BucketedRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	query, args := buildBucketQuery(req)
	start := time.Now()

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	out, err := storage.ScanBucketedRows(rows, req)
	if err != nil {
		return nil, err
	}

	slog.Debug("[DuckDB] Bucketed query finished",
		"project_id", req.ProjectID,
		"event_type", req.EventType,
		"rows", len(out),
		"duration", time.Since(start))

	return storage.FillBuckets(out, req), nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.closeErr = fmt.Errorf("failed to release duckdb connection: %w", err)
		}
	})
	return c.closeErr
}
