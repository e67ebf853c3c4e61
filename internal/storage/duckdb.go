package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/labstack/gommon/log"
	"github.com/marcboeker/go-duckdb"
)

// DuckDBOptions tune the embedded database.
type DuckDBOptions struct {
	// Path of the database file. Empty opens an in-memory database.
	Path        string
	Threads     int
	MemoryLimit string
}

var duckDBSchema = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id                      VARCHAR PRIMARY KEY,
		customer_id             VARCHAR NOT NULL,
		filename                VARCHAR NOT NULL,
		file_type               VARCHAR NOT NULL,
		file_size               BIGINT NOT NULL,
		upload_timestamp        TIMESTAMP NOT NULL,
		status                  VARCHAR NOT NULL,
		progress                INTEGER NOT NULL,
		processing_started_at   TIMESTAMP,
		processing_completed_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS upload_contents (
		upload_id VARCHAR NOT NULL,
		content   BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processing_results (
		upload_id   VARCHAR NOT NULL,
		seq         INTEGER NOT NULL,
		result_type VARCHAR NOT NULL,
		data        BLOB NOT NULL,
		created_at  TIMESTAMP NOT NULL
	)`,
}

// NewDuckDBStore opens (or creates) a DuckDB database and its schema.
func NewDuckDBStore(ctx context.Context, opts DuckDBOptions, logger *log.Logger) (*SQLStore, error) {
	location := opts.Path
	if location == "" {
		location = ":memory:"
	}
	logger.Infof("[DuckDB] opening database at %s", location)

	connector, err := duckdb.NewConnector(opts.Path, func(execer driver.ExecerContext) error {
		pragmas := []string{"PRAGMA enable_progress_bar=false"}
		if opts.Threads > 0 {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
		}
		if opts.MemoryLimit != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	store, err := newSQLStore(ctx, db, dialect{name: "duckdb", schema: duckDBSchema}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
