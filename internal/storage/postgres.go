package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	_ "github.com/lib/pq"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS uploads (
		id                      TEXT PRIMARY KEY,
		customer_id             TEXT NOT NULL,
		filename                TEXT NOT NULL,
		file_type               TEXT NOT NULL,
		file_size               BIGINT NOT NULL,
		upload_timestamp        TIMESTAMPTZ NOT NULL,
		status                  TEXT NOT NULL,
		progress                INTEGER NOT NULL,
		processing_started_at   TIMESTAMPTZ,
		processing_completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_customer ON uploads (customer_id, upload_timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS upload_contents (
		upload_id TEXT PRIMARY KEY,
		content   BYTEA NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processing_results (
		upload_id   TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		result_type TEXT NOT NULL,
		data        BYTEA NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (upload_id, seq)
	)`,
}

// NewPostgresStore connects to PostgreSQL and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string, logger *log.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	store, err := newSQLStore(ctx, db, dialect{name: "postgres", schema: postgresSchema}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
