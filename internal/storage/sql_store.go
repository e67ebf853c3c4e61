package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/vmihailenco/msgpack/v5"
)

// dialect holds the backend specific parts of SQLStore.
type dialect struct {
	name   string
	schema []string
}

// SQLStore implements Store on database/sql. DuckDB and PostgreSQL share the
// queries below; only the schema differs. Result payloads are stored as
// msgpack blobs.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *log.Logger

	// writes are serialised so DuckDB never sees conflicting transactions
	mu  sync.Mutex
	now func() time.Time
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, logger *log.Logger) (*SQLStore, error) {
	s := &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}
	logger.Infof("[%s] schema ready", d.name)
	return s, nil
}

func (s *SQLStore) Backend() string {
	return s.dialect.name
}

const uploadColumns = `id, customer_id, filename, file_type, file_size, upload_timestamp,
	status, progress, processing_started_at, processing_completed_at`

func (s *SQLStore) CreateUpload(ctx context.Context, customerID, filename string, content []byte, size int64) (*models.Upload, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	upload := &models.Upload{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Filename:        filename,
		FileType:        models.FileTypeFromName(filename),
		FileSize:        size,
		UploadTimestamp: s.now(),
		Status:          models.StatusPending,
	}
	if content == nil {
		content = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO uploads (`+uploadColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL)`,
			upload.ID, upload.CustomerID, upload.Filename, upload.FileType, upload.FileSize,
			upload.UploadTimestamp, string(upload.Status), upload.Progress); err != nil {
			return fmt.Errorf("inserting upload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO upload_contents (upload_id, content) VALUES ($1, $2)`,
			upload.ID, content); err != nil {
			return fmt.Errorf("inserting content: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}

func (s *SQLStore) GetUpload(ctx context.Context, id, customerID string) (*models.Upload, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1 AND customer_id = $2`, id, customerID)
	upload, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", id, err)
	}
	return upload, nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status models.UploadStatus, progress int) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE uploads SET
			status = $1,
			progress = $2,
			processing_started_at = CASE WHEN $3 AND processing_started_at IS NULL THEN $5 ELSE processing_started_at END,
			processing_completed_at = CASE WHEN $4 THEN $5 ELSE processing_completed_at END
		WHERE id = $6`,
		string(status),
		normalizeProgress(status, progress),
		status == models.StatusProcessing,
		status == models.StatusCompleted,
		s.now(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("updating status of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating status of %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLStore) ListUploads(ctx context.Context, customerID string, opts ListOptions) ([]*models.Upload, error) {
	skip, limit := normalizePage(opts)

	var query strings.Builder
	args := []any{customerID}
	query.WriteString(`SELECT ` + uploadColumns + ` FROM uploads WHERE customer_id = $1`)
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		fmt.Fprintf(&query, ` AND status = $%d`, len(args))
	}
	args = append(args, limit, skip)
	fmt.Fprintf(&query, ` ORDER BY upload_timestamp DESC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Upload, 0)
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning upload: %w", err)
		}
		list = append(list, upload)
	}
	return list, rows.Err()
}

func (s *SQLStore) DeleteUpload(ctx context.Context, id, customerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1 AND customer_id = $2`, id, customerID)
		if err != nil {
			return fmt.Errorf("deleting upload: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		deleted = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM upload_contents WHERE upload_id = $1`, id); err != nil {
			return fmt.Errorf("deleting content: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM processing_results WHERE upload_id = $1`, id); err != nil {
			return fmt.Errorf("deleting results: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *SQLStore) GetContent(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM upload_contents WHERE upload_id = $1`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading content of %s: %w", id, err)
	}
	return content, nil
}

func (s *SQLStore) SaveResults(ctx context.Context, id string, results []models.ProcessingResult) error {
	payloads := make([][]byte, len(results))
	for i, r := range results {
		data, err := msgpack.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("encoding %s result: %w", r.ResultType, err)
		}
		payloads[i] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads WHERE id = $1`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking upload %s: %w", id, err)
		}
		if exists == 0 {
			s.logger.Debugf("[%s] dropping results for deleted upload %s", s.dialect.name, id)
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM processing_results WHERE upload_id = $1`, id); err != nil {
			return fmt.Errorf("clearing results: %w", err)
		}
		for i, r := range results {
			created := r.CreatedAt
			if created.IsZero() {
				created = s.now()
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO processing_results (upload_id, seq, result_type, data, created_at)
				VALUES ($1, $2, $3, $4, $5)`,
				id, i, r.ResultType, payloads[i], created.UTC()); err != nil {
				return fmt.Errorf("inserting %s result: %w", r.ResultType, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) GetResults(ctx context.Context, id string) ([]models.ProcessingResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT result_type, data, created_at FROM processing_results
		WHERE upload_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("reading results of %s: %w", id, err)
	}
	defer rows.Close()

	results := make([]models.ProcessingResult, 0)
	for rows.Next() {
		var (
			r       models.ProcessingResult
			payload []byte
		)
		if err := rows.Scan(&r.ResultType, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		data, err := decodeResultData(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding %s result: %w", r.ResultType, err)
		}
		r.Data = data
		r.CreatedAt = r.CreatedAt.UTC()
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warnf("[%s] rollback failed: %v", s.dialect.name, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*models.Upload, error) {
	var (
		u         models.Upload
		status    string
		started   sql.NullTime
		completed sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.CustomerID, &u.Filename, &u.FileType, &u.FileSize, &u.UploadTimestamp,
		&status, &u.Progress, &started, &completed); err != nil {
		return nil, err
	}
	u.Status = models.UploadStatus(status)
	u.UploadTimestamp = u.UploadTimestamp.UTC()
	if started.Valid {
		t := started.Time.UTC()
		u.ProcessingStartedAt = &t
	}
	if completed.Valid {
		t := completed.Time.UTC()
		u.ProcessingCompletedAt = &t
	}
	return &u, nil
}

func decodeResultData(payload []byte) (map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
