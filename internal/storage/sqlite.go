package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/custsim/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStorage implements IngestLog using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. MemoryPath keeps the log in memory.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	inMemory := dbPath == MemoryPath
	if !inMemory {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_batches (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		duplicate_ids TEXT,
		error TEXT,
		received_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ingest_batches_received_at ON ingest_batches(received_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateBatch inserts a batch report.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, report *models.IngestReport) error {
	dupJSON := ""
	if len(report.DuplicateIDs) > 0 {
		b, err := json.Marshal(report.DuplicateIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal duplicate ids: %w", err)
		}
		dupJSON = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_batches (id, status, record_count, duplicate_ids, error, received_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.BatchID, report.Status, report.RecordCount, dupJSON, report.Error,
		report.ReceivedAt.UTC(), report.DurationMs,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row rowScanner) (*models.IngestReport, error) {
	var r models.IngestReport
	var dupJSON, errText sql.NullString
	if err := row.Scan(&r.BatchID, &r.Status, &r.RecordCount, &dupJSON, &errText, &r.ReceivedAt, &r.DurationMs); err != nil {
		return nil, err
	}
	r.Error = errText.String
	if dupJSON.String != "" {
		if err := json.Unmarshal([]byte(dupJSON.String), &r.DuplicateIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal duplicate ids: %w", err)
		}
	}
	return &r, nil
}

// GetBatch returns a batch report by ID.
func (s *SQLiteStorage) GetBatch(ctx context.Context, id string) (*models.IngestReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, record_count, duplicate_ids, error, received_at, duration_ms
		 FROM ingest_batches WHERE id = ?`, id,
	)
	r, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ingestion batch %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListBatches returns batch reports newest first with offset and limit.
func (s *SQLiteStorage) ListBatches(ctx context.Context, offset, limit int) ([]*models.IngestReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, record_count, duplicate_ids, error, received_at, duration_ms
		 FROM ingest_batches ORDER BY received_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]*models.IngestReport, 0)
	for rows.Next() {
		r, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CountBatches returns the total number of recorded batches.
func (s *SQLiteStorage) CountBatches(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_batches`).Scan(&count)
	return count, err
}

// Path returns the database path, or MemoryPath.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
