package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists raw objects and quota records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS raw_objects (
	bucket TEXT NOT NULL,
	key TEXT NOT NULL,
	data BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (bucket, key)
);

CREATE TABLE IF NOT EXISTS quota_state (
	rule TEXT PRIMARY KEY,
	daily_left REAL NOT NULL,
	day TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens the database at path and creates tables if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the object stored under key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM raw_objects WHERE bucket = ? AND key = ?`, bucket, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Exists reports whether an object is stored under key.
func (s *SQLiteStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM raw_objects WHERE bucket = ? AND key = ?`, bucket, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: exists %s/%s: %w", bucket, key, err)
	}
	return n > 0, nil
}

// Put stores data under key, replacing any previous object.
func (s *SQLiteStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	if bucket == "" || key == "" {
		return errors.New("bucket and key are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_objects (bucket, key, data, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at
	`, bucket, key, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List returns the keys in bucket that start with prefix, sorted.
func (s *SQLiteStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM raw_objects WHERE bucket = ? AND substr(key, 1, ?) = ? ORDER BY key`,
		bucket, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("store: list %s/%s: %w", bucket, prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// LoadQuota returns the last saved record for rule, or ErrNotFound.
func (s *SQLiteStore) LoadQuota(ctx context.Context, rule string) (QuotaRecord, error) {
	var (
		rec       QuotaRecord
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT daily_left, day, updated_at FROM quota_state WHERE rule = ?`, rule).
		Scan(&rec.DailyLeft, &rec.Day, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return QuotaRecord{}, ErrNotFound
	}
	if err != nil {
		return QuotaRecord{}, fmt.Errorf("store: load quota %s: %w", rule, err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

// SaveQuota replaces the record for rule.
func (s *SQLiteStore) SaveQuota(ctx context.Context, rule string, rec QuotaRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_state (rule, daily_left, day, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(rule) DO UPDATE SET
			daily_left = excluded.daily_left,
			day = excluded.day,
			updated_at = excluded.updated_at
	`, rule, rec.DailyLeft, rec.Day, rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: save quota %s: %w", rule, err)
	}
	return nil
}
