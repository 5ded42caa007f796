package credstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	service    TEXT NOT NULL,
	account    TEXT NOT NULL,
	secret     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (service, account)
)`

// SQLiteStore keeps secrets in a local SQLite file, for machines without a
// keyring daemon. The file is created with owner-only permissions; secrets
// are stored in plain text.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the vault at path and ensures the
// schema exists. The caller should call Close when done.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping vault: %w", err)
	}

	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get reads a secret.
func (s *SQLiteStore) Get(service, account string) (string, error) {
	var secret string
	err := s.db.QueryRow(
		`SELECT secret FROM credentials WHERE service = ? AND account = ?`,
		service, account,
	).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query credential: %w", err)
	}
	return secret, nil
}

// Set upserts a secret.
func (s *SQLiteStore) Set(service, account, secret string) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (service, account, secret, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (service, account) DO UPDATE SET secret = excluded.secret, updated_at = excluded.updated_at`,
		service, account, secret, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// UpdatedAt reports when a secret was last written.
func (s *SQLiteStore) UpdatedAt(service, account string) (time.Time, error) {
	var updated time.Time
	err := s.db.QueryRow(
		`SELECT updated_at FROM credentials WHERE service = ? AND account = ?`,
		service, account,
	).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query credential: %w", err)
	}
	return updated, nil
}
