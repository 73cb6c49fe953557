package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"spendsnap/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLite is a Store backed by a single-table SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the state database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping state database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate state database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context) (Credentials, bool, error) {
	token, err := s.get(ctx, KeyToken)
	if err != nil {
		return Credentials{}, false, err
	}
	rawUser, err := s.get(ctx, KeyUser)
	if err != nil {
		return Credentials{}, false, err
	}
	if token == "" || rawUser == "" {
		return Credentials{}, false, nil
	}
	user, ok := decodeUser(rawUser)
	if !ok {
		return Credentials{}, false, nil
	}
	return Credentials{Token: token, User: user}, true, nil
}

func (s *SQLite) Save(ctx context.Context, token string, user domain.User) error {
	if token == "" {
		return errEmptyToken
	}
	raw, err := encodeUser(user)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		const upsert = `INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`
		if _, err := tx.ExecContext(ctx, upsert, KeyToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsert, KeyUser, raw); err != nil {
			return fmt.Errorf("store user: %w", err)
		}
		return nil
	})
}

func (s *SQLite) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, KeyToken, KeyUser); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		return nil
	})
}

func (s *SQLite) Token(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken)
}

func (s *SQLite) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
