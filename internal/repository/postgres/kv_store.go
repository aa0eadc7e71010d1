package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sleep-better/internal/domain"
)

const (
	schemaTableSQL = `
		CREATE TABLE IF NOT EXISTS session_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	schemaIndexSQL = `CREATE INDEX IF NOT EXISTS session_kv_expires_at_idx ON session_kv (expires_at)`

	upsertSQL = `
		INSERT INTO session_kv (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`
	getSQL = `
		SELECT value, expires_at
		FROM session_kv
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`
	deleteSQL        = `DELETE FROM session_kv WHERE key = $1`
	deleteExpiredSQL = `DELETE FROM session_kv WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// EnsureSchema creates the session_kv table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	err := NewTxManager(db).WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaTableSQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, schemaIndexSQL)
		return err
	})
	// Concurrent CREATE ... IF NOT EXISTS can still collide on the catalog.
	if err != nil && !IsUniqueViolation(err, "") {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// KVStore is a domain.KVStore backed by the session_kv table.
type KVStore struct {
	db                *sql.DB
	now               func() time.Time
	upsertStmt        *sql.Stmt
	getStmt           *sql.Stmt
	deleteStmt        *sql.Stmt
	deleteExpiredStmt *sql.Stmt
}

// NewKVStore creates a new KVStore with prepared statements.
// Returns an error if statement preparation fails.
func NewKVStore(db *sql.DB) (*KVStore, error) {
	s := &KVStore{db: db, now: time.Now}

	var err error
	s.upsertStmt, err = db.Prepare(upsertSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	s.getStmt, err = db.Prepare(getSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = db.Prepare(deleteSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.deleteExpiredStmt, err = db.Prepare(deleteExpiredSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare deleteExpired statement: %w", err)
	}

	return s, nil
}

var _ domain.KVStore = (*KVStore)(nil)

func (s *KVStore) Get(ctx context.Context, key string) (domain.KVEntry, error) {
	var (
		entry     domain.KVEntry
		expiresAt sql.NullTime
	)
	err := s.getStmt.QueryRowContext(ctx, key, s.now()).Scan(&entry.Value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.KVEntry{}, domain.ErrKeyNotFound
	}
	if IsUndefinedTable(err) {
		return domain.KVEntry{}, fmt.Errorf("session_kv table missing, enable DB_ENSURE_SCHEMA: %w", err)
	}
	if err != nil {
		return domain.KVEntry{}, fmt.Errorf("failed to get key: %w", err)
	}
	if expiresAt.Valid {
		entry.ExpiresAt = expiresAt.Time
	}
	return entry, nil
}

// Set upserts value for ttl. A non-positive ttl stores without expiry.
func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}

	if _, err := s.upsertStmt.ExecContext(ctx, key, value, expiresAt, now); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were removed.
func (s *KVStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.deleteExpiredStmt.ExecContext(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired keys: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the prepared statements.
func (s *KVStore) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{s.upsertStmt, s.getStmt, s.deleteStmt, s.deleteExpiredStmt} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	return errors.Join(errs...)
}
