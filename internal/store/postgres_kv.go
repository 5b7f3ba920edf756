package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostgresKV KV over a single kv_entries table.
//
//	CREATE TABLE kv_entries (
//	  key        TEXT PRIMARY KEY,
//	  value      TEXT NOT NULL,
//	  expires_at TIMESTAMPTZ NULL
//	);
type PostgresKV struct {
	db *sql.DB
}

func NewPostgresKV(db *sql.DB) *PostgresKV { return &PostgresKV{db: db} }

// EnsureSchema creates kv_entries if missing.
func (p *PostgresKV) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at TIMESTAMPTZ NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create kv_entries: %w", err)
	}
	return nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, expires)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ScanKeys translates a Redis-style glob ('*', '?') into a LIKE pattern.
func (p *PostgresKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT key FROM kv_entries
		WHERE key LIKE $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY key
	`, globToLike(pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		case '%', '_', '\\':
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
