package postgres

import (
	"context"
	"fmt"

	"nbconvert/internal/tokens"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS tokens (
	token TEXT PRIMARY KEY,
	rate_limit INTEGER NOT NULL DEFAULT 60,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	comment TEXT
);`

const indexDDL = `CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`

var _ tokens.Repository = (*TokenRepository)(nil)

// TokenRepository loads API tokens from the tokens table.
type TokenRepository struct {
	DB  *DB
	DSN string
}

// NewTokenRepository returns a repository reading from dsn.
func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// LoadTokens creates the table when missing and reads all tokens.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, fmt.Errorf("ensure tokens table failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, indexDDL); err != nil {
		return nil, fmt.Errorf("ensure tokens index failed: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit FROM tokens;`)
	if err != nil {
		return nil, fmt.Errorf("query tokens failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var token string
		var limit int
		if err := rows.Scan(&token, &limit); err != nil {
			return nil, fmt.Errorf("scan token failed: %w", err)
		}
		out[token] = tokens.Entry{RateLimit: limit}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
