package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"pdfservice/internal/tokens"
)

// TokenRepository implements tokens.Repository on the tokens table.
type TokenRepository struct {
	DB  *DB
	DSN string
}

// NewTokenRepository returns a repository reading from dsn through db.
func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// LoadTokens ensures the schema exists and returns every token with its rate limit and scope.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, fmt.Errorf("open token db: %w", err)
	}
	if err := VerifySchema(db); err != nil {
		return nil, fmt.Errorf("verify token schema: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit, scope FROM tokens;`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var (
			token    string
			limit    int
			rawScope []byte
		)
		if err := rows.Scan(&token, &limit, &rawScope); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		var scope tokens.Scope
		if len(rawScope) > 0 {
			if err := json.Unmarshal(rawScope, &scope); err != nil {
				return nil, fmt.Errorf("decode scope of token %q: %w", token, err)
			}
		}
		out[token] = tokens.Entry{RateLimit: limit, Scope: scope}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	return out, nil
}
