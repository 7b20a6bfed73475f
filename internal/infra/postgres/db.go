// Package postgres reads API tokens from PostgreSQL through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB lazily opens one *sql.DB and reopens it when the DSN changes.
type DB struct {
	mu  sync.Mutex
	dsn string
	db  *sql.DB
}

// NewDB returns an unopened DB.
func NewDB() *DB {
	return &DB{}
}

// Get returns the pool for dsn. Opening does not connect; the first query does.
func (p *DB) Get(dsn string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil && p.dsn == dsn {
		return p.db, nil
	}
	if p.db != nil {
		_ = p.db.Close()
		p.db, p.dsn = nil, ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// The tokens table is a small, low-throughput control plane.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	p.db, p.dsn = db, dsn
	return db, nil
}

// Close closes the open pool, if any.
func (p *DB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db, p.dsn = nil, ""
	return err
}

// VerifySchema creates the tokens table and its index when missing.
func VerifySchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			token TEXT PRIMARY KEY,
			rate_limit INTEGER NOT NULL DEFAULT 60,
			scope JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			comment TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
