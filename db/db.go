// Package db provides database connection helpers and schema migration.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and indices.
// It is the fallback path for deployments without the versioned migration files;
// new deployments should run RunMigrations first.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS members (
			user_id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS credit_history (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			type TEXT NOT NULL,
			reason TEXT,
			performed_by TEXT,
			new_balance INTEGER NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_status ON members((doc->>'status'))`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets((doc->>'user_id'))`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets((doc->>'status'))`,
		`CREATE INDEX IF NOT EXISTS idx_credit_history_user ON credit_history(user_id, created_at)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
