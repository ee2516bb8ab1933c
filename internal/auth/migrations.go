package auth

import (
	"context"
	"database/sql"

	"github.com/HerbHall/fleetgate/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create auth_users table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE auth_users (
						id            TEXT PRIMARY KEY,
						username      TEXT NOT NULL UNIQUE,
						email         TEXT NOT NULL UNIQUE,
						password_hash TEXT,
						role          TEXT NOT NULL DEFAULT 'viewer',
						created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						last_login    DATETIME,
						disabled      INTEGER NOT NULL DEFAULT 0
					)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create auth_refresh_tokens table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE auth_refresh_tokens (
						id         TEXT PRIMARY KEY,
						user_id    TEXT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
						token_hash TEXT NOT NULL UNIQUE,
						expires_at DATETIME NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						revoked    INTEGER NOT NULL DEFAULT 0
					)`)
				if err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_refresh_tokens_user ON auth_refresh_tokens(user_id)`)
				return err
			},
		},
	}
}

// Migrate applies the auth schema.
func Migrate(ctx context.Context, db *store.SQLiteStore) error {
	return db.Migrate(ctx, "auth", migrations())
}
