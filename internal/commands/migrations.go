package commands

import (
	"context"
	"database/sql"

	"github.com/HerbHall/fleetgate/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create commands table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE commands (
						id                    TEXT PRIMARY KEY,
						device_id             TEXT NOT NULL,
						user_id               TEXT NOT NULL DEFAULT '',
						command_type          TEXT NOT NULL,
						category              TEXT NOT NULL,
						parameters            TEXT NOT NULL DEFAULT '',
						status                TEXT NOT NULL DEFAULT 'Pending',
						result                TEXT NOT NULL DEFAULT '',
						error_message         TEXT NOT NULL DEFAULT '',
						session_id            TEXT NOT NULL DEFAULT '',
						priority              INTEGER NOT NULL DEFAULT 0,
						retry_count           INTEGER NOT NULL DEFAULT 0,
						max_retries           INTEGER NOT NULL DEFAULT 0,
						created_at            DATETIME NOT NULL,
						sent_at               DATETIME,
						completed_at          DATETIME,
						execution_duration_ms INTEGER
					)`)
				if err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_commands_device ON commands(device_id, created_at DESC)`)
				return err
			},
		},
	}
}

// Migrate applies the commands schema.
func Migrate(ctx context.Context, db *store.SQLiteStore) error {
	return db.Migrate(ctx, "commands", migrations())
}
