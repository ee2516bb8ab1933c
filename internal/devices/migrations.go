package devices

import (
	"context"
	"database/sql"

	"github.com/HerbHall/fleetgate/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create devices table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE devices (
						id            TEXT PRIMARY KEY,
						hostname      TEXT NOT NULL,
						mac_address   TEXT NOT NULL DEFAULT '',
						domain        TEXT NOT NULL DEFAULT '',
						ip_address    TEXT NOT NULL DEFAULT '',
						os_version    TEXT NOT NULL DEFAULT '',
						architecture  TEXT NOT NULL DEFAULT '',
						agent_version TEXT NOT NULL DEFAULT '',
						status        TEXT NOT NULL DEFAULT 'disconnected',
						last_seen_at  DATETIME,
						registered_at DATETIME NOT NULL,
						group_id      TEXT
					)`)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(`CREATE INDEX idx_devices_mac ON devices(mac_address)`); err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_devices_hostname ON devices(hostname)`)
				return err
			},
		},
	}
}

// Migrate applies the devices schema.
func Migrate(ctx context.Context, db *store.SQLiteStore) error {
	return db.Migrate(ctx, "devices", migrations())
}
