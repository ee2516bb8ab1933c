// Package license tracks the installed license and gates device
// capacity. FleetGate keeps a single license row; the device directory
// consults it before creating new devices.
package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/store"
)

// ErrNoLicense is returned when no license row exists.
var ErrNoLicense = errors.New("no license installed")

// License is the installed license record.
type License struct {
	ID                 string     `json:"id"`
	Edition            string     `json:"edition" example:"standard"`
	MaxDevices         int        `json:"max_devices"`
	CurrentDeviceCount int        `json:"current_device_count"`
	IssuedAt           time.Time  `json:"issued_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// Service provides license reads and device-count bookkeeping.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService creates a license Service backed by the shared store.
func NewService(db *store.SQLiteStore, logger *zap.Logger) *Service {
	return &Service{db: db.DB(), logger: logger}
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create licenses table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE licenses (
						id                   TEXT PRIMARY KEY,
						edition              TEXT NOT NULL,
						max_devices          INTEGER NOT NULL,
						current_device_count INTEGER NOT NULL DEFAULT 0,
						issued_at            DATETIME NOT NULL,
						expires_at           DATETIME
					)`)
				return err
			},
		},
	}
}

// Migrate applies the license schema.
func Migrate(ctx context.Context, db *store.SQLiteStore) error {
	return db.Migrate(ctx, "license", migrations())
}

// EnsureDefault installs a development license with the given device
// limit when no license row exists yet.
func (s *Service) EnsureDefault(ctx context.Context, maxDevices int) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM licenses`).Scan(&count); err != nil {
		return fmt.Errorf("count licenses: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (id, edition, max_devices, current_device_count, issued_at)
		VALUES ('default', 'development', ?, 0, ?)`,
		maxDevices, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("install default license: %w", err)
	}
	s.logger.Info("installed default development license",
		zap.Int("max_devices", maxDevices),
	)
	return nil
}

// Get returns the installed license.
func (s *Service) Get(ctx context.Context) (*License, error) {
	var l License
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, edition, max_devices, current_device_count, issued_at, expires_at
		FROM licenses LIMIT 1`,
	).Scan(&l.ID, &l.Edition, &l.MaxDevices, &l.CurrentDeviceCount, &l.IssuedAt, &expires)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoLicense
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	if expires.Valid {
		l.ExpiresAt = &expires.Time
	}
	return &l, nil
}

// CheckCapacity reports whether a new device may be registered under the
// installed license.
func (s *Service) CheckCapacity(ctx context.Context) (bool, error) {
	l, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return l.CurrentDeviceCount < l.MaxDevices, nil
}

// IncrementDeviceCount records a newly registered device. Fails if the
// license is already at capacity.
func (s *Service) IncrementDeviceCount(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET current_device_count = current_device_count + 1
		WHERE current_device_count < max_devices`,
	)
	if err != nil {
		return fmt.Errorf("increment device count: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("device limit reached")
	}
	return nil
}

// DecrementDeviceCount records a deleted device. Never goes below zero.
func (s *Service) DecrementDeviceCount(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET current_device_count = current_device_count - 1
		WHERE current_device_count > 0`,
	)
	if err != nil {
		return fmt.Errorf("decrement device count: %w", err)
	}
	return nil
}
