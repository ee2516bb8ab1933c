package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/fleetgate/internal/store"
	"github.com/HerbHall/fleetgate/pkg/models"
)

// Store provides database operations for the sessions module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create agent_sessions table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE agent_sessions (
						id               TEXT PRIMARY KEY,
						device_id        TEXT NOT NULL,
						user_id          TEXT NOT NULL DEFAULT '',
						session_type     TEXT NOT NULL,
						session_token    TEXT NOT NULL UNIQUE,
						session_data     TEXT NOT NULL DEFAULT '',
						is_active        INTEGER NOT NULL DEFAULT 1,
						started_at       DATETIME NOT NULL,
						ended_at         DATETIME,
						last_activity_at DATETIME NOT NULL
					)`)
				if err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_sessions_device_active ON agent_sessions(device_id, is_active)`)
				return err
			},
		},
	}
}

// Migrate applies the sessions schema.
func Migrate(ctx context.Context, db *store.SQLiteStore) error {
	return db.Migrate(ctx, "sessions", migrations())
}

const sessionColumns = `id, device_id, user_id, session_type, session_token,
	session_data, is_active, started_at, ended_at, last_activity_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var s models.Session
	var endedAt, lastActivity sql.NullTime
	err := row.Scan(
		&s.ID, &s.DeviceID, &s.UserID, &s.SessionType, &s.Token,
		&s.Data, &s.IsActive, &s.StartedAt, &endedAt, &lastActivity,
	)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	if lastActivity.Valid {
		s.LastActivityAt = &lastActivity.Time
	}
	return &s, nil
}

// Insert persists a new session.
func (s *Store) Insert(ctx context.Context, sess *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.DeviceID, sess.UserID, sess.SessionType, sess.Token,
		sess.Data, sess.IsActive, sess.StartedAt, sess.EndedAt, sess.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get returns the session with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListActiveByDevice returns the device's active sessions, newest first.
func (s *Store) ListActiveByDevice(ctx context.Context, deviceID string) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM agent_sessions
		WHERE device_id = ? AND is_active = 1 ORDER BY started_at DESC`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// End deactivates the session and stamps ended_at. Ending an already
// inactive session is a no-op.
func (s *Store) End(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_sessions SET is_active = 0, ended_at = ?
		WHERE id = ? AND is_active = 1`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// Touch stamps last_activity_at on an active session.
func (s *Store) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_sessions SET last_activity_at = ?
		WHERE id = ? AND is_active = 1`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// EndInactive ends every active session idle since before the cutoff and
// returns how many were ended.
func (s *Store) EndInactive(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_sessions SET is_active = 0, ended_at = ?
		WHERE is_active = 1 AND last_activity_at < ?`,
		time.Now().UTC(), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("end inactive sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
