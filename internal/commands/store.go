package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/fleetgate/pkg/models"
)

// Store provides database operations for the commands module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const commandColumns = `id, device_id, user_id, command_type, category, parameters,
	status, result, error_message, session_id, priority, retry_count, max_retries,
	created_at, sent_at, completed_at, execution_duration_ms`

func scanCommand(row interface{ Scan(...any) error }) (*models.Command, error) {
	var c models.Command
	var sentAt, completedAt sql.NullTime
	var duration sql.NullInt64
	err := row.Scan(
		&c.ID, &c.DeviceID, &c.UserID, &c.CommandType, &c.Category, &c.Parameters,
		&c.Status, &c.Result, &c.ErrorMsg, &c.SessionID, &c.Priority,
		&c.RetryCount, &c.MaxRetries, &c.CreatedAt, &sentAt, &completedAt, &duration,
	)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if duration.Valid {
		c.ExecutionDurationMs = &duration.Int64
	}
	return &c, nil
}

// Create persists a new command in Pending state.
func (s *Store) Create(ctx context.Context, c *models.Command) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (`+commandColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DeviceID, c.UserID, c.CommandType, c.Category, c.Parameters,
		c.Status, c.Result, c.ErrorMsg, c.SessionID, c.Priority,
		c.RetryCount, c.MaxRetries, c.CreatedAt, c.SentAt, c.CompletedAt,
		c.ExecutionDurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// MarkSent moves a Pending command to Sent and stamps sent_at. The
// transition is monotonic: a command that is already Sent or terminal is
// left untouched, so retried delivery never rewinds the lifecycle.
func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE commands SET status = ?, sent_at = ?
		WHERE id = ? AND status = ?`,
		models.CommandSent, time.Now().UTC(), id, models.CommandPending,
	)
	if err != nil {
		return fmt.Errorf("mark command sent: %w", err)
	}
	return nil
}

// ApplyResult records an agent result against the command. Result fields
// follow last-write-wins so a duplicated result refreshes the payload,
// but the status never regresses to Pending or Sent: the applied status
// is always terminal.
func (s *Store) ApplyResult(ctx context.Context, id string, success bool, result, errorMsg string) (*models.Command, error) {
	cmd, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status := models.CommandCompleted
	if !success {
		status = models.CommandFailed
	}

	// Duration is the send-to-result gap; it cannot be derived for a
	// result that arrived before (or without) a recorded send.
	var duration *int64
	if cmd.SentAt != nil {
		ms := now.Sub(*cmd.SentAt).Milliseconds()
		duration = &ms
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE commands SET
			status = ?, result = ?, error_message = ?,
			completed_at = ?, execution_duration_ms = ?
		WHERE id = ?`,
		status, result, errorMsg, now, duration, id,
	)
	if err != nil {
		return nil, fmt.Errorf("apply command result: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the command with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Command, error) {
	c, err := scanCommand(s.db.QueryRowContext(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("get command: %w", err)
	}
	return c, nil
}

// ListByDevice returns the most recent commands for a device, newest first.
func (s *Store) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.Command, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM commands
		WHERE device_id = ? ORDER BY created_at DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	var out []*models.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
