// Package sessions manages interactive agent sessions: remote desktop,
// console and the file/event monitors. A session groups the commands of
// one exchange under an opaque token the agent echoes back; inactive
// sessions are swept out by a background loop.
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/commands"
	"github.com/HerbHall/fleetgate/pkg/models"
)

var (
	// ErrNotFound is returned when no session matches the ID.
	ErrNotFound = errors.New("session not found")
	// ErrDeviceOffline is returned when the target device has no live
	// connection; sessions are never started against offline devices.
	ErrDeviceOffline = errors.New("device not connected")
	// ErrUnknownType is returned for session types without a start command.
	ErrUnknownType = errors.New("unknown session type")
)

// startCommand maps each session type to the agent command that opens it.
var startCommand = map[models.SessionType]string{
	models.SessionDesktop:      commands.CmdDesktopStart,
	models.SessionConsole:      commands.CmdConsole,
	models.SessionFileMonitor:  commands.CmdStartFileMonitor,
	models.SessionEventMonitor: commands.CmdStartEventMonitor,
}

// stopCommand maps each session type to the agent command that closes it.
var stopCommand = map[models.SessionType]string{
	models.SessionDesktop:      commands.CmdDesktopStop,
	models.SessionConsole:      commands.CmdConsole,
	models.SessionFileMonitor:  commands.CmdStopFileMonitor,
	models.SessionEventMonitor: commands.CmdStopEventMonitor,
}

// Presence reports device connectivity.
type Presence interface {
	IsOnline(deviceID string) bool
}

// Manager owns the session lifecycle.
type Manager struct {
	store      *Store
	dispatcher *commands.Dispatcher
	presence   Presence
	logger     *zap.Logger
}

// NewManager creates a session Manager.
func NewManager(store *Store, dispatcher *commands.Dispatcher, presence Presence, logger *zap.Logger) *Manager {
	return &Manager{store: store, dispatcher: dispatcher, presence: presence, logger: logger}
}

// newToken builds the opaque session identifier shared with the agent:
// the session type, an underscore, and 32 hex characters.
func newToken(sessionType models.SessionType) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return string(sessionType) + "_" + hex.EncodeToString(b), nil
}

// Start creates a session against a connected device and dispatches the
// type-specific start command. The session row is persisted before the
// command is pushed; a delivery failure is reported alongside the
// recorded session rather than rolling it back.
func (m *Manager) Start(ctx context.Context, deviceID string, sessionType models.SessionType, initialData, userID string) (*models.Session, error) {
	cmdType, ok := startCommand[sessionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, sessionType)
	}
	if !m.presence.IsOnline(deviceID) {
		return nil, ErrDeviceOffline
	}

	token, err := newToken(sessionType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		UserID:         userID,
		SessionType:    sessionType,
		Token:          token,
		Data:           initialData,
		IsActive:       true,
		StartedAt:      now,
		LastActivityAt: &now,
	}
	if err := m.store.Insert(ctx, sess); err != nil {
		return nil, err
	}

	params, _ := json.Marshal(map[string]string{"sessionId": token})
	_, err = m.dispatcher.Submit(ctx, commands.SubmitRequest{
		DeviceID:    deviceID,
		UserID:      userID,
		CommandType: cmdType,
		Parameters:  params,
		SessionID:   token,
	})
	if err != nil {
		m.logger.Warn("session start command not delivered",
			zap.String("session_token", token),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return sess, fmt.Errorf("session recorded but start command failed: %w", err)
	}

	m.logger.Info("session started",
		zap.String("session_token", token),
		zap.String("device_id", deviceID),
		zap.String("session_type", string(sessionType)),
	)
	return sess, nil
}

// End deactivates the session and sends the matching stop command if the
// device is still online. Ending an already ended session is a no-op.
func (m *Manager) End(ctx context.Context, sessionID, userID string) error {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.IsActive && m.presence.IsOnline(sess.DeviceID) {
		params, _ := json.Marshal(map[string]string{"sessionId": sess.Token})
		// Best effort: the session ends locally whether or not the agent
		// acknowledges the stop.
		if _, err := m.dispatcher.Submit(ctx, commands.SubmitRequest{
			DeviceID:    sess.DeviceID,
			UserID:      userID,
			CommandType: stopCommand[sess.SessionType],
			Parameters:  params,
			SessionID:   sess.Token,
		}); err != nil {
			m.logger.Warn("session stop command not delivered",
				zap.String("session_token", sess.Token),
				zap.Error(err),
			)
		}
	}

	if err := m.store.End(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Info("session ended", zap.String("session_token", sess.Token))
	return nil
}

// Touch stamps the session's last activity time.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	return m.store.Touch(ctx, sessionID)
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.store.Get(ctx, sessionID)
}

// ListActive returns a device's active sessions.
func (m *Manager) ListActive(ctx context.Context, deviceID string) ([]*models.Session, error) {
	return m.store.ListActiveByDevice(ctx, deviceID)
}

// SweepInactive ends all active sessions idle past the threshold.
func (m *Manager) SweepInactive(ctx context.Context, threshold time.Duration) (int, error) {
	n, err := m.store.EndInactive(ctx, time.Now().UTC().Add(-threshold))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("swept inactive sessions", zap.Int("count", n))
	}
	return n, nil
}

// RunSweeper ends idle sessions on the given interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SweepInactive(ctx, threshold); err != nil {
				m.logger.Error("session sweep failed", zap.Error(err))
			}
		}
	}
}
