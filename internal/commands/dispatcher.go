// Package commands owns the command lifecycle: an administrator submits
// a command, the dispatcher pushes it to the device's live connection,
// and the agent's asynchronous result is correlated back by command ID.
// The status machine is strictly monotonic (Pending -> Sent ->
// Completed/Failed); nothing in this package ever rewinds it.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/pkg/models"
)

var (
	// ErrInvalidCommand is returned for command types outside the agent vocabulary.
	ErrInvalidCommand = errors.New("invalid command type")
	// ErrDeviceNotFound is returned when the target device is not enrolled.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNotConnected is returned when the target device has no live
	// connection. The command record is still persisted as Pending.
	ErrNotConnected = errors.New("device not connected")
	// ErrCommandNotFound is returned when no command matches the ID.
	ErrCommandNotFound = errors.New("command not found")
)

// Envelope is the wire form of a pushed command.
type Envelope struct {
	Action     string          `json:"action"`
	CommandID  string          `json:"commandId"`
	Timestamp  time.Time       `json:"timestamp"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Sender is the registry-side collaborator that delivers envelopes to a
// device's live connection.
type Sender interface {
	IsOnline(deviceID string) bool
	Send(deviceID string, msg any) bool
}

// DeviceLookup resolves device IDs against the directory.
type DeviceLookup interface {
	Get(ctx context.Context, deviceID string) (*models.Device, error)
}

// SubmitRequest describes a command to dispatch.
type SubmitRequest struct {
	DeviceID    string
	UserID      string
	CommandType string
	Parameters  json.RawMessage
	SessionID   string
	Priority    int
	MaxRetries  int
}

// Dispatcher validates, persists and pushes commands.
type Dispatcher struct {
	store   *Store
	sender  Sender
	devices DeviceLookup
	logger  *zap.Logger
}

// NewDispatcher creates a command Dispatcher.
func NewDispatcher(store *Store, sender Sender, devices DeviceLookup, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, devices: devices, logger: logger}
}

// Submit validates the request, persists a Pending command and pushes it
// to the device. On successful enqueue the command is marked Sent. When
// the device is offline the record stays Pending and ErrNotConnected is
// returned together with the persisted command, so callers can surface
// both the failure and the queued record.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (*models.Command, error) {
	category, ok := CategoryOf(req.CommandType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, req.CommandType)
	}

	if _, err := d.devices.Get(ctx, req.DeviceID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, req.DeviceID)
	}

	cmd := &models.Command{
		ID:          uuid.NewString(),
		DeviceID:    req.DeviceID,
		UserID:      req.UserID,
		CommandType: req.CommandType,
		Category:    string(category),
		Parameters:  string(req.Parameters),
		Status:      models.CommandPending,
		SessionID:   req.SessionID,
		Priority:    req.Priority,
		MaxRetries:  req.MaxRetries,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.store.Create(ctx, cmd); err != nil {
		return nil, err
	}

	if !d.sender.IsOnline(req.DeviceID) {
		d.logger.Info("command queued for offline device",
			zap.String("command_id", cmd.ID),
			zap.String("device_id", req.DeviceID),
		)
		return cmd, ErrNotConnected
	}

	env := Envelope{
		Action:     req.CommandType,
		CommandID:  cmd.ID,
		Timestamp:  cmd.CreatedAt,
		Parameters: req.Parameters,
	}
	if !d.sender.Send(req.DeviceID, env) {
		// Raced a disconnect or a full write queue; the record stays
		// Pending either way.
		return cmd, ErrNotConnected
	}

	if err := d.store.MarkSent(ctx, cmd.ID); err != nil {
		return nil, err
	}
	d.logger.Info("command dispatched",
		zap.String("command_id", cmd.ID),
		zap.String("device_id", req.DeviceID),
		zap.String("command_type", req.CommandType),
	)
	return d.store.Get(ctx, cmd.ID)
}

// ApplyResult records an agent's result for the command.
func (d *Dispatcher) ApplyResult(ctx context.Context, commandID string, success bool, result, errorMsg string) (*models.Command, error) {
	cmd, err := d.store.ApplyResult(ctx, commandID, success, result, errorMsg)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("command result applied",
		zap.String("command_id", commandID),
		zap.String("status", string(cmd.Status)),
	)
	return cmd, nil
}

// Get returns a command by ID.
func (d *Dispatcher) Get(ctx context.Context, commandID string) (*models.Command, error) {
	return d.store.Get(ctx, commandID)
}

// ListByDevice returns recent commands for a device.
func (d *Dispatcher) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.Command, error) {
	return d.store.ListByDevice(ctx, deviceID, limit)
}
