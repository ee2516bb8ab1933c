// Package devices maintains the persistent device directory: which
// machines are enrolled, what the agent last reported about them, and
// whether they are currently connected. Registration resolves agent
// descriptors to existing rows by MAC address first, then hostname, so
// a reinstalled agent reattaches to its old identity instead of
// consuming another license seat.
package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/pkg/models"
)

var (
	// ErrNotFound is returned when no device matches the lookup.
	ErrNotFound = errors.New("device not found")
	// ErrCapacityExceeded is returned when the license has no free seats.
	ErrCapacityExceeded = errors.New("device capacity exceeded")
)

// Capacity is the license-side collaborator the directory consults
// before enrolling a new device.
type Capacity interface {
	CheckCapacity(ctx context.Context) (bool, error)
	IncrementDeviceCount(ctx context.Context) error
	DecrementDeviceCount(ctx context.Context) error
}

// Directory reconciles agent-reported descriptors with stored devices.
type Directory struct {
	store   *Store
	license Capacity
	logger  *zap.Logger

	// mu serializes resolve+create so two concurrent registrations for
	// the same machine cannot both miss the lookup and insert twice.
	mu sync.Mutex
}

// NewDirectory creates a device Directory.
func NewDirectory(store *Store, license Capacity, logger *zap.Logger) *Directory {
	return &Directory{store: store, license: license, logger: logger}
}

// Upsert resolves the descriptor to an existing device (by MAC, then by
// hostname) and updates it, or enrolls a new device when nothing
// matches. New enrollment is subject to the license capacity check.
func (d *Directory) Upsert(ctx context.Context, desc models.DeviceDescriptor) (*models.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()

	existing, err := d.resolve(ctx, desc)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		existing.Hostname = desc.Hostname
		if desc.MACAddress != "" {
			existing.MACAddress = desc.MACAddress
		}
		existing.Domain = desc.Domain
		existing.IPAddress = desc.IPAddress
		existing.OSVersion = desc.OSVersion
		existing.Architecture = desc.Architecture
		existing.AgentVersion = desc.AgentVersion
		existing.Status = models.StatusConnected
		existing.LastSeenAt = &now

		if err := d.store.Update(ctx, existing); err != nil {
			return nil, err
		}
		d.logger.Info("device reconnected",
			zap.String("device_id", existing.ID),
			zap.String("hostname", existing.Hostname),
		)
		return existing, nil
	}

	ok, err := d.license.CheckCapacity(ctx)
	if err != nil {
		return nil, fmt.Errorf("check license capacity: %w", err)
	}
	if !ok {
		d.logger.Warn("registration rejected: license at capacity",
			zap.String("hostname", desc.Hostname),
		)
		return nil, ErrCapacityExceeded
	}

	dev := &models.Device{
		ID:           uuid.NewString(),
		Hostname:     desc.Hostname,
		MACAddress:   desc.MACAddress,
		Domain:       desc.Domain,
		IPAddress:    desc.IPAddress,
		OSVersion:    desc.OSVersion,
		Architecture: desc.Architecture,
		AgentVersion: desc.AgentVersion,
		Status:       models.StatusConnected,
		LastSeenAt:   &now,
		RegisteredAt: now,
	}
	if err := d.store.Insert(ctx, dev); err != nil {
		return nil, err
	}
	if err := d.license.IncrementDeviceCount(ctx); err != nil {
		// Roll the row back rather than leave an unlicensed device.
		_ = d.store.Delete(ctx, dev.ID)
		return nil, fmt.Errorf("increment license count: %w", err)
	}

	d.logger.Info("device enrolled",
		zap.String("device_id", dev.ID),
		zap.String("hostname", dev.Hostname),
		zap.String("mac", dev.MACAddress),
	)
	return dev, nil
}

func (d *Directory) resolve(ctx context.Context, desc models.DeviceDescriptor) (*models.Device, error) {
	if desc.MACAddress != "" {
		dev, err := d.store.GetByMAC(ctx, desc.MACAddress)
		if err == nil {
			return dev, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if desc.Hostname != "" {
		return d.store.GetByHostname(ctx, desc.Hostname)
	}
	return nil, ErrNotFound
}

// MarkConnected refreshes status and last_seen_at on a heartbeat.
func (d *Directory) MarkConnected(ctx context.Context, deviceID string) error {
	if err := d.store.SetStatus(ctx, deviceID, models.StatusConnected); err != nil {
		return err
	}
	return d.store.TouchLastSeen(ctx, deviceID)
}

// MarkDisconnected records that the device's connection is gone.
func (d *Directory) MarkDisconnected(ctx context.Context, deviceID string) error {
	if err := d.store.SetStatus(ctx, deviceID, models.StatusDisconnected); err != nil {
		return err
	}
	return d.store.TouchLastSeen(ctx, deviceID)
}

// TouchLastSeen stamps the device's last_seen_at. Used by heartbeats.
func (d *Directory) TouchLastSeen(ctx context.Context, deviceID string) error {
	return d.store.TouchLastSeen(ctx, deviceID)
}

// Get returns a device by ID.
func (d *Directory) Get(ctx context.Context, deviceID string) (*models.Device, error) {
	return d.store.Get(ctx, deviceID)
}

// List returns all enrolled devices.
func (d *Directory) List(ctx context.Context) ([]*models.Device, error) {
	return d.store.List(ctx)
}

// Delete removes a device and frees its license seat.
func (d *Directory) Delete(ctx context.Context, deviceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Delete(ctx, deviceID); err != nil {
		return err
	}
	if err := d.license.DecrementDeviceCount(ctx); err != nil {
		d.logger.Warn("failed to release license seat",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	return nil
}
