// Package inventory stores the last full inventory snapshot each agent
// reported. The snapshot keeps a few summary columns for listing and the
// raw JSON sections as opaque blobs; deep parsing happens client-side.
package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/store"
)

// ErrNotFound is returned when a device has no stored inventory.
var ErrNotFound = errors.New("inventory not found")

// Snapshot is a device's most recent full inventory.
type Snapshot struct {
	DeviceID        string          `json:"device_id"`
	OSName          string          `json:"os_name,omitempty" example:"Windows 11 Pro"`
	OSVersion       string          `json:"os_version,omitempty"`
	CPUModel        string          `json:"cpu_model,omitempty" example:"Intel Core i7-12700"`
	TotalMemoryMB   int64           `json:"total_memory_mb,omitempty"`
	TotalDiskGB     int64           `json:"total_disk_gb,omitempty"`
	SerialNumber    string          `json:"serial_number,omitempty"`
	Manufacturer    string          `json:"manufacturer,omitempty"`
	Model           string          `json:"model,omitempty"`
	Interfaces      json.RawMessage `json:"interfaces,omitempty"`
	Disks           json.RawMessage `json:"disks,omitempty"`
	Software        json.RawMessage `json:"software,omitempty"`
	Patches         json.RawMessage `json:"patches,omitempty"`
	CollectedAt     time.Time       `json:"collected_at"`
}

// Service persists and serves inventory snapshots.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService creates an inventory Service backed by the shared store.
func NewService(db *store.SQLiteStore, logger *zap.Logger) *Service {
	return &Service{db: db.DB(), logger: logger}
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create device_inventory table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE device_inventory (
						device_id       TEXT PRIMARY KEY,
						os_name         TEXT NOT NULL DEFAULT '',
						os_version      TEXT NOT NULL DEFAULT '',
						cpu_model       TEXT NOT NULL DEFAULT '',
						total_memory_mb INTEGER NOT NULL DEFAULT 0,
						total_disk_gb   INTEGER NOT NULL DEFAULT 0,
						serial_number   TEXT NOT NULL DEFAULT '',
						manufacturer    TEXT NOT NULL DEFAULT '',
						model           TEXT NOT NULL DEFAULT '',
						interfaces      TEXT NOT NULL DEFAULT '',
						disks           TEXT NOT NULL DEFAULT '',
						software        TEXT NOT NULL DEFAULT '',
						patches         TEXT NOT NULL DEFAULT '',
						collected_at    DATETIME NOT NULL
					)`)
				return err
			},
		},
	}
}

// Migrate applies the inventory schema.
func Migrate(ctx context.Context, db *store.SQLiteStore) error {
	return db.Migrate(ctx, "inventory", migrations())
}

// Save upserts the device's inventory snapshot. A device keeps exactly
// one snapshot: the latest report replaces the previous one.
func (s *Service) Save(ctx context.Context, snap *Snapshot) error {
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_inventory (
			device_id, os_name, os_version, cpu_model, total_memory_mb,
			total_disk_gb, serial_number, manufacturer, model,
			interfaces, disks, software, patches, collected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			os_name = excluded.os_name,
			os_version = excluded.os_version,
			cpu_model = excluded.cpu_model,
			total_memory_mb = excluded.total_memory_mb,
			total_disk_gb = excluded.total_disk_gb,
			serial_number = excluded.serial_number,
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			interfaces = excluded.interfaces,
			disks = excluded.disks,
			software = excluded.software,
			patches = excluded.patches,
			collected_at = excluded.collected_at`,
		snap.DeviceID, snap.OSName, snap.OSVersion, snap.CPUModel,
		snap.TotalMemoryMB, snap.TotalDiskGB, snap.SerialNumber,
		snap.Manufacturer, snap.Model,
		string(snap.Interfaces), string(snap.Disks),
		string(snap.Software), string(snap.Patches),
		snap.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	s.logger.Debug("inventory snapshot saved",
		zap.String("device_id", snap.DeviceID),
	)
	return nil
}

// SaveRaw extracts the summary fields from a raw getfullinventory result
// and stores the snapshot. The agent reports a "hardware" object plus
// per-section arrays; unknown fields are ignored and the raw section
// blobs are kept verbatim.
func (s *Service) SaveRaw(ctx context.Context, deviceID string, raw json.RawMessage) error {
	var payload struct {
		TimestampUTC string `json:"timestampUtc"`
		Hardware     struct {
			Manufacturer        string `json:"manufacturer"`
			Model               string `json:"model"`
			SerialNumber        string `json:"serialNumber"`
			OSName              string `json:"osName"`
			OSVersion           string `json:"osVersion"`
			ProcessorName       string `json:"processorName"`
			TotalPhysicalMemory int64  `json:"totalPhysicalMemory"`
		} `json:"hardware"`
		NetworkAdapters   json.RawMessage `json:"networkAdapters"`
		LogicalDisks      json.RawMessage `json:"logicalDisks"`
		InstalledSoftware json.RawMessage `json:"installedSoftware"`
		InstalledPatches  json.RawMessage `json:"installedPatches"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse inventory payload: %w", err)
	}

	collectedAt := time.Now().UTC()
	if payload.TimestampUTC != "" {
		if ts, err := time.Parse(time.RFC3339, payload.TimestampUTC); err == nil {
			collectedAt = ts.UTC()
		}
	}

	var totalDisk int64
	var disks []struct {
		SizeGB int64 `json:"sizeGb"`
	}
	if len(payload.LogicalDisks) > 0 {
		if err := json.Unmarshal(payload.LogicalDisks, &disks); err == nil {
			for _, d := range disks {
				totalDisk += d.SizeGB
			}
		}
	}

	return s.Save(ctx, &Snapshot{
		DeviceID:      deviceID,
		OSName:        payload.Hardware.OSName,
		OSVersion:     payload.Hardware.OSVersion,
		CPUModel:      payload.Hardware.ProcessorName,
		TotalMemoryMB: payload.Hardware.TotalPhysicalMemory / (1024 * 1024),
		TotalDiskGB:   totalDisk,
		SerialNumber:  payload.Hardware.SerialNumber,
		Manufacturer:  payload.Hardware.Manufacturer,
		Model:         payload.Hardware.Model,
		Interfaces:    payload.NetworkAdapters,
		Disks:         payload.LogicalDisks,
		Software:      payload.InstalledSoftware,
		Patches:       payload.InstalledPatches,
		CollectedAt:   collectedAt,
	})
}

// Get returns the device's stored snapshot.
func (s *Service) Get(ctx context.Context, deviceID string) (*Snapshot, error) {
	var snap Snapshot
	var interfaces, disks, software, patches string
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, os_name, os_version, cpu_model, total_memory_mb,
			total_disk_gb, serial_number, manufacturer, model,
			interfaces, disks, software, patches, collected_at
		FROM device_inventory WHERE device_id = ?`, deviceID,
	).Scan(
		&snap.DeviceID, &snap.OSName, &snap.OSVersion, &snap.CPUModel,
		&snap.TotalMemoryMB, &snap.TotalDiskGB, &snap.SerialNumber,
		&snap.Manufacturer, &snap.Model,
		&interfaces, &disks, &software, &patches, &snap.CollectedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	snap.Interfaces = json.RawMessage(interfaces)
	snap.Disks = json.RawMessage(disks)
	snap.Software = json.RawMessage(software)
	snap.Patches = json.RawMessage(patches)
	return &snap, nil
}

// Has reports whether the device has a stored snapshot.
func (s *Service) Has(ctx context.Context, deviceID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_inventory WHERE device_id = ?`, deviceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check inventory: %w", err)
	}
	return n > 0, nil
}
