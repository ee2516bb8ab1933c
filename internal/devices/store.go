package devices

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/fleetgate/pkg/models"
)

// Store provides database operations for the devices module.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const deviceColumns = `id, hostname, mac_address, domain, ip_address, os_version,
	architecture, agent_version, status, last_seen_at, registered_at, group_id`

func scanDevice(row interface{ Scan(...any) error }) (*models.Device, error) {
	var d models.Device
	var lastSeen sql.NullTime
	var groupID sql.NullString
	err := row.Scan(
		&d.ID, &d.Hostname, &d.MACAddress, &d.Domain, &d.IPAddress,
		&d.OSVersion, &d.Architecture, &d.AgentVersion, &d.Status,
		&lastSeen, &d.RegisteredAt, &groupID,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		d.LastSeenAt = &lastSeen.Time
	}
	if groupID.Valid {
		d.GroupID = groupID.String
	}
	return &d, nil
}

// Insert persists a new device.
func (s *Store) Insert(ctx context.Context, d *models.Device) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Hostname, d.MACAddress, d.Domain, d.IPAddress,
		d.OSVersion, d.Architecture, d.AgentVersion, d.Status,
		d.LastSeenAt, d.RegisteredAt, d.GroupID,
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// Update rewrites all mutable fields of an existing device.
func (s *Store) Update(ctx context.Context, d *models.Device) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices SET
			hostname = ?, mac_address = ?, domain = ?, ip_address = ?,
			os_version = ?, architecture = ?, agent_version = ?,
			status = ?, last_seen_at = ?, group_id = ?
		WHERE id = ?`,
		d.Hostname, d.MACAddress, d.Domain, d.IPAddress,
		d.OSVersion, d.Architecture, d.AgentVersion,
		d.Status, d.LastSeenAt, d.GroupID, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the device with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// GetByMAC returns the device with the given non-empty MAC address.
func (s *Store) GetByMAC(ctx context.Context, mac string) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE mac_address = ? AND mac_address != ''`, mac))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device by mac: %w", err)
	}
	return d, nil
}

// GetByHostname returns the device with the given hostname.
func (s *Store) GetByHostname(ctx context.Context, hostname string) (*models.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE hostname = ? ORDER BY registered_at LIMIT 1`, hostname))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device by hostname: %w", err)
	}
	return d, nil
}

// List returns all devices ordered by hostname.
func (s *Store) List(ctx context.Context) ([]*models.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []*models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes the device row.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus updates only the connection status of a device.
func (s *Store) SetStatus(ctx context.Context, id string, status models.ConnectionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set device status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastSeen stamps last_seen_at with the current time.
func (s *Store) TouchLastSeen(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
