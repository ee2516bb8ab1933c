package models

import "time"

// ConnectionStatus represents the agent channel state of a device.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusError        ConnectionStatus = "error"
)

// Device represents a managed endpoint with an installed agent.
// Identity resolution prefers MAC address over hostname: once a row
// exists, later registrations update it in place.
type Device struct {
	ID           string           `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Hostname     string           `json:"hostname" example:"web-server-01"`
	MACAddress   string           `json:"mac_address,omitempty" example:"00:1a:2b:3c:4d:5e"`
	Domain       string           `json:"domain,omitempty" example:"corp.local"`
	IPAddress    string           `json:"ip_address,omitempty" example:"10.0.0.5"`
	OSVersion    string           `json:"os_version,omitempty" example:"Windows 11 Pro 23H2"`
	Architecture string           `json:"architecture,omitempty" example:"x64"`
	AgentVersion string           `json:"agent_version,omitempty" example:"1.4.2"`
	Status       ConnectionStatus `json:"status" example:"connected"`
	LastSeenAt   *time.Time       `json:"last_seen_at,omitempty"`
	RegisteredAt time.Time        `json:"registered_at"`
	GroupID      string           `json:"group_id,omitempty"`
}

// DeviceDescriptor is the identity and inventory summary an agent reports
// during registration. Empty fields are left unchanged on update.
type DeviceDescriptor struct {
	Hostname     string
	MACAddress   string
	Domain       string
	OSVersion    string
	Architecture string
	IPAddress    string
	AgentVersion string
	GroupID      string
}
