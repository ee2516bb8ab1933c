package agent

import (
	"encoding/json"
	"net"
	"time"

	"github.com/HerbHall/fleetgate/pkg/models"
)

// inboundMessage is the superset of fields agents put in a text frame.
// Which fields matter depends on the action; the rest stay zero.
type inboundMessage struct {
	Action string `json:"action"`

	// Registration fields. agentinfo reports name/osdesc/platform/ver,
	// the legacy register action reports hostname/osVersion/architecture/
	// agentVersion. Both shapes are accepted everywhere.
	Name         string `json:"name"`
	Hostname     string `json:"hostname"`
	MACAddress   string `json:"macAddress"`
	Domain       string `json:"domain"`
	OSVersion    string `json:"osVersion"`
	OSDesc       string `json:"osdesc"`
	Architecture string `json:"architecture"`
	Platform     string `json:"platform"`
	IPAddress    string `json:"ipAddress"`
	AgentVersion string `json:"agentVersion"`
	Ver          string `json:"ver"`

	// Command result fields.
	CommandID string          `json:"commandId"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error"`
}

// serverHello is the reply to agenthello.
type serverHello struct {
	Action     string    `json:"action"`
	ServerID   string    `json:"serverid"`
	Version    string    `json:"version"`
	ServerTime time.Time `json:"serverTime"`
	Features   []string  `json:"features"`
}

// registeredReply confirms a successful registration.
type registeredReply struct {
	Action   string `json:"action"`
	DeviceID string `json:"deviceId"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// errorReply reports a failed registration to the agent.
type errorReply struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// descriptor maps the reported fields onto a device descriptor,
// preferring the agentinfo names and falling back to the register ones.
// A missing or loopback IP is replaced by the transport's remote address,
// with IPv6 loopback normalized to 127.0.0.1.
func (m *inboundMessage) descriptor(remoteAddr string) models.DeviceDescriptor {
	hostname := m.Name
	if hostname == "" {
		hostname = m.Hostname
	}
	if hostname == "" {
		hostname = "Unknown"
	}

	osVersion := m.OSVersion
	if osVersion == "" {
		osVersion = m.OSDesc
	}

	arch := m.Architecture
	if arch == "" {
		arch = m.Platform
	}

	ver := m.AgentVersion
	if ver == "" {
		ver = m.Ver
	}
	if ver == "" {
		ver = "1.0.0"
	}

	ip := m.IPAddress
	if ip == "" || ip == "127.0.0.1" || ip == "::1" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			ip = host
		} else if remoteAddr != "" {
			ip = remoteAddr
		}
		if ip == "::1" {
			ip = "127.0.0.1"
		}
	}
	if ip == "" {
		ip = "0.0.0.0"
	}

	return models.DeviceDescriptor{
		Hostname:     hostname,
		MACAddress:   m.MACAddress,
		Domain:       m.Domain,
		OSVersion:    osVersion,
		Architecture: arch,
		IPAddress:    ip,
		AgentVersion: ver,
	}
}
