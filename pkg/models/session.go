package models

import "time"

// SessionType identifies the interactive feature a session carries.
type SessionType string

const (
	SessionDesktop      SessionType = "desktop"
	SessionConsole      SessionType = "console"
	SessionFileMonitor  SessionType = "filemonitor"
	SessionEventMonitor SessionType = "eventmonitor"
)

// Session groups the commands of a longer-lived interactive exchange
// (remote desktop, console, monitors) under one opaque token shared
// with the agent.
type Session struct {
	ID          string      `json:"id"`
	DeviceID    string      `json:"device_id"`
	UserID      string      `json:"user_id"`
	SessionType SessionType `json:"session_type" example:"desktop"`

	// Token is the type-prefixed random identifier echoed by the agent
	// in every session-scoped message, e.g. "desktop_3f2a...".
	Token string `json:"session_id"`

	// Data holds free-form JSON specific to the session type
	// (quality, fps, shell, ...).
	Data string `json:"session_data,omitempty"`

	IsActive       bool       `json:"is_active"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}
