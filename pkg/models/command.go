package models

import "time"

// CommandStatus is the lifecycle state of a dispatched command.
// Transitions are monotonic: Pending -> Sent -> Completed|Failed.
// A terminal status is never moved back to a non-terminal one.
type CommandStatus string

const (
	CommandPending   CommandStatus = "Pending"
	CommandSent      CommandStatus = "Sent"
	CommandCompleted CommandStatus = "Completed"
	CommandFailed    CommandStatus = "Failed"
)

// Terminal reports whether the status is Completed or Failed.
func (s CommandStatus) Terminal() bool {
	return s == CommandCompleted || s == CommandFailed
}

// Command is one administrator-initiated instruction and its outcome.
// Correlation between the pushed command and the agent's asynchronous
// result is entirely by ID carried in the payload.
type Command struct {
	ID          string        `json:"id"`
	DeviceID    string        `json:"device_id"`
	UserID      string        `json:"user_id"`
	CommandType string        `json:"command_type" example:"ping"`
	Category    string        `json:"category" example:"diagnostics"`
	Parameters  string        `json:"parameters,omitempty"`
	Status      CommandStatus `json:"status" example:"Sent"`
	Result      string        `json:"result,omitempty"`
	ErrorMsg    string        `json:"error_message,omitempty"`

	// SessionID links session-scoped commands (desktop, console) to
	// their owning session token.
	SessionID string `json:"session_id,omitempty"`

	Priority int `json:"priority"`

	// Retry bookkeeping. Recorded but never acted on: no automatic
	// retry exists in this layer.
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ExecutionDurationMs is completedAt minus sentAt, set only when
	// the command was actually sent before its result arrived.
	ExecutionDurationMs *int64 `json:"execution_duration_ms,omitempty"`
}
