// Package registry maps device identities to their live agent
// connections. It owns no persisted state: handles are ephemeral and
// their lifecycle strictly follows the physical connection.
package registry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var connectedAgents = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "fleetgate_connected_agents",
	Help: "Number of agents with a live connection.",
})

func init() {
	prometheus.MustRegister(connectedAgents)
}

// Handle is a live agent transport bound to at most one device at a time.
// Implementations must be safe for concurrent use: Enqueue is called by
// both the connection's own read loop and external command dispatchers.
type Handle interface {
	// Enqueue schedules a message for delivery on the connection's
	// write queue. Returns false if the queue is closed or full.
	Enqueue(msg any) bool

	// Close tears the connection down with a best-effort close
	// handshake. Safe to call more than once.
	Close(reason string)
}

// ConnectionRegistry is the process-wide map from device ID to its open
// connection handle. It is constructed once at startup and injected into
// every consumer; there is no ambient global instance.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	logger  *zap.Logger
}

// New creates an empty ConnectionRegistry.
func New(logger *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		handles: make(map[string]Handle),
		logger:  logger,
	}
}

// Bind registers the handle as the current connection for the device,
// replacing any previous one. The superseded handle (nil if none) is
// returned so the caller can actively close it; a new registration for
// the same identity supersedes, never merges with, the old connection.
func (r *ConnectionRegistry) Bind(deviceID string, h Handle) Handle {
	r.mu.Lock()
	prev := r.handles[deviceID]
	r.handles[deviceID] = h
	total := len(r.handles)
	r.mu.Unlock()

	connectedAgents.Set(float64(total))
	r.logger.Info("agent connection bound",
		zap.String("device_id", deviceID),
		zap.Bool("superseded", prev != nil),
		zap.Int("total", total),
	)
	return prev
}

// Unbind removes the mapping only if h is still the current handle for
// the device. A handle that was already superseded by a newer connection
// must not remove its successor. Returns whether a mapping was removed.
func (r *ConnectionRegistry) Unbind(deviceID string, h Handle) bool {
	r.mu.Lock()
	cur, ok := r.handles[deviceID]
	if !ok || cur != h {
		r.mu.Unlock()
		return false
	}
	delete(r.handles, deviceID)
	total := len(r.handles)
	r.mu.Unlock()

	connectedAgents.Set(float64(total))
	r.logger.Info("agent connection unbound",
		zap.String("device_id", deviceID),
		zap.Int("total", total),
	)
	return true
}

// IsOnline reports whether the device has a registered connection.
func (r *ConnectionRegistry) IsOnline(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[deviceID]
	return ok
}

// Send enqueues a message on the device's connection. Returns false if
// the device is offline or the connection's write queue rejected it.
func (r *ConnectionRegistry) Send(deviceID string, msg any) bool {
	r.mu.RLock()
	h, ok := r.handles[deviceID]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	if !h.Enqueue(msg) {
		r.logger.Warn("agent write queue rejected message",
			zap.String("device_id", deviceID),
		)
		return false
	}
	return true
}

// Broadcast enqueues a message on every registered connection and
// returns the number of successful enqueues.
func (r *ConnectionRegistry) Broadcast(msg any) int {
	r.mu.RLock()
	handles := make(map[string]Handle, len(r.handles))
	for id, h := range r.handles {
		handles[id] = h
	}
	r.mu.RUnlock()

	sent := 0
	for id, h := range handles {
		if h.Enqueue(msg) {
			sent++
		} else {
			r.logger.Warn("broadcast skipped device with full queue",
				zap.String("device_id", id),
			)
		}
	}
	return sent
}

// ListOnline returns the IDs of all devices with a registered connection.
func (r *ConnectionRegistry) ListOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	return ids
}

// CountOnline returns the number of registered connections.
func (r *ConnectionRegistry) CountOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
