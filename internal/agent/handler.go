// Package agent implements the WebSocket endpoint installed agents keep
// open to the server. Each connection runs one read loop goroutine and
// one write pump; identity is established in-band by the agentinfo or
// register actions, after which the connection is bound in the registry
// and commands can be routed to it.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/commands"
	"github.com/HerbHall/fleetgate/internal/devices"
	"github.com/HerbHall/fleetgate/internal/inventory"
	"github.com/HerbHall/fleetgate/internal/registry"
	"github.com/HerbHall/fleetgate/internal/version"
)

// systemUserID marks commands the server issues on its own behalf, such
// as the initial inventory request after enrollment.
const systemUserID = "system"

// serverFeatures is advertised in the serverhello reply.
var serverFeatures = []string{"agentinfo", "commands", "files"}

// Options configures the agent channel.
type Options struct {
	Path            string
	MaxMessageBytes int64
	WriteQueueSize  int
	WriteTimeout    time.Duration
}

// OptionsFromConfig reads the agent channel settings.
func OptionsFromConfig(v *viper.Viper) Options {
	return Options{
		Path:            v.GetString("agent.path"),
		MaxMessageBytes: v.GetInt64("agent.max_message_bytes"),
		WriteQueueSize:  v.GetInt("agent.write_queue_size"),
		WriteTimeout:    v.GetDuration("agent.write_timeout"),
	}
}

// Handler accepts and drives agent connections.
type Handler struct {
	registry   *registry.ConnectionRegistry
	directory  *devices.Directory
	dispatcher *commands.Dispatcher
	inventory  *inventory.Service
	opts       Options
	serverID   string
	logger     *zap.Logger
}

// NewHandler creates the agent channel handler.
func NewHandler(reg *registry.ConnectionRegistry, directory *devices.Directory, dispatcher *commands.Dispatcher, inv *inventory.Service, opts Options, logger *zap.Logger) *Handler {
	serverID, err := os.Hostname()
	if err != nil || serverID == "" {
		serverID = "fleetgate"
	}
	return &Handler{
		registry:   reg,
		directory:  directory,
		dispatcher: dispatcher,
		inventory:  inv,
		opts:       opts,
		serverID:   serverID,
		logger:     logger,
	}
}

// RegisterRoutes mounts the agent WebSocket endpoint on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+h.opts.Path, h.handleAgent)
}

// handleAgent upgrades the connection and runs the protocol until the
// agent disconnects or the server shuts down.
func (h *Handler) handleAgent(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Agents are not browsers; origin checks don't apply.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("agent websocket accept failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(h.opts.MaxMessageBytes)

	h.logger.Info("agent connection opened",
		zap.String("remote_addr", r.RemoteAddr),
	)

	conn := newConn(ws, h.opts.WriteQueueSize, h.opts.WriteTimeout, h.logger)
	ctx := r.Context()
	go conn.writePump(ctx)

	// deviceID is empty until a registration succeeds.
	var deviceID string

	defer func() {
		// Teardown order matters: the registry entry goes first so no
		// new sends target a dying connection, then the directory is
		// told, then the socket is closed (handshake errors swallowed).
		if deviceID != "" && h.registry.Unbind(deviceID, conn) {
			if err := h.directory.MarkDisconnected(context.Background(), deviceID); err != nil {
				h.logger.Warn("failed to mark device disconnected",
					zap.String("device_id", deviceID),
					zap.Error(err),
				)
			}
			h.logger.Info("agent disconnected", zap.String("device_id", deviceID))
		}
		conn.Close("server closing")
	}()

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			h.logger.Debug("agent read loop ended",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			return
		}
		if typ == websocket.MessageBinary {
			h.logger.Debug("ignoring binary message",
				zap.Int("bytes", len(data)),
			)
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// A malformed frame does not kill the connection.
			h.logger.Warn("dropping malformed agent message",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			continue
		}

		switch strings.ToLower(msg.Action) {
		case "agenthello":
			conn.Enqueue(serverHello{
				Action:     "serverhello",
				ServerID:   h.serverID,
				Version:    version.Short(),
				ServerTime: time.Now().UTC(),
				Features:   serverFeatures,
			})

		case "agentinfo", "register":
			if id, ok := h.register(ctx, conn, &msg, r.RemoteAddr, deviceID); ok {
				deviceID = id
			}

		case "heartbeat":
			if deviceID == "" {
				continue
			}
			if err := h.directory.MarkConnected(ctx, deviceID); err != nil {
				h.logger.Warn("heartbeat update failed",
					zap.String("device_id", deviceID),
					zap.Error(err),
				)
			}

		case "commandresult":
			if id, ok := h.handleCommandResult(ctx, conn, &msg, r.RemoteAddr, deviceID); ok {
				deviceID = id
			}

		default:
			h.logger.Warn("unknown agent action",
				zap.String("action", msg.Action),
				zap.String("device_id", deviceID),
			)
		}
	}
}

// register runs the identity reconciliation path shared by agentinfo,
// register and the agentinfo system message. On success the connection
// is bound (superseding and closing any previous connection for the
// device) and the agent gets a registered reply; on failure it gets an
// error reply and the connection stays unidentified.
func (h *Handler) register(ctx context.Context, conn *Conn, msg *inboundMessage, remoteAddr, prevDeviceID string) (string, bool) {
	desc := msg.descriptor(remoteAddr)

	dev, err := h.directory.Upsert(ctx, desc)
	if err != nil {
		h.logger.Warn("device registration failed",
			zap.String("hostname", desc.Hostname),
			zap.Error(err),
		)
		conn.Enqueue(errorReply{Action: "error", Message: err.Error()})
		return "", false
	}

	// A rename can resolve to a different device row; drop the old binding.
	if prevDeviceID != "" && prevDeviceID != dev.ID {
		h.registry.Unbind(prevDeviceID, conn)
	}

	if prev := h.registry.Bind(dev.ID, conn); prev != nil && prev != registry.Handle(conn) {
		prev.Close("superseded by new connection")
	}

	conn.Enqueue(registeredReply{
		Action:   "registered",
		DeviceID: dev.ID,
		Status:   "success",
		Message:  "Device registered successfully",
	})
	h.logger.Info("agent registered",
		zap.String("device_id", dev.ID),
		zap.String("hostname", dev.Hostname),
		zap.String("ip", dev.IPAddress),
	)

	h.requestInitialInventory(ctx, dev.ID)
	return dev.ID, true
}

// requestInitialInventory asks a freshly enrolled device for a full
// inventory when none is stored yet.
func (h *Handler) requestInitialInventory(ctx context.Context, deviceID string) {
	has, err := h.inventory.Has(ctx, deviceID)
	if err != nil || has {
		return
	}
	if _, err := h.dispatcher.Submit(ctx, commands.SubmitRequest{
		DeviceID:    deviceID,
		UserID:      systemUserID,
		CommandType: commands.CmdGetFullInventory,
	}); err != nil {
		h.logger.Warn("initial inventory request failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}
	h.logger.Info("requested initial inventory",
		zap.String("device_id", deviceID),
	)
}

// handleCommandResult correlates an agent result back to its command. A
// commandId that is not a UUID marks an out-of-band system message; the
// only recognized one is an embedded agentinfo, which is routed through
// the registration path.
func (h *Handler) handleCommandResult(ctx context.Context, conn *Conn, msg *inboundMessage, remoteAddr, deviceID string) (string, bool) {
	if msg.CommandID == "" || !isUUID(msg.CommandID) {
		var embedded inboundMessage
		if len(msg.Result) > 0 && json.Unmarshal(msg.Result, &embedded) == nil &&
			strings.EqualFold(embedded.Action, "agentinfo") {
			h.logger.Info("processing agentinfo system message",
				zap.String("command_id", msg.CommandID),
			)
			return h.register(ctx, conn, &embedded, remoteAddr, deviceID)
		}
		h.logger.Info("dropping system message",
			zap.String("command_id", msg.CommandID),
		)
		return "", false
	}

	cmd, err := h.dispatcher.ApplyResult(ctx, msg.CommandID, msg.Success, resultText(msg.Result), msg.Error)
	if err != nil {
		if errors.Is(err, commands.ErrCommandNotFound) {
			h.logger.Warn("result for unknown command",
				zap.String("command_id", msg.CommandID),
			)
		} else {
			h.logger.Error("failed to apply command result",
				zap.String("command_id", msg.CommandID),
				zap.Error(err),
			)
		}
		return "", false
	}

	if msg.Success && strings.EqualFold(cmd.CommandType, commands.CmdGetFullInventory) && isJSONObject(msg.Result) {
		if err := h.inventory.SaveRaw(ctx, cmd.DeviceID, msg.Result); err != nil {
			h.logger.Warn("failed to store inventory result",
				zap.String("device_id", cmd.DeviceID),
				zap.Error(err),
			)
		}
	}
	return "", false
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// resultText flattens the result payload: a JSON string becomes its
// value, anything else is kept as serialized JSON.
func resultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b == '{'
		}
	}
	return false
}
