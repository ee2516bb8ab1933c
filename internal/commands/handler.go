package commands

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/auth"
	"github.com/HerbHall/fleetgate/pkg/models"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an RFC 7807 problem detail response.
func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://fleetgate.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// Presence reports which devices currently hold a live connection.
type Presence interface {
	ListOnline() []string
	CountOnline() int
}

// ExecuteRequest is the request body for POST /api/commands.
type ExecuteRequest struct {
	DeviceID    string          `json:"device_id"`
	CommandType string          `json:"command_type" example:"ping"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Priority    int             `json:"priority,omitempty"`
}

// Handler exposes command dispatch over the admin API.
type Handler struct {
	dispatcher *Dispatcher
	presence   Presence
	logger     *zap.Logger
}

// NewHandler creates a command Handler.
func NewHandler(dispatcher *Dispatcher, presence Presence, logger *zap.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, presence: presence, logger: logger}
}

// RegisterRoutes mounts the command endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/commands", h.handleExecute)
	mux.HandleFunc("GET /api/commands/{id}", h.handleGet)
	mux.HandleFunc("GET /api/devices/{id}/commands", h.handleListByDevice)
	mux.HandleFunc("GET /api/connections", h.handleConnections)
}

// handleExecute dispatches a command to a device.
//
//	@Summary	Execute command
//	@Tags		commands
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		ExecuteRequest	true	"Command to dispatch"
//	@Success	202		{object}	models.Command
//	@Failure	400		{object}	map[string]any
//	@Failure	404		{object}	map[string]any
//	@Failure	409		{object}	map[string]any	"Device offline, command stays Pending"
//	@Router		/api/commands [post]
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DeviceID == "" || req.CommandType == "" {
		writeError(w, http.StatusBadRequest, "device_id and command_type are required")
		return
	}

	var userID string
	if claims := auth.UserFromContext(r.Context()); claims != nil {
		userID = claims.UserID
	}
	cmd, err := h.dispatcher.Submit(r.Context(), SubmitRequest{
		DeviceID:    req.DeviceID,
		UserID:      userID,
		CommandType: req.CommandType,
		Parameters:  req.Parameters,
		SessionID:   req.SessionID,
		Priority:    req.Priority,
	})
	switch {
	case errors.Is(err, ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, ErrNotConnected):
		// The record exists and stays Pending; tell the caller both.
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "device not connected",
			"command": cmd,
		})
	case err != nil:
		h.logger.Error("command dispatch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to dispatch command")
	default:
		writeJSON(w, http.StatusAccepted, cmd)
	}
}

// handleGet returns a command by ID.
//
//	@Summary	Get command
//	@Tags		commands
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Command ID"
//	@Success	200	{object}	models.Command
//	@Failure	404	{object}	map[string]any
//	@Router		/api/commands/{id} [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.dispatcher.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrCommandNotFound) {
			writeError(w, http.StatusNotFound, "command not found")
			return
		}
		h.logger.Error("get command failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load command")
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// handleListByDevice returns recent commands for a device.
//
//	@Summary	List device commands
//	@Tags		commands
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path	string	true	"Device ID"
//	@Param		limit	query	int		false	"Maximum results (default 50)"
//	@Success	200		{array}	models.Command
//	@Router		/api/devices/{id}/commands [get]
func (h *Handler) handleListByDevice(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.dispatcher.ListByDevice(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.logger.Error("list commands failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list commands")
		return
	}
	if list == nil {
		list = []*models.Command{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleConnections reports which devices are currently connected.
//
//	@Summary	Active connections
//	@Tags		commands
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	map[string]any
//	@Router		/api/connections [get]
func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      h.presence.CountOnline(),
		"device_ids": h.presence.ListOnline(),
	})
}
