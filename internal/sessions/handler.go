package sessions

import (
	"encoding/json"
	"errors"
	"net/http"

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

// StartRequest is the request body for session start endpoints.
type StartRequest struct {
	DeviceID    string `json:"device_id"`
	InitialData string `json:"initial_data,omitempty"`
}

// StopRequest is the request body for session stop endpoints.
type StopRequest struct {
	SessionID string `json:"session_id"`
}

// Handler exposes session control over the admin API.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a session Handler.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes mounts the session endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions/desktop/start", h.start(models.SessionDesktop))
	mux.HandleFunc("POST /api/sessions/desktop/stop", h.handleStop)
	mux.HandleFunc("POST /api/sessions/console/start", h.start(models.SessionConsole))
	mux.HandleFunc("POST /api/sessions/console/stop", h.handleStop)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGet)
	mux.HandleFunc("GET /api/devices/{id}/sessions", h.handleListActive)
}

func (h *Handler) start(sessionType models.SessionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.DeviceID == "" {
			writeError(w, http.StatusBadRequest, "device_id is required")
			return
		}

		var userID string
		if claims := auth.UserFromContext(r.Context()); claims != nil {
			userID = claims.UserID
		}

		sess, err := h.manager.Start(r.Context(), req.DeviceID, sessionType, req.InitialData, userID)
		switch {
		case errors.Is(err, ErrDeviceOffline):
			writeError(w, http.StatusConflict, "device is not connected")
		case err != nil && sess != nil:
			// Recorded but the start command did not reach the agent.
			writeJSON(w, http.StatusAccepted, map[string]any{
				"session": sess,
				"warning": "start command not delivered",
			})
		case err != nil:
			h.logger.Error("session start failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start session")
		default:
			writeJSON(w, http.StatusOK, sess)
		}
	}
}

// handleStop ends a session and pushes the stop command best-effort.
func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	var userID string
	if claims := auth.UserFromContext(r.Context()); claims != nil {
		userID = claims.UserID
	}

	if err := h.manager.End(r.Context(), req.SessionID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("session stop failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to stop session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleGet returns a session by ID.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("get session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleListActive returns a device's active sessions.
func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	list, err := h.manager.ListActive(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if list == nil {
		list = []*models.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}
