package devices

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
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

// Handler exposes the device directory over the admin API.
type Handler struct {
	directory *Directory
	logger    *zap.Logger
}

// NewHandler creates a device Handler.
func NewHandler(directory *Directory, logger *zap.Logger) *Handler {
	return &Handler{directory: directory, logger: logger}
}

// RegisterRoutes mounts the device endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", h.handleList)
	mux.HandleFunc("GET /api/devices/{id}", h.handleGet)
	mux.HandleFunc("DELETE /api/devices/{id}", h.handleDelete)
}

// handleList returns every enrolled device.
//
//	@Summary	List devices
//	@Tags		devices
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}	models.Device
//	@Router		/api/devices [get]
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("list devices failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGet returns a single device by ID.
//
//	@Summary	Get device
//	@Tags		devices
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Device ID"
//	@Success	200	{object}	models.Device
//	@Failure	404	{object}	map[string]any
//	@Router		/api/devices/{id} [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	dev, err := h.directory.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.logger.Error("get device failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDelete removes a device and frees its license seat.
//
//	@Summary	Delete device
//	@Tags		devices
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Device ID"
//	@Success	204
//	@Failure	404	{object}	map[string]any
//	@Router		/api/devices/{id} [delete]
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.logger.Error("delete device failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
