package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes stored inventory snapshots over the admin API.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an inventory Handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the inventory endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices/{id}/inventory", h.handleGet)
}

// handleGet returns the device's last inventory snapshot.
//
//	@Summary	Get device inventory
//	@Tags		inventory
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Device ID"
//	@Success	200	{object}	Snapshot
//	@Failure	404	{object}	map[string]any
//	@Router		/api/devices/{id}/inventory [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "no inventory stored for device")
			return
		}
		h.logger.Error("get inventory failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load inventory")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
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
