package license

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the license over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a license Handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers license routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/license", h.handleGet)
}

// handleGet returns the installed license and its unlocked features.
//
//	@Summary		Get license
//	@Description	Returns the installed license with its device usage and feature list.
//	@Tags			license
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	License
//	@Failure		404	{object}	map[string]any
//	@Router			/license [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoLicense) {
			writeError(w, http.StatusNotFound, "no license installed")
			return
		}
		h.logger.Error("license lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load license")
		return
	}
	features, err := h.service.Features(r.Context())
	if err != nil {
		h.logger.Error("feature lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load license")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*License
		Features []string `json:"features"`
	}{License: l, Features: features})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

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
