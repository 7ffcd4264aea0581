package handler

import (
	"context"
	"net/http"
	"time"

	"escaperoom/pkg/db"
	httputil "escaperoom/pkg/http"
	"escaperoom/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const ServiceName = "escape-room-api"

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type BannerResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

type HealthHandler struct {
	backend db.Pinger
	log     *logger.Logger
}

func NewHealthHandler(backend db.Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.backend.Ping(ctx); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unavailable",
			Database: "error",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "ready",
		Database: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// BannerHandler serves the service banner at the root path, without the data
// envelope.
type BannerHandler struct {
	log *logger.Logger
}

func NewBannerHandler(log *logger.Logger) *BannerHandler {
	return &BannerHandler{log: log}
}

func (h *BannerHandler) Root(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, BannerResponse{OK: true, Service: ServiceName}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Root", "operation", "WriteJSON", "error", err)
	}
}

func (h *BannerHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/", h.Root)
}
