package handler

import (
	"net/http"
	"time"

	"escaperoom/internal/holds/service"
	httputil "escaperoom/pkg/http"
	"escaperoom/pkg/logger"
	"escaperoom/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type HoldCreatedResponse struct {
	HoldID    string           `json:"hold_id"`
	Status    model.HoldStatus `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type HoldConfirmedResponse struct {
	HoldID string           `json:"hold_id"`
	SlotID string           `json:"slot_id"`
	Status model.HoldStatus `json:"status"`
}

type HoldReleasedResponse struct {
	HoldID string           `json:"hold_id"`
	Status model.HoldStatus `json:"status"`
}

type HoldHandler struct {
	service service.HoldService
	log     *logger.Logger
}

func NewHoldHandler(service service.HoldService, log *logger.Logger) *HoldHandler {
	return &HoldHandler{
		service: service,
		log:     log,
	}
}

func (h *HoldHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateHoldRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	hold, err := h.service.CreateHold(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, HoldCreatedResponse{
		HoldID:    hold.ID,
		Status:    hold.Status,
		ExpiresAt: hold.ExpiresAt,
	}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *HoldHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.HoldActionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	hold, err := h.service.Confirm(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, HoldConfirmedResponse{
		HoldID: hold.ID,
		SlotID: hold.SlotID,
		Status: hold.Status,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req model.HoldActionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := h.service.Release(r.Context(), id, &req); err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := httputil.WriteSuccess(w, HoldReleasedResponse{
		HoldID: id,
		Status: model.HoldReleased,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoldHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hold, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, hold); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoldHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *HoldHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/holds", h.Create)
	router.GET("/holds/:id", h.GetByID)
	router.POST("/holds/:id/confirm", h.Confirm)
	router.POST("/holds/:id/release", h.Release)
}
