package handler

import (
	"net/http"

	"escaperoom/internal/slots/service"
	httputil "escaperoom/pkg/http"
	"escaperoom/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

// List returns the slots of room_id (every room when omitted) ordered by start
// time, each with its status as seen by user_id.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	roomID := httputil.QueryParam(r, "room_id")
	viewerID := httputil.QueryParam(r, "user_id")

	views, err := h.service.ListStatuses(r.Context(), roomID, viewerID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteList(w, views, len(views)); err != nil {
		h.log.Error("failed to write list response", "handler", "List", "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/slots", h.List)
}
