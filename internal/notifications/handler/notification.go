package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"medislot/internal/notifications/service"
	"medislot/pkg/auth"
	httputil "medislot/pkg/http"
	"medislot/pkg/logger"
)

type NotificationHandler struct {
	service service.NotificationService
	log     *logger.Logger
}

func NewNotificationHandler(service service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/notifications/my", h.ListMine)
	router.GET("/api/v1/notifications/unread", h.ListUnread)
	router.PATCH("/api/v1/notifications/id/:id/read", h.MarkRead)
	router.PATCH("/api/v1/notifications/read-all", h.MarkAllRead)
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *NotificationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	items, total, err := h.service.ListForUser(r.Context(), actor.ID, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, items, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "ListUnread", err)
		return
	}

	items, err := h.service.ListUnread(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, "ListUnread", err)
		return
	}

	if err := httputil.WriteSuccess(w, items); err != nil {
		h.log.Error("failed to write success response", "handler", "ListUnread", "operation", "WriteSuccess", "error", err)
	}
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}

	if err := h.service.MarkRead(r.Context(), ps.ByName("id"), actor.ID); err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "MarkAllRead", err)
		return
	}

	n, err := h.service.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, "MarkAllRead", err)
		return
	}

	h.log.Debug("Marked notifications read", "user_id", actor.ID, "count", n)
	httputil.WriteNoContent(w)
}
