package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"medislot/internal/appointments/service"
	"medislot/pkg/auth"
	httputil "medislot/pkg/http"
	"medislot/pkg/logger"
	"medislot/pkg/model"
)

type AppointmentHandler struct {
	service service.AppointmentService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/appointments", h.Book)
	router.GET("/api/v1/appointments", h.ListAll)
	router.GET("/api/v1/appointments/my", h.ListMine)
	router.GET("/api/v1/appointments/doctor", h.ListDoctor)
	router.GET("/api/v1/appointments/slots", h.Slots)
	router.GET("/api/v1/appointments/id/:id", h.GetByID)
	router.PATCH("/api/v1/appointments/id/:id/status", h.ChangeStatus)
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	var req model.BookRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	appt, err := h.service.Book(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, appt); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "ChangeStatus", err)
		return
	}

	var req model.ChangeStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ChangeStatus", err)
		return
	}

	appt, err := h.service.ChangeStatus(r.Context(), actor, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "ChangeStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, appt); err != nil {
		h.log.Error("failed to write success response", "handler", "ChangeStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	appt, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, appt); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

type listFunc func(r *http.Request, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error)

func (h *AppointmentHandler) paginated(w http.ResponseWriter, r *http.Request, handler string, list listFunc) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	items, total, err := list(r, actor, limit, offset)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	if err := httputil.WritePaginated(w, items, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}

func (h *AppointmentHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.paginated(w, r, "ListMine", func(r *http.Request, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error) {
		return h.service.MyAppointments(r.Context(), actor, limit, offset)
	})
}

func (h *AppointmentHandler) ListDoctor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.paginated(w, r, "ListDoctor", func(r *http.Request, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error) {
		return h.service.DoctorAppointments(r.Context(), actor, limit, offset)
	})
}

func (h *AppointmentHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.paginated(w, r, "ListAll", func(r *http.Request, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error) {
		return h.service.AllAppointments(r.Context(), actor, limit, offset)
	})
}

func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.service.Slots()); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
	}
}
