package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	appointmentserrors "medislot/internal/appointments/errors"
	"medislot/internal/appointments/events"
	"medislot/internal/appointments/repository"
	"medislot/internal/appointments/validator"
	apperrors "medislot/pkg/errors"
	"medislot/pkg/logger"
	"medislot/pkg/metrics"
	"medislot/pkg/model"
	"medislot/pkg/sanitizer"
)

const (
	OutcomeBooked    = "booked"
	OutcomeApplied   = "applied"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// Notifier delivers a message to a user. Implemented by the notification dispatcher.
type Notifier interface {
	Notify(ctx context.Context, recipientID, message string) (*model.Notification, error)
}

type AppointmentService interface {
	Book(ctx context.Context, actor model.Actor, req *model.BookRequest) (*model.Appointment, error)
	ChangeStatus(ctx context.Context, actor model.Actor, id string, req *model.ChangeStatusRequest) (*model.Appointment, error)
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Appointment, error)
	MyAppointments(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error)
	DoctorAppointments(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error)
	AllAppointments(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error)
	Slots() []string
}

// Scheduler owns booking and the appointment lifecycle. Every store write
// happens before the notification that describes it.
type Scheduler struct {
	repo      repository.AppointmentRepository
	validator *validator.AppointmentValidator
	slots     *model.SlotSet
	notifier  Notifier
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewScheduler(
	repo repository.AppointmentRepository,
	validator *validator.AppointmentValidator,
	slots *model.SlotSet,
	notifier Notifier,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
) *Scheduler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Scheduler{
		repo:      repo,
		validator: validator,
		slots:     slots,
		notifier:  notifier,
		events:    publisher,
		metrics:   m,
		log:       log,
	}
}

func (s *Scheduler) Slots() []string {
	return s.slots.Labels()
}

func (s *Scheduler) Book(ctx context.Context, actor model.Actor, req *model.BookRequest) (*model.Appointment, error) {
	if !actor.IsPatient() {
		s.metrics.ObserveBooking(OutcomeForbidden)
		return nil, apperrors.Forbidden("Only patients can book appointments")
	}

	s.sanitizeBook(req)
	if err := s.validateBook(req); err != nil {
		s.metrics.ObserveBooking(OutcomeRejected)
		return nil, err
	}
	if req.DoctorID == actor.ID {
		s.metrics.ObserveBooking(OutcomeRejected)
		return nil, apperrors.InvalidInput("You cannot book an appointment with yourself")
	}

	created, err := s.repo.TryCreate(ctx, &model.Appointment{
		PatientID: actor.ID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		TimeSlot:  req.TimeSlot,
		SlotIndex: s.slots.Index(req.TimeSlot),
		Status:    model.StatusPending,
	})
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrSlotTaken) {
			s.metrics.ObserveBooking(OutcomeConflict)
			s.log.Info("Booking rejected, slot taken",
				"doctor_id", req.DoctorID,
				"date", req.Date,
				"time_slot", req.TimeSlot,
			)
			return nil, apperrors.Conflict("This time slot is already taken").WithDetails(map[string]any{
				"doctor_id": req.DoctorID,
				"date":      req.Date,
				"time_slot": req.TimeSlot,
			})
		}
		s.metrics.ObserveBooking(OutcomeError)
		s.log.Error("Failed to create appointment", "doctor_id", req.DoctorID, "patient_id", actor.ID, "error", err)
		return nil, apperrors.Internal("Failed to book appointment", err)
	}
	s.metrics.ObserveBooking(OutcomeBooked)

	s.log.Info("Appointment booked",
		"id", created.ID,
		"doctor_id", created.DoctorID,
		"patient_id", created.PatientID,
		"date", created.Date,
		"time_slot", created.TimeSlot,
	)

	s.notify(ctx, created.DoctorID, fmt.Sprintf("New appointment request from %s for %s at %s",
		sanitizer.NormalizeName(actor.Name, "a patient"), created.Date, created.TimeSlot))

	if err := s.events.Booked(ctx, created, actor); err != nil {
		s.log.Warn("Failed to publish booking event", "id", created.ID, "error", err)
	}

	return created, nil
}

func (s *Scheduler) ChangeStatus(ctx context.Context, actor model.Actor, id string, req *model.ChangeStatusRequest) (*model.Appointment, error) {
	id = sanitizer.NormalizeIdentifier(id)
	if err := s.validator.ValidateChangeStatus(req); err != nil {
		s.metrics.ObserveTransition("invalid", OutcomeRejected)
		return nil, s.validationError("Invalid status", err)
	}
	next, _ := model.ParseStatus(req.Status)

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}

	if err := authorize(actor, current, next); err != nil {
		s.metrics.ObserveTransition(next.String(), OutcomeForbidden)
		s.log.Warn("Status change forbidden",
			"id", id,
			"actor_id", actor.ID,
			"actor_role", actor.Role,
			"requested", next,
		)
		return nil, err
	}
	if err := checkTransition(current.Status, next); err != nil {
		s.metrics.ObserveTransition(next.String(), OutcomeRejected)
		return nil, err
	}

	updated, err := s.repo.CompareAndSwapStatus(ctx, id, current.Status, next)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrStatusChanged) {
			s.metrics.ObserveTransition(next.String(), OutcomeConflict)
			return nil, s.lostRace(ctx, id, next)
		}
		s.metrics.ObserveTransition(next.String(), OutcomeError)
		return nil, s.translate(err, id)
	}
	s.metrics.ObserveTransition(next.String(), OutcomeApplied)

	s.log.Info("Appointment status changed",
		"id", id,
		"from", current.Status,
		"to", next,
		"actor_id", actor.ID,
		"actor_role", actor.Role,
	)

	for _, n := range statusNotifications(actor, updated) {
		s.notify(ctx, n.recipientID, n.message)
	}

	if err := s.events.StatusChanged(ctx, updated, current.Status, actor); err != nil {
		s.log.Warn("Failed to publish status event", "id", id, "error", err)
	}

	return updated, nil
}

// lostRace re-reads the appointment after a failed compare-and-swap and
// reports the status it moved to.
func (s *Scheduler) lostRace(ctx context.Context, id string, next model.Status) error {
	latest, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translate(err, id)
	}
	if err := checkTransition(latest.Status, next); err != nil {
		return err
	}
	return apperrors.InvalidTransition(
		fmt.Sprintf("Appointment status changed to %s while processing the request", latest.Status),
		latest.Status.String(),
	)
}

func (s *Scheduler) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Appointment, error) {
	id = sanitizer.NormalizeIdentifier(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	if !actor.IsAdmin() && !appt.IsParty(actor.ID) {
		return nil, apperrors.Forbidden("You do not have access to this appointment")
	}
	return appt, nil
}

func (s *Scheduler) MyAppointments(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error) {
	if !actor.IsPatient() {
		return nil, 0, apperrors.Forbidden("Only patients have personal appointments")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Appointment, error) {
			return s.repo.ListByPatient(ctx, actor.ID, limit, offset)
		},
		func(ctx context.Context) (int64, error) { return s.repo.CountByPatient(ctx, actor.ID) },
	)
}

func (s *Scheduler) DoctorAppointments(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error) {
	if !actor.IsDoctor() {
		return nil, 0, apperrors.Forbidden("Only doctors can list their schedule")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Appointment, error) {
			return s.repo.ListByDoctor(ctx, actor.ID, limit, offset)
		},
		func(ctx context.Context) (int64, error) { return s.repo.CountByDoctor(ctx, actor.ID) },
	)
}

func (s *Scheduler) AllAppointments(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Appointment, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can list all appointments")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Appointment, error) { return s.repo.ListAll(ctx, limit, offset) },
		s.repo.Count,
	)
}

func (s *Scheduler) list(
	ctx context.Context,
	find func(context.Context) ([]*model.Appointment, error),
	count func(context.Context) (int64, error),
) ([]*model.Appointment, int64, error) {
	var total int64
	var items []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.log.Error("Failed to count appointments", "error", errCount)
			errCount = apperrors.Internal("Failed to count appointments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		items, errFind = find(ctx)
		if errFind != nil {
			s.log.Error("Failed to list appointments", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve appointments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return items, total, nil
}

// notify never fails the caller; the appointment change is already durable.
func (s *Scheduler) notify(ctx context.Context, recipientID, message string) {
	if _, err := s.notifier.Notify(ctx, recipientID, message); err != nil {
		s.log.Error("Failed to notify user", "recipient_id", recipientID, "error", err)
	}
}

func (s *Scheduler) sanitizeBook(req *model.BookRequest) {
	req.DoctorID = sanitizer.NormalizeIdentifier(req.DoctorID)
	req.Date = sanitizer.NormalizeIdentifier(req.Date)
	req.TimeSlot = sanitizer.NormalizeSlotLabel(req.TimeSlot)
}

func (s *Scheduler) validateBook(req *model.BookRequest) error {
	if err := s.validator.ValidateBook(req); err != nil {
		s.log.Warn("Booking validation failed", "error", err)
		return s.validationError("Appointment validation failed", err)
	}
	return nil
}

func (s *Scheduler) validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.InvalidInput(message).WithDetails(verrs.Fields())
	}
	return apperrors.Internal("Failed to validate request", err)
}

func (s *Scheduler) translate(err error, id string) error {
	switch {
	case errors.Is(err, appointmentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Appointment", id)
	case errors.Is(err, appointmentserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid appointment ID format")
	default:
		s.log.Error("Appointment store failure", "id", id, "error", err)
		return apperrors.Internal("Failed to process appointment", err)
	}
}
