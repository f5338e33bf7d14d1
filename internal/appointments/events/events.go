// Package events publishes appointment lifecycle events for downstream
// consumers. Publishing is best effort: the appointment store is the record.
package events

import (
	"context"
	"time"

	"medislot/pkg/kafka"
	"medislot/pkg/middleware"
	"medislot/pkg/model"
)

const (
	EventAppointmentBooked        = "appointment.booked"
	EventAppointmentStatusChanged = "appointment.status_changed"

	SchemaVersion = "1"
	Source        = "medislot"
)

type AppointmentEvent struct {
	Appointment    *model.Appointment `json:"appointment"`
	PreviousStatus model.Status       `json:"previous_status,omitempty"`
	ActorID        string             `json:"actor_id"`
	ActorRole      model.Role         `json:"actor_role"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

type Publisher interface {
	Booked(ctx context.Context, appt *model.Appointment, actor model.Actor) error
	StatusChanged(ctx context.Context, appt *model.Appointment, previous model.Status, actor model.Actor) error
}

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer   producer
	instanceID string
}

func NewKafkaPublisher(p producer, instanceID string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, instanceID: instanceID}
}

func (p *KafkaPublisher) Booked(ctx context.Context, appt *model.Appointment, actor model.Actor) error {
	return p.publish(ctx, EventAppointmentBooked, AppointmentEvent{
		Appointment: appt,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		OccurredAt:  appt.CreatedAt,
	})
}

func (p *KafkaPublisher) StatusChanged(ctx context.Context, appt *model.Appointment, previous model.Status, actor model.Actor) error {
	return p.publish(ctx, EventAppointmentStatusChanged, AppointmentEvent{
		Appointment:    appt,
		PreviousStatus: previous,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		OccurredAt:     appt.UpdatedAt,
	})
}

// publish keys by appointment id so one appointment's events stay ordered
// within a partition.
func (p *KafkaPublisher) publish(ctx context.Context, eventType string, event AppointmentEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Appointment.ID).
		WithValue(event).
		WithEventType(eventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithOrigin(p.instanceID).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// NopPublisher is used when KAFKA_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) Booked(context.Context, *model.Appointment, model.Actor) error { return nil }

func (NopPublisher) StatusChanged(context.Context, *model.Appointment, model.Status, model.Actor) error {
	return nil
}
