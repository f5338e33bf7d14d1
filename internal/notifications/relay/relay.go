// Package relay fans notifications out across instances over Kafka. An
// instance that cannot find the recipient locally publishes the stored
// notification; every other instance tries a local push and drops it
// otherwise.
package relay

import (
	"context"
	"fmt"

	"medislot/pkg/kafka"
	"medislot/pkg/logger"
	"medislot/pkg/model"
)

const (
	EventNotificationCreated = "notification.created"
	SchemaVersion            = "1"
	Source                   = "medislot"
)

type publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// LocalDeliverer pushes to channels connected to this instance.
type LocalDeliverer interface {
	DeliverLocal(n *model.Notification) bool
}

type Relay struct {
	producer   publisher
	instanceID string
	log        *logger.Logger
}

func New(producer publisher, instanceID string, log *logger.Logger) *Relay {
	return &Relay{producer: producer, instanceID: instanceID, log: log}
}

func (r *Relay) Relay(ctx context.Context, n *model.Notification) error {
	msg, err := kafka.NewMessage().
		WithKey(n.RecipientID).
		WithValue(n).
		WithEventID(n.ID).
		WithEventType(EventNotificationCreated).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithOrigin(r.instanceID).
		Build()
	if err != nil {
		return err
	}
	return r.producer.Publish(ctx, msg)
}

// Handler returns the consumer callback. Messages this instance produced are
// skipped; undecodable payloads are permanent failures.
func (r *Relay) Handler(deliverer LocalDeliverer) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.GetOrigin() == r.instanceID {
			return nil
		}
		if msg.GetEventType() != EventNotificationCreated {
			r.log.Debug("Ignoring relay message", "event_type", msg.GetEventType())
			return nil
		}

		var n model.Notification
		if err := msg.DecodeValue(&n); err != nil {
			return kafka.NewPermanentError("deserialization failed", err)
		}
		if n.RecipientID == "" {
			return kafka.NewPermanentError("invalid message", fmt.Errorf("notification %q has no recipient", n.ID))
		}

		if deliverer.DeliverLocal(&n) {
			r.log.Debug("Delivered relayed notification", "notification_id", n.ID, "recipient_id", n.RecipientID)
		}
		return nil
	}
}
