package service

import (
	"context"
	"errors"
	"strings"

	notificationserrors "medislot/internal/notifications/errors"
	"medislot/internal/notifications/repository"
	"medislot/internal/presence"
	apperrors "medislot/pkg/errors"
	"medislot/pkg/logger"
	"medislot/pkg/metrics"
	"medislot/pkg/model"
)

const (
	MaxUnread = 100

	PushDelivered = "delivered"
	PushFailed    = "failed"
	PushOffline   = "offline"
	PushRelayed   = "relayed"
)

// Presence is the read side of the presence registry.
type Presence interface {
	Lookup(userID string) (presence.Channel, bool)
}

// Relay forwards a notification to other instances for users who are not
// connected here.
type Relay interface {
	Relay(ctx context.Context, n *model.Notification) error
}

type NotificationService interface {
	Notify(ctx context.Context, recipientID, message string) (*model.Notification, error)
	DeliverLocal(n *model.Notification) bool
	ListForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, int64, error)
	ListUnread(ctx context.Context, userID string) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, actorID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Dispatcher persists notifications and pushes them to the recipient's live
// channel when there is one. Delivery is best effort; the stored record is
// the source of truth.
type Dispatcher struct {
	repo     repository.NotificationRepository
	presence Presence
	relay    Relay
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewDispatcher(repo repository.NotificationRepository, presence Presence, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		presence: presence,
		metrics:  m,
		log:      log,
	}
}

// SetRelay enables cross-instance delivery. Must be called before serving.
func (d *Dispatcher) SetRelay(relay Relay) {
	d.relay = relay
}

func (d *Dispatcher) Notify(ctx context.Context, recipientID, message string) (*model.Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, apperrors.InvalidInput("Notification recipient is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.InvalidInput("Notification message is required")
	}

	n := &model.Notification{
		RecipientID: recipientID,
		Message:     message,
	}
	if err := d.repo.Create(ctx, n); err != nil {
		d.log.Error("Failed to persist notification", "recipient_id", recipientID, "error", err)
		return nil, apperrors.Internal("Failed to create notification", err)
	}
	d.metrics.ObserveNotificationCreated()

	if !d.DeliverLocal(n) {
		d.forward(ctx, n)
	}

	return n, nil
}

// forward hands n to the relay when the recipient is not connected here.
// Offline is counted once, on the instance that created the notification.
func (d *Dispatcher) forward(ctx context.Context, n *model.Notification) {
	if d.relay == nil {
		d.metrics.ObservePush(PushOffline)
		return
	}
	if err := d.relay.Relay(context.WithoutCancel(ctx), n); err != nil {
		d.metrics.ObservePush(PushOffline)
		d.log.Warn("Failed to relay notification", "notification_id", n.ID, "recipient_id", n.RecipientID, "error", err)
		return
	}
	d.metrics.ObservePush(PushRelayed)
}

// DeliverLocal pushes n to the recipient's channel on this instance. It
// reports whether the recipient is connected here, regardless of whether the
// send itself succeeded. A miss records nothing.
func (d *Dispatcher) DeliverLocal(n *model.Notification) bool {
	ch, ok := d.presence.Lookup(n.RecipientID)
	if !ok {
		return false
	}

	if err := ch.Send(presence.Event{Type: presence.EventNewNotification, Data: n}); err != nil {
		d.metrics.ObservePush(PushFailed)
		d.log.Warn("Failed to push notification",
			"notification_id", n.ID,
			"recipient_id", n.RecipientID,
			"channel", ch.ID(),
			"error", err,
		)
		return true
	}

	d.metrics.ObservePush(PushDelivered)
	return true
}

func (d *Dispatcher) ListForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, int64, error) {
	items, err := d.repo.FindByRecipient(ctx, userID, limit, offset)
	if err != nil {
		d.log.Error("Failed to list notifications", "user_id", userID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve notifications", err)
	}
	total, err := d.repo.CountByRecipient(ctx, userID)
	if err != nil {
		d.log.Error("Failed to count notifications", "user_id", userID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count notifications", err)
	}
	return items, total, nil
}

func (d *Dispatcher) ListUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	items, err := d.repo.FindUnread(ctx, userID, MaxUnread)
	if err != nil {
		d.log.Error("Failed to list unread notifications", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve notifications", err)
	}
	return items, nil
}

// MarkRead is idempotent. Only the recipient may mark a notification read.
func (d *Dispatcher) MarkRead(ctx context.Context, id, actorID string) error {
	n, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return d.translate(err, id)
	}
	if n.RecipientID != actorID {
		return apperrors.Forbidden("You can only mark your own notifications as read")
	}
	if n.Read {
		return nil
	}
	if err := d.repo.MarkRead(ctx, id); err != nil {
		return d.translate(err, id)
	}
	return nil
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := d.repo.MarkAllRead(ctx, userID)
	if err != nil {
		d.log.Error("Failed to mark notifications read", "user_id", userID, "error", err)
		return 0, apperrors.Internal("Failed to update notifications", err)
	}
	return n, nil
}

func (d *Dispatcher) translate(err error, id string) error {
	switch {
	case errors.Is(err, notificationserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Notification", id)
	case errors.Is(err, notificationserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid notification ID format")
	default:
		d.log.Error("Notification store failure", "notification_id", id, "error", err)
		return apperrors.Internal("Failed to update notification", err)
	}
}
