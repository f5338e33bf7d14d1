package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	notificationserrors "medislot/internal/notifications/errors"
	"medislot/pkg/model"
)

// memoryNotificationRepository backs STORAGE_DRIVER=memory and the tests.
// Ids are ObjectID hex strings so both drivers accept the same ids.
type memoryNotificationRepository struct {
	mu    sync.RWMutex
	items map[string]*model.Notification
}

func NewMemoryNotificationRepository() NotificationRepository {
	return &memoryNotificationRepository{items: make(map[string]*model.Notification)}
}

func (r *memoryNotificationRepository) Create(_ context.Context, n *model.Notification) error {
	n.ID = primitive.NewObjectID().Hex()
	n.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	stored := *n
	r.mu.Lock()
	r.items[n.ID] = &stored
	r.mu.Unlock()
	return nil
}

func (r *memoryNotificationRepository) FindByID(_ context.Context, id string) (*model.Notification, error) {
	if _, err := parseID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.items[id]
	if !ok {
		return nil, notificationserrors.ErrNotFound
	}
	out := *n
	return &out, nil
}

// newestFirst matches the Mongo sort: created_at desc, then id desc.
func (r *memoryNotificationRepository) newestFirst(match func(*model.Notification) bool) []*model.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Notification, 0)
	for _, n := range r.items {
		if match(n) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func page[T any](items []T, limit int, offset int64) []T {
	if offset >= int64(len(items)) {
		return make([]T, 0)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r *memoryNotificationRepository) FindByRecipient(_ context.Context, recipientID string, limit int, offset int64) ([]*model.Notification, error) {
	all := r.newestFirst(func(n *model.Notification) bool { return n.RecipientID == recipientID })
	return page(all, limit, offset), nil
}

func (r *memoryNotificationRepository) CountByRecipient(_ context.Context, recipientID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			count++
		}
	}
	return count, nil
}

func (r *memoryNotificationRepository) FindUnread(_ context.Context, recipientID string, limit int) ([]*model.Notification, error) {
	all := r.newestFirst(func(n *model.Notification) bool { return n.RecipientID == recipientID && !n.Read })
	return page(all, limit, 0), nil
}

func (r *memoryNotificationRepository) MarkRead(_ context.Context, id string) error {
	if _, err := parseID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return notificationserrors.ErrNotFound
	}
	n.Read = true
	return nil
}

func (r *memoryNotificationRepository) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var modified int64
	for _, n := range r.items {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			modified++
		}
	}
	return modified, nil
}
