package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medislot/internal/notifications/repository"
	"medislot/internal/presence"
	apperrors "medislot/pkg/errors"
	"medislot/pkg/logger"
	"medislot/pkg/metrics"
	"medislot/pkg/model"
)

type mockChannel struct {
	id       string
	mu       sync.Mutex
	events   []presence.Event
	SendFunc func(presence.Event) error
}

func (c *mockChannel) ID() string { return c.id }

func (c *mockChannel) Send(ev presence.Event) error {
	if c.SendFunc != nil {
		return c.SendFunc(ev)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *mockChannel) Close() error { return nil }

type mockPresence struct {
	channels map[string]presence.Channel
}

func (m *mockPresence) Lookup(userID string) (presence.Channel, bool) {
	ch, ok := m.channels[userID]
	return ch, ok
}

type mockRelay struct {
	RelayFunc func(ctx context.Context, n *model.Notification) error
	relayed   []*model.Notification
}

func (m *mockRelay) Relay(ctx context.Context, n *model.Notification) error {
	m.relayed = append(m.relayed, n)
	if m.RelayFunc != nil {
		return m.RelayFunc(ctx, n)
	}
	return nil
}

type failingRepo struct {
	repository.NotificationRepository
	err error
}

func (f *failingRepo) Create(context.Context, *model.Notification) error { return f.err }

func newTestDispatcher(channels map[string]presence.Channel) (*Dispatcher, repository.NotificationRepository) {
	repo := repository.NewMemoryNotificationRepository()
	if channels == nil {
		channels = map[string]presence.Channel{}
	}
	return NewDispatcher(repo, &mockPresence{channels: channels}, metrics.New(), logger.Discard()), repo
}

func TestNotify_PersistsWhenOffline(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	ctx := context.Background()

	n, err := d.Notify(ctx, "u1", "hello")
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n.ID == "" || n.Read {
		t.Fatalf("unexpected notification: %+v", n)
	}

	unread, err := d.ListUnread(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUnread failed: %v", err)
	}
	if len(unread) != 1 || unread[0].Message != "hello" {
		t.Errorf("expected stored notification, got %+v", unread)
	}
}

func TestNotify_PushesWhenOnline(t *testing.T) {
	ch := &mockChannel{id: "c1"}
	d, _ := newTestDispatcher(map[string]presence.Channel{"u1": ch})

	n, err := d.Notify(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if len(ch.events) != 1 {
		t.Fatalf("expected one pushed event, got %d", len(ch.events))
	}
	ev := ch.events[0]
	if ev.Type != presence.EventNewNotification {
		t.Errorf("event type = %q", ev.Type)
	}
	pushed, ok := ev.Data.(*model.Notification)
	if !ok || pushed.ID != n.ID {
		t.Errorf("pushed payload should be the stored notification, got %#v", ev.Data)
	}
}

func TestNotify_PushFailureIsNotReturned(t *testing.T) {
	ch := &mockChannel{id: "c1", SendFunc: func(presence.Event) error { return presence.ErrChannelFull }}
	relay := &mockRelay{}
	d, _ := newTestDispatcher(map[string]presence.Channel{"u1": ch})
	d.SetRelay(relay)

	if _, err := d.Notify(context.Background(), "u1", "hello"); err != nil {
		t.Fatalf("push failure must not fail Notify: %v", err)
	}
	if len(relay.relayed) != 0 {
		t.Error("a locally connected user must not be relayed")
	}
}

func TestNotify_RelaysWhenNotLocal(t *testing.T) {
	relay := &mockRelay{RelayFunc: func(context.Context, *model.Notification) error { return errors.New("broker down") }}
	d, _ := newTestDispatcher(nil)
	d.SetRelay(relay)

	if _, err := d.Notify(context.Background(), "u2", "hello"); err != nil {
		t.Fatalf("relay failure must not fail Notify: %v", err)
	}
	if len(relay.relayed) != 1 {
		t.Errorf("expected one relay attempt, got %d", len(relay.relayed))
	}
}

func TestNotify_Validation(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	if _, err := d.Notify(context.Background(), " ", "x"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty recipient, got %v", err)
	}
	if _, err := d.Notify(context.Background(), "u1", ""); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty message, got %v", err)
	}
}

func TestNotify_StoreFailure(t *testing.T) {
	ch := &mockChannel{id: "c1"}
	d := NewDispatcher(&failingRepo{err: errors.New("disk full")},
		&mockPresence{channels: map[string]presence.Channel{"u1": ch}}, nil, logger.Discard())

	_, err := d.Notify(context.Background(), "u1", "hello")
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
	if len(ch.events) != 0 {
		t.Error("nothing may be pushed when persistence fails")
	}
}

func TestMarkRead(t *testing.T) {
	d, repo := newTestDispatcher(nil)
	ctx := context.Background()

	n, err := d.Notify(ctx, "u1", "hello")
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if err := d.MarkRead(ctx, n.ID, "intruder"); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected FORBIDDEN for non-recipient, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := d.MarkRead(ctx, n.ID, "u1"); err != nil {
			t.Fatalf("MarkRead attempt %d failed: %v", i+1, err)
		}
	}

	stored, _ := repo.FindByID(ctx, n.ID)
	if !stored.Read {
		t.Error("notification should be read")
	}

	if err := d.MarkRead(ctx, "000000000000000000000000", "u1"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if err := d.MarkRead(ctx, "nope", "u1"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for malformed id, got %v", err)
	}
}

func TestListForUser_NewestFirst(t *testing.T) {
	d, _ := newTestDispatcher(nil)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		if _, err := d.Notify(ctx, "u1", msg); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := d.Notify(ctx, "u2", "other"); err != nil {
		t.Fatal(err)
	}

	items, total, err := d.ListForUser(ctx, "u1", 2, 0)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 || items[0].Message != "third" || items[1].Message != "second" {
		t.Errorf("unexpected page: %+v", items)
	}

	count, err := d.MarkAllRead(ctx, "u1")
	if err != nil || count != 3 {
		t.Errorf("MarkAllRead = %d, %v", count, err)
	}
	unread, _ := d.ListUnread(ctx, "u1")
	if len(unread) != 0 {
		t.Errorf("expected no unread, got %d", len(unread))
	}
}

func pushCount(t *testing.T, m *metrics.Metrics, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "medislot_notifications_pushes_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if metric.GetLabel()[0].GetValue() == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPushOutcomes_CountedOncePerNotification(t *testing.T) {
	tests := []struct {
		name        string
		relay       *mockRelay
		wantOffline float64
		wantRelayed float64
	}{
		{"no relay", nil, 1, 0},
		{"relay succeeds", &mockRelay{}, 0, 1},
		{"relay fails", &mockRelay{RelayFunc: func(context.Context, *model.Notification) error { return errors.New("broker down") }}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			d := NewDispatcher(repository.NewMemoryNotificationRepository(), &mockPresence{channels: map[string]presence.Channel{}}, m, logger.Discard())
			if tt.relay != nil {
				d.SetRelay(tt.relay)
			}

			if _, err := d.Notify(context.Background(), "u1", "hello"); err != nil {
				t.Fatalf("Notify failed: %v", err)
			}
			if got := pushCount(t, m, PushOffline); got != tt.wantOffline {
				t.Errorf("offline = %v, want %v", got, tt.wantOffline)
			}
			if got := pushCount(t, m, PushRelayed); got != tt.wantRelayed {
				t.Errorf("relayed = %v, want %v", got, tt.wantRelayed)
			}
		})
	}
}

func TestDeliverLocal_MissRecordsNothing(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(repository.NewMemoryNotificationRepository(), &mockPresence{channels: map[string]presence.Channel{}}, m, logger.Discard())

	if d.DeliverLocal(&model.Notification{ID: "n1", RecipientID: "elsewhere", Message: "hi"}) {
		t.Fatal("recipient is not connected here")
	}
	for _, outcome := range []string{PushOffline, PushFailed, PushDelivered, PushRelayed} {
		if got := pushCount(t, m, outcome); got != 0 {
			t.Errorf("%s = %v, want 0", outcome, got)
		}
	}
}
