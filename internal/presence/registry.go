// Package presence tracks which users currently hold a live delivery channel
// on this instance. At most one channel is mapped per user; the most recent
// connection wins.
package presence

import (
	"errors"
	"sync"

	"medislot/pkg/logger"
	"medislot/pkg/metrics"
)

const EventNewNotification = "new_notification"

var (
	ErrRegistryClosed = errors.New("presence registry is closed")
	ErrChannelFull    = errors.New("channel send buffer is full")
	ErrChannelClosed  = errors.New("channel is closed")
)

// Event is the envelope pushed to a connected client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Channel is a live, push-only connection to one client. Send must not block.
type Channel interface {
	ID() string
	Send(Event) error
	Close() error
}

type attachment struct {
	userID string
	ch     Channel
}

type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]Channel
	owner   map[string]attachment // channel id -> owner, superseded channels included
	closed  bool
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewRegistry(log *logger.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		byUser:  make(map[string]Channel),
		owner:   make(map[string]attachment),
		log:     log,
		metrics: m,
	}
}

// Connect maps userID to ch, replacing any previous mapping. The replaced
// channel stays open; it just stops receiving pushes.
func (r *Registry) Connect(userID string, ch Channel) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	prev, replaced := r.byUser[userID]
	r.byUser[userID] = ch
	r.owner[ch.ID()] = attachment{userID: userID, ch: ch}
	count := len(r.byUser)
	r.mu.Unlock()

	r.metrics.SetLiveConnections(count)
	if replaced && prev.ID() != ch.ID() {
		r.log.Info("Presence superseded", "user_id", userID, "old_channel", prev.ID(), "channel", ch.ID())
	} else {
		r.log.Debug("Presence connected", "user_id", userID, "channel", ch.ID())
	}
	return nil
}

// Disconnect forgets ch. The user's mapping is removed only if it still
// points at ch, so a stale socket closing cannot evict a newer one.
func (r *Registry) Disconnect(ch Channel) {
	r.mu.Lock()
	att, known := r.owner[ch.ID()]
	userID := att.userID
	delete(r.owner, ch.ID())
	removed := false
	if known {
		if cur, ok := r.byUser[userID]; ok && cur.ID() == ch.ID() {
			delete(r.byUser, userID)
			removed = true
		}
	}
	count := len(r.byUser)
	r.mu.Unlock()

	if removed {
		r.metrics.SetLiveConnections(count)
		r.log.Debug("Presence disconnected", "user_id", userID, "channel", ch.ID())
	}
}

func (r *Registry) Lookup(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byUser[userID]
	return ch, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Close rejects further connects and closes every channel still tracked,
// superseded ones included.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	live := make([]Channel, 0, len(r.owner))
	for _, att := range r.owner {
		live = append(live, att.ch)
	}
	r.byUser = make(map[string]Channel)
	r.owner = make(map[string]attachment)
	r.mu.Unlock()

	for _, ch := range live {
		if err := ch.Close(); err != nil {
			r.log.Warn("Failed to close presence channel", "channel", ch.ID(), "error", err)
		}
	}
	r.metrics.SetLiveConnections(0)
}
