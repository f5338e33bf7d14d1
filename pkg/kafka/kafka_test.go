package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medislot/pkg/logger"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    chan struct{}
	once      sync.Once
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs)), closed: make(chan struct{})}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-r.closed:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("appt-1").
		WithValue(map[string]string{"status": "accepted"}).
		WithEventType("appointment.status_changed").
		WithOrigin("node-a").
		Build()
	require.NoError(t, err)

	assert.NotEmpty(t, msg.GetEventID())
	assert.Equal(t, "node-a", msg.GetOrigin())
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])

	var decoded map[string]string
	require.NoError(t, msg.DecodeValue(&decoded))
	assert.Equal(t, "accepted", decoded["status"])

	_, err = NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Error(t, err)
}

func TestRetryCount(t *testing.T) {
	msg := Message{Headers: map[string]string{}}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeTransient, ClassifyError(errors.New("dial tcp: connection refused")))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, ErrorTypePermanent, ClassifyError(errors.New("bad payload")))
	assert.Equal(t, ErrorTypeTransient, ClassifyError(NewTransientError("x", nil)))
	assert.False(t, ShouldRetry(NewTransientError("x", nil), 3, 3))
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "appointment-events", logger.Discard())

	var seen []string
	p.Use(func(ctx context.Context, msg Message, next MessageHandler) error {
		seen = append(seen, msg.Topic)
		return next(ctx, msg)
	})

	msg, err := NewMessage().WithKey("a1").WithValue("x").Build()
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, w.written, 1)
	assert.Equal(t, "a1", string(w.written[0].Key))
	assert.Equal(t, []string{"appointment-events"}, seen)

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), msg), ErrProducerClosed)
}

func TestProducer_DLQOnFailure(t *testing.T) {
	failing := &fakeWriter{err: errors.New("broker down")}
	dlq := &fakeWriter{}
	p := newProducer(failing, dlq, "appointment-events", logger.Discard())

	msg, err := NewMessage().WithKey("a1").WithValue("x").Build()
	require.NoError(t, err)

	err = p.Publish(context.Background(), msg)
	assert.Error(t, err)
	require.Len(t, dlq.written, 1)

	headers := map[string]string{}
	for _, h := range dlq.written[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "appointment-events", headers[HeaderOriginalTopic])
	assert.Equal(t, "broker down", headers["dlq-error"])
	assert.Empty(t, msg.Headers[HeaderOriginalTopic], "caller's headers are not mutated")
}

func TestConsumer_RetriesTransientThenCommits(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 7, Key: []byte("k"), Value: []byte("{}")})
	dlq := &fakeWriter{}

	var mu sync.Mutex
	attempts := 0
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return NewTransientError("flaky", nil)
		}
		return nil
	}

	c := newConsumer(reader, dlq, "notification-relay", "g", handler, logger.Discard())
	c.maxRetries = 5
	c.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int64{7}, reader.commits())
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
	assert.Empty(t, dlq.written)
}

func TestConsumer_PermanentGoesToDLQ(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 1, Key: []byte("k"), Value: []byte("garbage")})
	dlq := &fakeWriter{}
	handler := func(ctx context.Context, msg Message) error {
		return NewPermanentError("undecodable", nil)
	}

	c := newConsumer(reader, dlq, "notification-relay", "g", handler, logger.Discard())

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-done, ErrConsumerClosed)

	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	require.Len(t, dlq.written, 1)
}
