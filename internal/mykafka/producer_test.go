package mykafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/notify"
)

type fakeWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_PublishEvent(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := NewProducerWithWriter(w)

	err := p.PublishEvent(context.Background(), "orders", "ann@example.com", map[string]any{"order_id": "ECHO1"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "orders", w.msgs[0].Topic)
	assert.Equal(t, "ann@example.com", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"order_id":"ECHO1"}`, string(w.msgs[0].Value))
	assert.True(t, w.deadline)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishEvent_Errors(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w)

	err := p.PublishEvent(context.Background(), "t", "k", struct{}{})
	assert.ErrorContains(t, err, "broker down")

	err = p.PublishEvent(context.Background(), "t", "k", func() {})
	assert.ErrorContains(t, err, "json.Marshal")
}

func TestNewProducer_NoBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(nil)
	assert.Error(t, err)
}

func TestSink_Notify(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	sink := NewSink(NewProducerWithWriter(w), "")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	sink.Notify(context.Background(), notify.Notification{Kind: notify.KindOrderPlaced, Message: "placed", Severity: notify.SeveritySuccess, UserID: "ann@example.com", At: at})
	sink.Notify(context.Background(), notify.Notification{Kind: notify.KindNotLoggedIn, Severity: notify.SeverityError, At: at})
	sink.Close()

	require.Len(t, w.msgs, 2)
	assert.Equal(t, DefaultTopic, w.msgs[0].Topic)
	assert.Equal(t, "ann@example.com", string(w.msgs[0].Key))
	assert.Equal(t, "anonymous", string(w.msgs[1].Key))

	var got notify.Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, notify.KindOrderPlaced, got.Kind)

	assert.NotPanics(t, func() {
		sink.Notify(context.Background(), notify.Notification{Kind: notify.KindItemAdded})
		sink.Close()
	})
}

func TestSink_Notify_FailureIsSwallowed(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{err: errors.New("broker down")}
	sink := NewSink(NewProducerWithWriter(w), "events")

	assert.NotPanics(t, func() {
		sink.Notify(context.Background(), notify.Notification{Kind: notify.KindItemAdded})
		sink.Close()
	})
	assert.Empty(t, w.msgs)
}

type stuckWriter struct {
	release chan struct{}
	mu      sync.Mutex
	written int
}

func (s *stuckWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.written += len(msgs)
	s.mu.Unlock()
	return nil
}

func (s *stuckWriter) Close() error { return nil }

func TestSink_Notify_DoesNotWaitForBroker(t *testing.T) {
	t.Parallel()

	w := &stuckWriter{release: make(chan struct{})}
	sink := NewSinkWithBuffer(NewProducerWithWriter(w), "events", 2)

	start := time.Now()
	for i := 0; i < 10; i++ {
		sink.Notify(context.Background(), notify.Notification{Kind: notify.KindItemAdded})
	}
	assert.Less(t, time.Since(start), time.Second)

	close(w.release)
	sink.Close()

	// one in flight plus the buffered ones; the rest were dropped
	assert.LessOrEqual(t, w.written, 3)
	assert.GreaterOrEqual(t, w.written, 1)
}
