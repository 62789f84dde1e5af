package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/notify"
)

const (
	publishTimeout = 5 * time.Second
	DefaultTopic   = "storefront_events"
	anonymousKey   = "anonymous"
)

// Writer is the part of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer Writer
}

func NewProducer(address []string) (*Producer, error) {
	if len(address) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(address...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           publishTimeout,
	}
	return &Producer{writer: w}, nil
}

func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{writer: w}
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: delivery failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

const defaultSinkBuffer = 256

type queued struct {
	n   notify.Notification
	log *slog.Logger
}

// Sink forwards notifications to a topic from a background goroutine, so a slow broker never
// stalls the command that produced the notification. When the queue is full the notification
// is dropped and logged. Delivery failures are logged and dropped too.
type Sink struct {
	Producer *Producer
	Topic    string

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

func NewSink(p *Producer, topic string) *Sink {
	return NewSinkWithBuffer(p, topic, defaultSinkBuffer)
}

func NewSinkWithBuffer(p *Producer, topic string, buffer int) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	if buffer <= 0 {
		buffer = defaultSinkBuffer
	}
	s := &Sink{
		Producer: p,
		Topic:    topic,
		queue:    make(chan queued, buffer),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) Notify(ctx context.Context, n notify.Notification) {
	l := logging.FromContext(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		l.Warn("kafka_sink_closed", "topic", s.Topic, "kind", n.Kind)
		return
	}
	select {
	case s.queue <- queued{n: n, log: l}:
	default:
		l.Warn("kafka_sink_queue_full", "topic", s.Topic, "kind", n.Kind)
	}
}

// Close stops accepting notifications and waits until the queued ones have been delivered.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for q := range s.queue {
		key := q.n.UserID
		if key == "" {
			key = anonymousKey
		}
		ctx := logging.IntoContext(context.Background(), q.log)
		if err := s.Producer.PublishEvent(ctx, s.Topic, key, q.n); err != nil {
			q.log.Warn("kafka_publish_failed", "topic", s.Topic, "kind", q.n.Kind, "error", err)
		}
	}
}
