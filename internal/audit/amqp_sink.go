package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultQueue      = "auth.audit"
	DefaultBufferSize = 256
	publishTimeout    = 5 * time.Second
)

// amqpChannel is the subset of *amqp.Channel the sink uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connectFunc func(url string) (amqpChannel, io.Closer, error)

// AMQPSink queues events in memory and publishes them to a durable queue
// from a single goroutine started with Start.
type AMQPSink struct {
	url     string
	queue   string
	events  chan Event
	connect connectFunc

	ch   amqpChannel
	conn io.Closer
}

func NewAMQPSink(url, queue string, bufferSize int) *AMQPSink {
	if queue == "" {
		queue = DefaultQueue
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &AMQPSink{
		url:     url,
		queue:   queue,
		events:  make(chan Event, bufferSize),
		connect: dialAMQP,
	}
}

func dialAMQP(url string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("opening channel: %w", err)
	}
	return ch, conn, nil
}

// Publish enqueues the event; a full buffer drops it.
func (s *AMQPSink) Publish(_ context.Context, event Event) {
	select {
	case s.events <- event:
	default:
		slog.Warn("audit buffer full, dropping event", "component", "audit", "action", event.Action)
	}
}

func (s *AMQPSink) Start(ctx context.Context) {
	slog.Info("starting audit publisher", "component", "audit", "queue", s.queue)
	defer s.disconnect()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping audit publisher", "component", "audit", "pending", len(s.events))
			return
		case event := <-s.events:
			if err := s.send(ctx, event); err != nil {
				slog.Error("failed to publish audit event", "component", "audit", "action", event.Action, "error", err)
			}
		}
	}
}

func (s *AMQPSink) send(ctx context.Context, event Event) error {
	if s.ch == nil {
		ch, conn, err := s.connect(s.url)
		if err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declaring queue: %w", err)
		}
		s.ch, s.conn = ch, conn
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = s.ch.PublishWithContext(pubCtx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Action),
		Body:         body,
	})
	if err != nil {
		// reconnect on the next event
		s.disconnect()
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

func (s *AMQPSink) disconnect() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
