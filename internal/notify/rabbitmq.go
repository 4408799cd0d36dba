package notify

import (
	"auction-engine/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue auction events are published to
const DefaultQueue = "auction.events"

// RabbitSender publishes events as persistent JSON messages to a durable
// queue on the default exchange. The connection is dialed lazily and
// re-dialed after the broker drops it.
type RabbitSender struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewRabbitSender creates a sender for the given broker URL and queue
func NewRabbitSender(url, queue string) *RabbitSender {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RabbitSender{url: url, queue: queue}
}

func (r *RabbitSender) connection() (*amqp.Connection, error) {
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	r.conn = conn
	return conn, nil
}

// Send publishes payload to the queue
func (r *RabbitSender) Send(ctx context.Context, payload models.EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.connection()
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(r.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(payload.Event),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", r.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (r *RabbitSender) Name() string { return "rabbitmq" }

// Close closes the broker connection if one is open
func (r *RabbitSender) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}

var _ Sender = (*RabbitSender)(nil)
