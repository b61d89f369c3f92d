package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to RabbitMQ over one lazily dialled connection.
// A broken connection is dropped and re-dialled on the next publish.
type Publisher struct {
    url string

    mu   sync.Mutex
    conn *amqp.Connection
}

// NewPublisher returns a Publisher for the broker at url.  No connection is
// made until the first publish.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url}
}

// PublishInventoryChanged publishes to the inventory.changed queue.
func (p *Publisher) PublishInventoryChanged(ctx context.Context, ev InventoryChangedEvent) error {
    return p.publish(ctx, InventoryChangedQueue, ev)
}

// PublishSessionBooked publishes to the session.booked queue.
func (p *Publisher) PublishSessionBooked(ctx context.Context, ev SessionBookedEvent) error {
    return p.publish(ctx, SessionBookedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal %s event: %w", queue, err)
    }

    ch, err := p.channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch, queue); err != nil {
        p.reset()
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        p.reset()
        return fmt.Errorf("publish %s: %w", queue, err)
    }
    return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil || p.conn.IsClosed() {
        conn, err := amqp.Dial(p.url)
        if err != nil {
            return nil, fmt.Errorf("rabbitmq dial: %w", err)
        }
        p.conn = conn
    }
    ch, err := p.conn.Channel()
    if err != nil {
        _ = p.conn.Close()
        p.conn = nil
        return nil, fmt.Errorf("rabbitmq channel: %w", err)
    }
    return ch, nil
}

func (p *Publisher) reset() {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// Close closes the underlying connection, if any.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.conn == nil {
        return nil
    }
    err := p.conn.Close()
    p.conn = nil
    return err
}

// declare ensures the queue exists (idempotent).  Durable so messages
// survive broker restarts.
func declare(ch *amqp.Channel, queue string) error {
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare %s: %w", queue, err)
    }
    return nil
}
