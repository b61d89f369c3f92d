package queue

import (
    "context"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.  Returning an error wrapped with
// Permanent rejects the message at once; any other error is retried.
type Handler func(ctx context.Context, body []byte) error

// RetryPolicy bounds how often a failing message is re-processed before it
// is rejected.  Backoff doubles after each failed attempt.
type RetryPolicy struct {
    MaxAttempts int
    Backoff     time.Duration
}

// Consumer reads every registered queue on one connection and re-dials
// with backoff when the broker goes away.
type Consumer struct {
    url      string
    handlers map[string]Handler
    retry    RetryPolicy
    logger   *log.Logger
}

func NewConsumer(url string, retry RetryPolicy, logger *log.Logger) *Consumer {
    if retry.MaxAttempts < 1 {
        retry.MaxAttempts = 1
    }
    return &Consumer{url: url, handlers: map[string]Handler{}, retry: retry, logger: logger}
}

// Handle registers h for queue.  Call before Run.
func (c *Consumer) Handle(queue string, h Handler) {
    c.handlers[queue] = h
}

// Run consumes until ctx is cancelled.  Connection failures are logged and
// retried; Run returns only ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.logger.Warnf("consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.logger.Warnf("consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(10, 0, false); err != nil {
        c.logger.Warnf("consumer: set QoS failed: %v", err)
    }

    // One goroutine per queue; the first one to stop ends the session.
    errc := make(chan error, len(c.handlers))
    for queue, h := range c.handlers {
        if err := declare(ch, queue); err != nil {
            return err
        }
        msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", queue, err)
        }
        go func(queue string, h Handler, msgs <-chan amqp.Delivery) {
            for d := range msgs {
                c.deliver(ctx, queue, h, d)
            }
            errc <- fmt.Errorf("%s: deliveries channel closed", queue)
        }(queue, h, msgs)
    }

    select {
    case <-ctx.Done():
        return ctx.Err()
    case err := <-errc:
        return err
    }
}

// acknowledger is the part of amqp.Delivery that deliver needs.
type acknowledger interface {
    Ack(multiple bool) error
    Nack(multiple, requeue bool) error
}

func (c *Consumer) deliver(ctx context.Context, queue string, h Handler, d amqp.Delivery) {
    c.process(ctx, queue, h, d.Body, &d)
}

// process runs h with retries and settles the message.  A permanent error
// or exhausted retries reject the message without requeue, so a poison
// message cannot spin.  A message interrupted by shutdown is requeued for
// the next consumer.
func (c *Consumer) process(ctx context.Context, queue string, h Handler, body []byte, ack acknowledger) {
    backoff := c.retry.Backoff
    var err error
    for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
        err = safeHandle(ctx, h, body)
        if err == nil {
            _ = ack.Ack(false)
            return
        }
        if IsPermanent(err) {
            break
        }
        c.logger.Warnj(log.JSON{"queue": queue, "attempt": attempt, "error": err.Error()})
        if ctx.Err() != nil || attempt == c.retry.MaxAttempts || !sleep(ctx, backoff) {
            break
        }
        backoff *= 2
    }
    if ctx.Err() != nil && !IsPermanent(err) {
        c.logger.Warnj(log.JSON{"queue": queue, "error": err.Error(), "msg": "message requeued on shutdown"})
        _ = ack.Nack(false, true)
        return
    }
    c.logger.Errorj(log.JSON{"queue": queue, "error": err.Error(), "msg": "message rejected"})
    _ = ack.Nack(false, false)
}

func safeHandle(ctx context.Context, h Handler, body []byte) (err error) {
    defer func() {
        if p := recover(); p != nil {
            err = fmt.Errorf("handler panic: %v", p)
        }
    }()
    return h(ctx, body)
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    if d <= 0 {
        return ctx.Err() == nil
    }
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-t.C:
        return true
    case <-ctx.Done():
        return false
    }
}
