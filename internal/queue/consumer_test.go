package queue

import (
    "bytes"
    "context"
    "errors"
    "testing"
    "time"

    "github.com/labstack/gommon/log"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type fakeAck struct {
    acks, nacks int
    requeued    bool
}

func (f *fakeAck) Ack(bool) error { f.acks++; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
    f.nacks++
    f.requeued = f.requeued || requeue
    return nil
}

func newTestConsumer(attempts int) (*Consumer, *bytes.Buffer) {
    buf := &bytes.Buffer{}
    l := log.New("consumer")
    l.SetOutput(buf)
    return NewConsumer("amqp://unused", RetryPolicy{MaxAttempts: attempts, Backoff: time.Millisecond}, l), buf
}

func TestProcess_AckOnSuccess(t *testing.T) {
    c, _ := newTestConsumer(3)
    ack := &fakeAck{}
    calls := 0
    c.process(context.Background(), InventoryChangedQueue, func(ctx context.Context, body []byte) error {
        calls++
        return nil
    }, []byte(`{}`), ack)
    assert.Equal(t, 1, calls)
    assert.Equal(t, 1, ack.acks)
    assert.Zero(t, ack.nacks)
}

func TestProcess_RetriesTransientErrors(t *testing.T) {
    c, _ := newTestConsumer(3)
    ack := &fakeAck{}
    calls := 0
    c.process(context.Background(), InventoryChangedQueue, func(ctx context.Context, body []byte) error {
        calls++
        if calls < 3 {
            return errors.New("db down")
        }
        return nil
    }, nil, ack)
    assert.Equal(t, 3, calls)
    assert.Equal(t, 1, ack.acks)
}

func TestProcess_RejectsAfterMaxAttempts(t *testing.T) {
    c, buf := newTestConsumer(2)
    ack := &fakeAck{}
    calls := 0
    c.process(context.Background(), InventoryChangedQueue, func(ctx context.Context, body []byte) error {
        calls++
        return errors.New("db down")
    }, nil, ack)
    assert.Equal(t, 2, calls)
    assert.Equal(t, 1, ack.nacks)
    assert.False(t, ack.requeued)
    assert.Contains(t, buf.String(), "message rejected")
}

func TestProcess_PermanentNotRetried(t *testing.T) {
    c, _ := newTestConsumer(5)
    ack := &fakeAck{}
    calls := 0
    h := func(ctx context.Context, body []byte) error {
        calls++
        _, err := Decode[InventoryChangedEvent](body)
        return err
    }
    c.process(context.Background(), InventoryChangedQueue, h, []byte(`not json`), ack)
    assert.Equal(t, 1, calls)
    assert.Equal(t, 1, ack.nacks)
}

func TestProcess_PanicIsRetriedThenRejected(t *testing.T) {
    c, _ := newTestConsumer(2)
    ack := &fakeAck{}
    c.process(context.Background(), SessionBookedQueue, func(ctx context.Context, body []byte) error {
        panic("nil map")
    }, nil, ack)
    assert.Equal(t, 1, ack.nacks)
}

func TestProcess_ShutdownRequeues(t *testing.T) {
    c, buf := newTestConsumer(5)
    ack := &fakeAck{}
    ctx, cancel := context.WithCancel(context.Background())
    calls := 0
    c.process(ctx, InventoryChangedQueue, func(ctx context.Context, body []byte) error {
        calls++
        cancel()
        return ctx.Err()
    }, nil, ack)
    assert.Equal(t, 1, calls)
    assert.Zero(t, ack.acks)
    assert.Equal(t, 1, ack.nacks)
    assert.True(t, ack.requeued)
    assert.Contains(t, buf.String(), "requeued on shutdown")
}

func TestProcess_ShutdownDuringBackoffRequeues(t *testing.T) {
    buf := &bytes.Buffer{}
    l := log.New("consumer")
    l.SetOutput(buf)
    c := NewConsumer("amqp://unused", RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}, l)
    ack := &fakeAck{}
    ctx, cancel := context.WithCancel(context.Background())
    go func() {
        time.Sleep(20 * time.Millisecond)
        cancel()
    }()
    c.process(ctx, InventoryChangedQueue, func(ctx context.Context, body []byte) error {
        return errors.New("db down")
    }, nil, ack)
    assert.Equal(t, 1, ack.nacks)
    assert.True(t, ack.requeued)
}

func TestProcess_PermanentOnShutdownStillRejected(t *testing.T) {
    c, _ := newTestConsumer(5)
    ack := &fakeAck{}
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    c.process(ctx, InventoryChangedQueue, func(ctx context.Context, body []byte) error {
        return Permanent(errors.New("bad event"))
    }, nil, ack)
    assert.Equal(t, 1, ack.nacks)
    assert.False(t, ack.requeued)
}

func TestDecode(t *testing.T) {
    ev, err := Decode[InventoryChangedEvent]([]byte(`{"instructor_slug":"kim","type":"group","previous_count":0,"new_count":2,"changed_at":"2026-01-02T03:04:05Z"}`))
    require.NoError(t, err)
    assert.Equal(t, "kim", ev.InstructorSlug)
    assert.Equal(t, 2, ev.NewCount)
    assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), ev.ChangedAt)

    _, err = Decode[SessionBookedEvent]([]byte(`{`))
    assert.True(t, IsPermanent(err))
    assert.False(t, IsPermanent(errors.New("x")))
    assert.Nil(t, Permanent(nil))
}
