// Package besteffort runs side effects whose failure must never reach the
// caller: admin notifications, confirmation emails, audit lines.
package besteffort

import (
    "context"
    "fmt"
    "runtime/debug"
    "time"

    "github.com/labstack/gommon/log"
)

// Task is a side effect.  Its error is logged, never returned.
type Task func(ctx context.Context) error

// Runner executes tasks with a timeout and panic recovery.
type Runner struct {
    logger  *log.Logger
    timeout time.Duration
}

// NewRunner returns a Runner.  A non-positive timeout defaults to 10s.
func NewRunner(logger *log.Logger, timeout time.Duration) *Runner {
    if timeout <= 0 {
        timeout = 10 * time.Second
    }
    return &Runner{logger: logger, timeout: timeout}
}

// Run executes task synchronously.  It returns once the task has finished
// or the timeout has fired, whichever comes first.  The parent's
// cancellation is ignored so a request ending does not cut the task short.
func (r *Runner) Run(parent context.Context, name string, task Task) {
    ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)
    defer cancel()

    errc := make(chan error, 1)
    go func() {
        defer func() {
            if p := recover(); p != nil {
                errc <- fmt.Errorf("panic: %v\n%s", p, debug.Stack())
            }
        }()
        errc <- task(ctx)
    }()

    select {
    case err := <-errc:
        if err != nil {
            r.logger.Warnj(log.JSON{"task": name, "error": err.Error()})
        }
    case <-ctx.Done():
        r.logger.Warnj(log.JSON{"task": name, "error": "timed out after " + r.timeout.String()})
    }
}

// Go is Run in a new goroutine.  The returned channel closes when the task
// has settled, which tests and graceful shutdown can wait on.
func (r *Runner) Go(parent context.Context, name string, task Task) <-chan struct{} {
    done := make(chan struct{})
    go func() {
        defer close(done)
        r.Run(parent, name, task)
    }()
    return done
}
