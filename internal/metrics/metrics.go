// Package metrics exposes the Prometheus collectors for bookings, the
// waitlist notifier and the rate limiter.
package metrics

import (
    "errors"
    "time"

    "github.com/prometheus/client_golang/prometheus"
)

const namespace = "mentor_booking"

// Metrics groups the service's collectors.  A nil *Metrics is valid and
// records nothing, which keeps unit tests free of registry setup.
type Metrics struct {
    eligibility   *prometheus.CounterVec
    bookings      *prometheus.CounterVec
    waitlistSends *prometheus.CounterVec
    notifierRuns  *prometheus.CounterVec
    notifierTime  prometheus.Histogram
    rateLimited   prometheus.Counter
}

// New registers the collectors with reg.  Collectors that are already
// registered (a second New against the same registry) are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
    if reg == nil {
        reg = prometheus.DefaultRegisterer
    }
    m := &Metrics{
        eligibility: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "eligibility_checks_total",
            Help:      "Booking eligibility evaluations by result code.",
        }, []string{"code"}),
        bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "bookings_total",
            Help:      "Session booking attempts by outcome.",
        }, []string{"outcome"}),
        waitlistSends: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "waitlist",
            Name:      "emails_total",
            Help:      "Waitlist notification emails by outcome.",
        }, []string{"outcome"}),
        notifierRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: namespace,
            Subsystem: "waitlist",
            Name:      "notifier_runs_total",
            Help:      "Inventory change evaluations by result.",
        }, []string{"result"}),
        notifierTime: prometheus.NewHistogram(prometheus.HistogramOpts{
            Namespace: namespace,
            Subsystem: "waitlist",
            Name:      "notifier_run_duration_seconds",
            Help:      "Time spent handling one inventory change.",
            Buckets:   prometheus.DefBuckets,
        }),
        rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "ratelimit_blocked_total",
            Help:      "Requests rejected by the rate limiter.",
        }),
    }

    var err error
    if m.eligibility, err = registerCounterVec(reg, m.eligibility); err != nil {
        return nil, err
    }
    if m.bookings, err = registerCounterVec(reg, m.bookings); err != nil {
        return nil, err
    }
    if m.waitlistSends, err = registerCounterVec(reg, m.waitlistSends); err != nil {
        return nil, err
    }
    if m.notifierRuns, err = registerCounterVec(reg, m.notifierRuns); err != nil {
        return nil, err
    }
    if err := reg.Register(m.notifierTime); err != nil {
        var are prometheus.AlreadyRegisteredError
        if !errors.As(err, &are) {
            return nil, err
        }
        m.notifierTime = are.ExistingCollector.(prometheus.Histogram)
    }
    if err := reg.Register(m.rateLimited); err != nil {
        var are prometheus.AlreadyRegisteredError
        if !errors.As(err, &are) {
            return nil, err
        }
        m.rateLimited = are.ExistingCollector.(prometheus.Counter)
    }
    return m, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
    if err := reg.Register(c); err != nil {
        var are prometheus.AlreadyRegisteredError
        if errors.As(err, &are) {
            return are.ExistingCollector.(*prometheus.CounterVec), nil
        }
        return nil, err
    }
    return c, nil
}

// Eligibility counts one evaluation; code is "VALID" or a rejection code.
func (m *Metrics) Eligibility(code string) {
    if m == nil {
        return
    }
    m.eligibility.WithLabelValues(code).Inc()
}

// Booking counts one booking attempt: "booked", "rejected", "conflict" or "error".
func (m *Metrics) Booking(outcome string) {
    if m == nil {
        return
    }
    m.bookings.WithLabelValues(outcome).Inc()
}

// WaitlistEmail counts one send: "sent" or "failed".
func (m *Metrics) WaitlistEmail(outcome string) {
    if m == nil {
        return
    }
    m.waitlistSends.WithLabelValues(outcome).Inc()
}

// NotifierRun records one inventory evaluation.  result is the skip reason,
// "notified" or "error".
func (m *Metrics) NotifierRun(result string, took time.Duration) {
    if m == nil {
        return
    }
    m.notifierRuns.WithLabelValues(result).Inc()
    m.notifierTime.Observe(took.Seconds())
}

func (m *Metrics) RateLimited() {
    if m == nil {
        return
    }
    m.rateLimited.Inc()
}
