// Package metrics exposes Prometheus instruments for plan mutation and
// verification. A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collector owns a private registry and the instruments registered on it.
type Collector struct {
	registry *prometheus.Registry

	edits         *prometheus.CounterVec
	lockWait      *prometheus.HistogramVec
	storeRetries  *prometheus.CounterVec
	verifications *prometheus.CounterVec
	verifyLatency prometheus.Histogram
	queueDepth    prometheus.Gauge
	transitions   *prometheus.CounterVec
}

// New creates a Collector with its instruments registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		edits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealplan_member_edits_total",
				Help: "Member entry edits by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		lockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mealplan_lock_wait_seconds",
				Help:    "Time spent waiting for the plan lock",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"outcome"},
		),
		storeRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealplan_store_retries_total",
				Help: "Retries after a transient plan store failure",
			},
			[]string{"op"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealplan_verifications_total",
				Help: "Verification jobs by outcome",
			},
			[]string{"outcome"},
		),
		verifyLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mealplan_verification_seconds",
				Help:    "Duration of verification jobs",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mealplan_verification_queue_depth",
				Help: "Verification jobs waiting to run",
			},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealplan_sub_order_transitions_total",
				Help: "Sub-order transitions by label and outcome",
			},
			[]string{"transition", "outcome"},
		),
	}

	c.registry.MustRegister(
		c.edits,
		c.lockWait,
		c.storeRetries,
		c.verifications,
		c.verifyLatency,
		c.queueDepth,
		c.transitions,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveEdit counts one member edit. outcome is "ok" or an error code.
func (c *Collector) ObserveEdit(kind, outcome string) {
	if c == nil {
		return
	}
	c.edits.WithLabelValues(kind, outcome).Inc()
}

// ObserveLockWait records how long a lock acquisition waited.
func (c *Collector) ObserveLockWait(d time.Duration, acquired bool) {
	if c == nil {
		return
	}
	outcome := "acquired"
	if !acquired {
		outcome = "failed"
	}
	c.lockWait.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveStoreRetry counts a retry of op after a transient store failure.
func (c *Collector) ObserveStoreRetry(op string) {
	if c == nil {
		return
	}
	c.storeRetries.WithLabelValues(op).Inc()
}

// ObserveVerification records a finished verification job.
func (c *Collector) ObserveVerification(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.verifications.WithLabelValues(outcome).Inc()
	c.verifyLatency.Observe(d.Seconds())
}

// SetQueueDepth reports the number of pending verification jobs.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

// ObserveTransition counts a sub-order transition attempt.
func (c *Collector) ObserveTransition(transition, outcome string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(transition, outcome).Inc()
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	if c == nil {
		return nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
