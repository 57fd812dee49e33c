// Package metrics exposes Prometheus instrumentation for the session
// monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRateLimited = "rate_limited"
)

// Collector holds the monitor's Prometheus instruments. A nil *Collector is
// valid and records nothing, so instrumentation stays optional.
type Collector struct {
	polls    *prometheus.CounterVec
	duration prometheus.Histogram
	interval prometheus.Gauge
	active   prometheus.Gauge
}

// New registers the monitor instruments with reg. A nil reg falls back to
// the default registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizadmin",
			Subsystem: "monitor",
			Name:      "polls_total",
			Help:      "Settled poll cycles by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quizadmin",
			Subsystem: "monitor",
			Name:      "poll_duration_seconds",
			Help:      "Wall time of one poll cycle, both requests included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		interval: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizadmin",
			Subsystem: "monitor",
			Name:      "poll_interval_seconds",
			Help:      "Delay before the next scheduled poll.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizadmin",
			Subsystem: "monitor",
			Name:      "active",
			Help:      "1 while a session is being monitored.",
		}),
	}
}

// ObservePoll records one settled poll cycle.
func (c *Collector) ObservePoll(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.polls.WithLabelValues(outcome).Inc()
	c.duration.Observe(duration.Seconds())
}

// SetInterval publishes the delay the next poll will wait.
func (c *Collector) SetInterval(interval time.Duration) {
	if c == nil {
		return
	}
	c.interval.Set(interval.Seconds())
}

// SetActive flags whether a session is currently monitored.
func (c *Collector) SetActive(active bool) {
	if c == nil {
		return
	}
	if active {
		c.active.Set(1)
	} else {
		c.active.Set(0)
	}
}
