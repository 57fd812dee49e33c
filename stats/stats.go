// Package stats tracks the health of the polling connection to the
// quiz-program API over a sliding one-hour window.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Health classifies the recent success rate of the connection.
type Health string

const (
	Healthy   Health = "healthy"
	Degraded  Health = "degraded"
	Unhealthy Health = "unhealthy"
)

// call is one recorded request against the API.
type call struct {
	timestamp   time.Time
	success     bool
	rateLimited bool
	latency     time.Duration
	reason      string
}

// Tracker records request outcomes. Safe for concurrent use.
type Tracker struct {
	mu                  sync.Mutex
	calls               []call
	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
}

// Snapshot is a point-in-time summary of the last hour of requests.
type Snapshot struct {
	Calls               int
	Successes           int
	Failures            int
	RateLimited         int
	ConsecutiveFailures int
	SuccessRate         float64
	Health              Health
	LastSuccess         time.Time
	LastFailure         time.Time
	LatencyP50          time.Duration
	LatencyP95          time.Duration
	LatencyP99          time.Duration
	RecentErrors        []string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordSuccess records a request the API answered usably.
func (t *Tracker) RecordSuccess(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.calls = append(t.calls, call{timestamp: now, success: true, latency: latency})
	t.consecutiveFailures = 0
	t.lastSuccess = now

	t.prune(now)
}

// RecordFailure records a failed request and why it failed.
func (t *Tracker) RecordFailure(latency time.Duration, reason string) {
	t.recordFailure(latency, reason, false)
}

// RecordRateLimited records a request the API rejected with HTTP 429. Rate
// limits count as failures for health purposes but are tallied separately.
func (t *Tracker) RecordRateLimited(latency time.Duration) {
	t.recordFailure(latency, "rate limited", true)
}

func (t *Tracker) recordFailure(latency time.Duration, reason string, rateLimited bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.calls = append(t.calls, call{
		timestamp:   now,
		latency:     latency,
		reason:      reason,
		rateLimited: rateLimited,
	})
	t.consecutiveFailures++
	t.lastFailure = now

	t.prune(now)
}

// prune drops calls older than one hour. Callers hold t.mu.
func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-1 * time.Hour)
	for i, c := range t.calls {
		if c.timestamp.After(cutoff) {
			t.calls = t.calls[i:]
			return
		}
	}
	t.calls = t.calls[:0]
}

// Snapshot summarizes the tracked window. An idle tracker reports Healthy
// with zero counts.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		ConsecutiveFailures: t.consecutiveFailures,
		LastSuccess:         t.lastSuccess,
		LastFailure:         t.lastFailure,
		Health:              Healthy,
	}
	if len(t.calls) == 0 {
		return snap
	}

	latencies := make([]float64, 0, len(t.calls))
	recentErrors := make([]string, 0, 5)

	for _, c := range t.calls {
		snap.Calls++
		if c.success {
			snap.Successes++
		} else {
			snap.Failures++
			if c.rateLimited {
				snap.RateLimited++
			}
			if len(recentErrors) < 5 {
				recentErrors = append(recentErrors, c.reason)
			}
		}
		latencies = append(latencies, float64(c.latency))
	}

	snap.SuccessRate = float64(snap.Successes) / float64(snap.Calls)
	snap.RecentErrors = recentErrors

	sort.Float64s(latencies)
	snap.LatencyP50 = time.Duration(percentile(latencies, 0.50))
	snap.LatencyP95 = time.Duration(percentile(latencies, 0.95))
	snap.LatencyP99 = time.Duration(percentile(latencies, 0.99))

	if snap.SuccessRate < 0.9 {
		snap.Health = Unhealthy
	} else if snap.SuccessRate < 0.95 {
		snap.Health = Degraded
	}

	return snap
}

// percentile returns the given percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
