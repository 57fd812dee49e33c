package quizadmin

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalsoupmedia/quiz-program-sub001/metrics"
	"github.com/digitalsoupmedia/quiz-program-sub001/quizadmintest"
	"github.com/digitalsoupmedia/quiz-program-sub001/types"
)

// Intervals are shrunk three orders of magnitude so the backoff ladder runs
// in milliseconds. The 20ms/30ms/45ms rungs mirror the production
// 20s/30s/45s ones exactly.
const (
	testBase = 20 * time.Millisecond
	testMax  = 200 * time.Millisecond
)

type updates struct {
	sessions     chan types.SessionSnapshot
	participants chan []types.ParticipantSnapshot
}

func newUpdates() *updates {
	return &updates{
		sessions:     make(chan types.SessionSnapshot, 64),
		participants: make(chan []types.ParticipantSnapshot, 64),
	}
}

func (u *updates) monitorConfig() MonitorConfig {
	return MonitorConfig{
		BaseInterval:         testBase,
		MaxInterval:          testMax,
		Factor:               1.5,
		OnSessionUpdate:      func(s types.SessionSnapshot) { u.sessions <- s },
		OnParticipantsUpdate: func(ps []types.ParticipantSnapshot) { u.participants <- ps },
	}
}

func waitSession(t *testing.T, ch <-chan types.SessionSnapshot) types.SessionSnapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a session update")
		return types.SessionSnapshot{}
	}
}

func waitParticipants(t *testing.T, ch <-chan []types.ParticipantSnapshot) []types.ParticipantSnapshot {
	t.Helper()
	select {
	case ps := <-ch:
		return ps
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a participant update")
		return nil
	}
}

func seedSession(srv *quizadmintest.Server, id types.SessionID, title string) {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	srv.SetSession(types.SessionSnapshot{
		ID:               id,
		Title:            title,
		Status:           types.SessionActive,
		ParticipantCount: 2,
		QuizStartedAt:    &started,
	}, []types.ParticipantSnapshot{
		{ID: 1, DisplayName: "R. Nair", Affiliation: "GEC Thrissur", Status: types.ParticipantStarted},
		{ID: 2, DisplayName: "K. Menon", Affiliation: "CUSAT", Status: types.ParticipantJoined},
	})
}

func newMonitorFixture(t *testing.T, config MonitorConfig) (*quizadmintest.Server, *Monitor) {
	t.Helper()

	srv := quizadmintest.NewServer("test-token")
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL: srv.URL(),
		Token:   "test-token",
		Timeout: 5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)

	monitor, err := NewMonitor(client, config, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(monitor.Stop)

	return srv, monitor
}

func TestNewMonitorValidation(t *testing.T) {
	_, err := NewMonitor(nil, MonitorConfig{}, zerolog.Nop())
	assert.ErrorContains(t, err, "client required")

	client, err := New(Config{BaseURL: "http://localhost", Token: "t"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = NewMonitor(client, MonitorConfig{Factor: 0.5}, zerolog.Nop())
	assert.ErrorContains(t, err, "invalid monitor config")

	_, err = NewMonitor(client, MonitorConfig{BaseInterval: time.Minute, MaxInterval: time.Second}, zerolog.Nop())
	assert.ErrorContains(t, err, "invalid monitor config")

	monitor, err := NewMonitor(client, MonitorConfig{}, zerolog.Nop())
	require.NoError(t, err, "zero config falls back to production defaults")
	assert.Equal(t, time.Duration(0), monitor.CurrentInterval(), "nothing monitored yet")
}

func TestMonitorDeliversUpdates(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Networking Fundamentals")

	require.NoError(t, monitor.Start(7))

	snapshot := waitSession(t, u.sessions)
	assert.Equal(t, types.SessionID(7), snapshot.ID)
	assert.Equal(t, "Networking Fundamentals", snapshot.Title)
	assert.Equal(t, types.SessionActive, snapshot.Status)
	assert.Equal(t, 2, snapshot.ParticipantCount)

	participants := waitParticipants(t, u.participants)
	require.Len(t, participants, 2)
	assert.Equal(t, "R. Nair", participants[0].DisplayName)
	assert.Equal(t, types.ParticipantJoined, participants[1].Status)

	id, ok := monitor.SessionID()
	assert.True(t, ok)
	assert.Equal(t, types.SessionID(7), id)
	assert.Equal(t, testBase, monitor.CurrentInterval(), "interval stays at base while polls succeed")
}

func TestStartRejectsInvalidSessionID(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())

	assert.ErrorIs(t, monitor.Start(0), types.ErrInvalidSessionID)
	assert.ErrorIs(t, monitor.Start(-5), types.ErrInvalidSessionID)

	_, ok := monitor.SessionID()
	assert.False(t, ok)

	time.Sleep(4 * testBase)
	assert.Equal(t, 0, srv.Requests(), "a rejected Start must not schedule anything")
}

func TestInvalidStartLeavesRunningMonitorUntouched(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Round 1")

	require.NoError(t, monitor.Start(7))
	waitSession(t, u.sessions)

	assert.ErrorIs(t, monitor.Start(0), types.ErrInvalidSessionID)

	id, ok := monitor.SessionID()
	assert.True(t, ok, "running monitor survives a rejected Start")
	assert.Equal(t, types.SessionID(7), id)

	waitSession(t, u.sessions)
}

func TestStopBeforeFirstPollSendsNothing(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Round 1")

	require.NoError(t, monitor.Start(7))
	monitor.Stop()

	time.Sleep(5 * testBase)
	assert.Equal(t, 0, srv.Requests(), "first poll fires one interval after Start, Stop beats it")

	_, ok := monitor.SessionID()
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), monitor.CurrentInterval())
}

func TestStopHaltsPolling(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Round 1")

	require.NoError(t, monitor.Start(7))
	waitSession(t, u.sessions)
	monitor.Stop()

	// Let any in-flight pair settle, then verify the counter froze.
	time.Sleep(2 * testBase)
	settled := srv.Requests()
	time.Sleep(8 * testBase)
	assert.Equal(t, settled, srv.Requests(), "no further requests after Stop")

	monitor.Stop() // idempotent
}

func TestStopFromUpdateHookCancelsNextPoll(t *testing.T) {
	srv := quizadmintest.NewServer("test-token")
	t.Cleanup(srv.Close)
	seedSession(srv, 7, "Round 1")

	client, err := New(Config{BaseURL: srv.URL(), Token: "test-token", Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	var hookCalls atomic.Int32
	var monitor *Monitor
	monitor, err = NewMonitor(client, MonitorConfig{
		BaseInterval: testBase,
		MaxInterval:  testMax,
		Factor:       1.5,
		OnSessionUpdate: func(types.SessionSnapshot) {
			hookCalls.Add(1)
			monitor.Stop()
		},
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(monitor.Stop)

	require.NoError(t, monitor.Start(7))

	assert.Eventually(t, func() bool {
		return hookCalls.Load() == 1
	}, 3*time.Second, 2*time.Millisecond)

	time.Sleep(2 * testBase)
	settled := srv.Requests()
	time.Sleep(8 * testBase)
	assert.Equal(t, settled, srv.Requests(), "Stop from inside a hook cancels the next poll")
	assert.Equal(t, int32(1), hookCalls.Load())
}

func TestBackoffGrowsAndResetsOnSuccess(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Round 1")

	// Three failing polls walk the ladder 30ms, 45ms, 67.5ms; the fourth
	// succeeds and snaps back to base.
	srv.FailNext(3)
	require.NoError(t, monitor.Start(7))

	for _, rung := range []time.Duration{
		30 * time.Millisecond,
		45 * time.Millisecond,
		67500 * time.Microsecond,
	} {
		assert.Eventuallyf(t, func() bool {
			return monitor.CurrentInterval() == rung
		}, 3*time.Second, 2*time.Millisecond, "interval should reach %s", rung)
	}

	assert.Empty(t, u.sessions, "no update may be rendered while polls fail")
	assert.Empty(t, u.participants)

	waitSession(t, u.sessions)
	assert.Eventually(t, func() bool {
		return monitor.CurrentInterval() == testBase
	}, 3*time.Second, 2*time.Millisecond, "one success resets the interval to base")
}

func TestBackoffRespectsCeiling(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Round 1")

	// More than enough failures to overrun the 200ms ceiling.
	srv.FailNext(12)
	require.NoError(t, monitor.Start(7))

	assert.Eventually(t, func() bool {
		return monitor.CurrentInterval() == testMax
	}, 5*time.Second, 2*time.Millisecond)

	// Pinned at the ceiling, never beyond.
	for i := 0; i < 10; i++ {
		assert.LessOrEqual(t, monitor.CurrentInterval(), testMax)
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRateLimitBacksOffWithoutUpdates(t *testing.T) {
	registry := prometheus.NewRegistry()

	u := newUpdates()
	config := u.monitorConfig()
	config.Metrics = metrics.New(registry)

	srv, monitor := newMonitorFixture(t, config)
	seedSession(srv, 7, "Round 1")

	srv.RateLimitNext(1)
	require.NoError(t, monitor.Start(7))

	// The first rendered update must come from the second poll: the 429 one
	// backs off silently instead of rendering or raising.
	waitSession(t, u.sessions)
	assert.GreaterOrEqual(t, srv.StatusRequests(7), 2, "the rate-limited poll must not render")
	assert.Equal(t, 1.0, counterValue(t, registry, "quizadmin_monitor_polls_total", "rate_limited"))

	assert.Eventually(t, func() bool {
		return monitor.CurrentInterval() == testBase
	}, 3*time.Second, 2*time.Millisecond, "success after a 429 resets the interval")
}

func TestStartSupersedesPreviousSession(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 1, "Morning Round")
	seedSession(srv, 2, "Evening Round")

	require.NoError(t, monitor.Start(1))
	assert.Eventually(t, func() bool {
		return srv.StatusRequests(1) >= 1
	}, 3*time.Second, 2*time.Millisecond)

	require.NoError(t, monitor.Start(2))

	id, ok := monitor.SessionID()
	assert.True(t, ok)
	assert.Equal(t, types.SessionID(2), id)

	// The superseded loop may have one pair in flight; after it settles the
	// old session must never be polled again.
	time.Sleep(2 * testBase)
	oldPolls := srv.StatusRequests(1)
	assert.Eventually(t, func() bool {
		return srv.StatusRequests(2) >= 2
	}, 3*time.Second, 2*time.Millisecond)
	assert.Equal(t, oldPolls, srv.StatusRequests(1))

	// Updates flowing now belong to the new session.
	deadline := time.After(3 * time.Second)
	for {
		var snapshot types.SessionSnapshot
		select {
		case snapshot = <-u.sessions:
		case <-deadline:
			t.Fatal("timed out waiting for an update for the superseding session")
		}
		if snapshot.ID == 2 {
			assert.Equal(t, "Evening Round", snapshot.Title)
			return
		}
		assert.Equal(t, types.SessionID(1), snapshot.ID, "updates must come from a session that was started")
	}
}

func TestPollsNeverOverlap(t *testing.T) {
	u := newUpdates()
	srv, monitor := newMonitorFixture(t, u.monitorConfig())
	seedSession(srv, 7, "Round 1")

	// Status responses take three base intervals. If polls were scheduled
	// by wall clock instead of after settlement, they would stack up.
	srv.SetLatency(3 * testBase)
	require.NoError(t, monitor.Start(7))

	assert.Eventually(t, func() bool {
		return srv.StatusRequests(7) >= 4
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, srv.MaxStatusInFlight(), "a poll must only be scheduled after the previous one settled")
}

func TestMonitorPublishesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	u := newUpdates()
	config := u.monitorConfig()
	config.Metrics = metrics.New(registry)

	srv, monitor := newMonitorFixture(t, config)
	seedSession(srv, 7, "Round 1")

	srv.FailNext(1)
	require.NoError(t, monitor.Start(7))
	waitSession(t, u.sessions)

	assert.GreaterOrEqual(t, counterValue(t, registry, "quizadmin_monitor_polls_total", "failure"), 1.0)
	assert.GreaterOrEqual(t, counterValue(t, registry, "quizadmin_monitor_polls_total", "success"), 1.0)
}

// counterValue digs one labelled counter out of a registry.
func counterValue(t *testing.T, registry *prometheus.Registry, name, outcome string) float64 {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
