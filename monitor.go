package quizadmin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/digitalsoupmedia/quiz-program-sub001/backoff"
	"github.com/digitalsoupmedia/quiz-program-sub001/metrics"
	"github.com/digitalsoupmedia/quiz-program-sub001/types"
)

// MonitorConfig configures one Monitor. Zero interval values fall back to
// the production defaults; both hooks may be nil.
type MonitorConfig struct {
	BaseInterval time.Duration // delay between successful polls, default 20s
	MaxInterval  time.Duration // backoff ceiling, default 120s
	Factor       float64       // backoff growth per failed poll, default 1.5

	// OnSessionUpdate and OnParticipantsUpdate run on the monitor goroutine
	// after every successful poll, session first. Keep them fast; a slow
	// hook delays the next poll.
	OnSessionUpdate      func(types.SessionSnapshot)
	OnParticipantsUpdate func([]types.ParticipantSnapshot)

	// Metrics is optional Prometheus instrumentation. Nil disables it.
	Metrics *metrics.Collector
}

// Monitor keeps an administrator's view of one quiz session fresh. It polls
// the session status and participant list on an adaptive interval and pushes
// results into the update hooks. At most one session is monitored at a time:
// Start supersedes the previous session, Stop cancels outright.
type Monitor struct {
	client         *Client
	policy         backoff.Policy
	onSession      func(types.SessionSnapshot)
	onParticipants func([]types.ParticipantSnapshot)
	metrics        *metrics.Collector
	logger         zerolog.Logger

	mu     sync.Mutex
	active *handle
}

// handle is the scheduling state of one monitored session. Every Start
// creates a fresh handle; a superseded handle runs only long enough to
// notice its stop channel closed, and its in-flight results are discarded.
type handle struct {
	sessionID types.SessionID
	interval  time.Duration // guarded by Monitor.mu
	stop      chan struct{}
}

// NewMonitor creates a monitor polling through the given client.
func NewMonitor(client *Client, config MonitorConfig, logger zerolog.Logger) (*Monitor, error) {
	if client == nil {
		return nil, fmt.Errorf("client required")
	}

	policy := backoff.Policy{
		Base:   config.BaseInterval,
		Max:    config.MaxInterval,
		Factor: config.Factor,
	}
	if policy.Base == 0 {
		policy.Base = backoff.DefaultBase
	}
	if policy.Max == 0 {
		policy.Max = backoff.DefaultMax
	}
	if policy.Factor == 0 {
		policy.Factor = backoff.DefaultFactor
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	return &Monitor{
		client:         client,
		policy:         policy,
		onSession:      config.OnSessionUpdate,
		onParticipants: config.OnParticipantsUpdate,
		metrics:        config.Metrics,
		logger:         logger.With().Str("component", "session-monitor").Logger(),
	}, nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start begins monitoring the given session. A session monitored before is
// superseded. The first poll fires one base interval after Start, so a Stop
// before that point means no request is ever sent. An invalid id returns
// types.ErrInvalidSessionID and leaves any running monitor untouched.
func (m *Monitor) Start(id types.SessionID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	h := &handle{
		sessionID: id,
		interval:  m.policy.Base,
		stop:      make(chan struct{}),
	}

	m.mu.Lock()
	prev := m.active
	m.active = h
	m.mu.Unlock()

	if prev != nil {
		close(prev.stop)
		m.logger.Info().
			Int64("session_id", int64(prev.sessionID)).
			Msg("monitor superseded")
	}

	m.metrics.SetActive(true)
	m.metrics.SetInterval(m.policy.Base)
	m.logger.Info().
		Int64("session_id", int64(id)).
		Dur("interval", m.policy.Base).
		Msg("monitor started")

	go m.run(h)
	return nil
}

// Stop cancels the pending poll, if any. Safe to call at any time, repeatedly
// included, and from inside an update hook. An in-flight request pair is not
// aborted; its result is discarded when it lands.
func (m *Monitor) Stop() {
	m.mu.Lock()
	h := m.active
	m.active = nil
	m.mu.Unlock()

	if h == nil {
		return
	}

	close(h.stop)
	m.metrics.SetActive(false)
	m.logger.Info().
		Int64("session_id", int64(h.sessionID)).
		Msg("monitor stopped")
}

// SessionID returns the currently monitored session, if any.
func (m *Monitor) SessionID() (types.SessionID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return 0, false
	}
	return m.active.sessionID, true
}

// CurrentInterval returns the delay before the next poll: the base interval
// while polls succeed, the backed-off interval while they fail. Zero when
// nothing is monitored.
func (m *Monitor) CurrentInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return 0
	}
	return m.active.interval
}

// ============================================================================
// POLL CYCLE
// ============================================================================

// run drives the poll loop for one handle. The next delay starts only after
// the previous poll has settled, so polls never pile up behind a slow server.
func (m *Monitor) run(h *handle) {
	for {
		m.mu.Lock()
		interval := h.interval
		m.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if !m.tick(h) {
			return
		}
	}
}

// tick performs one poll and applies the interval rule. Returns false once
// the handle is no longer the active one.
func (m *Monitor) tick(h *handle) bool {
	// Deliberately not tied to the stop channel: Stop is advisory for
	// requests already in flight, their results are simply discarded.
	ctx := context.Background()

	startTime := time.Now()

	var (
		wg           sync.WaitGroup
		session      types.SessionSnapshot
		sessionErr   error
		participants []types.ParticipantSnapshot
		listErr      error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		session, sessionErr = m.client.GetSession(ctx, h.sessionID)
	}()
	go func() {
		defer wg.Done()
		participants, listErr = m.client.ListParticipants(ctx, h.sessionID)
	}()
	wg.Wait()

	elapsed := time.Since(startTime)

	m.mu.Lock()
	if m.active != h {
		m.mu.Unlock()
		m.logger.Debug().
			Int64("session_id", int64(h.sessionID)).
			Msg("discarding poll result, monitor no longer active")
		return false
	}

	// One failed request fails the whole poll: the dashboard renders status
	// and participants together or not at all.
	err := sessionErr
	if err == nil {
		err = listErr
	}

	if err != nil {
		next := m.policy.Next(h.interval)
		h.interval = next
		m.mu.Unlock()

		if IsRateLimited(err) {
			m.metrics.ObservePoll(metrics.OutcomeRateLimited, elapsed)
			m.logger.Warn().
				Int64("session_id", int64(h.sessionID)).
				Dur("next_poll", next).
				Msg("poll rate limited, backing off")
		} else {
			m.metrics.ObservePoll(metrics.OutcomeFailure, elapsed)
			m.logger.Warn().
				Err(err).
				Int64("session_id", int64(h.sessionID)).
				Dur("next_poll", next).
				Msg("poll failed, backing off")
		}
		m.metrics.SetInterval(next)
		return true
	}

	h.interval = m.policy.Base
	m.mu.Unlock()

	m.metrics.ObservePoll(metrics.OutcomeSuccess, elapsed)
	m.metrics.SetInterval(m.policy.Base)

	if m.onSession != nil {
		m.onSession(session)
	}
	if m.onParticipants != nil {
		m.onParticipants(participants)
	}

	m.logger.Debug().
		Int64("session_id", int64(h.sessionID)).
		Str("status", string(session.Status)).
		Int("participants", len(participants)).
		Dur("latency", elapsed).
		Msg("session snapshot updated")
	return true
}
