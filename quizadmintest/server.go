// Package quizadmintest provides an in-memory stand-in for the quiz-program
// administration API, used by the monitor tests and for dashboard work
// without a real backend.
package quizadmintest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/digitalsoupmedia/quiz-program-sub001/types"
)

// Server is a fake admin API backed by an in-memory session table. All knobs
// are safe to turn while a monitor is polling.
type Server struct {
	mu                sync.Mutex
	sessions          map[types.SessionID]*sessionState
	token             string
	failNext          int
	rateLimitNext     int
	latency           time.Duration
	requests          int
	statusRequests    map[types.SessionID]int
	statusInFlight    int
	maxStatusInFlight int

	srv *httptest.Server
}

type sessionState struct {
	snapshot     types.SessionSnapshot
	participants []types.ParticipantSnapshot
}

// NewServer starts a fake API accepting the given bearer token. Callers own
// the returned server and must Close it.
func NewServer(token string) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		sessions:       make(map[types.SessionID]*sessionState),
		token:          token,
		statusRequests: make(map[types.SessionID]int),
	}

	router := gin.New()
	router.Use(s.countRequests, s.requireBearer)
	router.GET("/sessions/:id", s.getSession)
	router.GET("/sessions/:id/participants", s.getParticipants)

	s.srv = httptest.NewServer(router)
	return s
}

// URL is the base URL clients should point at.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the fake down.
func (s *Server) Close() {
	s.srv.Close()
}

// SetSession seeds or replaces one session and its participant list.
func (s *Server) SetSession(snapshot types.SessionSnapshot, participants []types.ParticipantSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snapshot.ID] = &sessionState{snapshot: snapshot, participants: participants}
}

// FailNext makes the status endpoint answer HTTP 500 for the next n
// requests. The participant endpoint stays healthy, which exercises the
// rule that a partially failed poll counts as failed.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// RateLimitNext makes the status endpoint answer HTTP 429 for the next n
// requests.
func (s *Server) RateLimitNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitNext = n
}

// SetLatency delays every status response by d, for overlap tests.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Requests returns how many requests reached the fake, authorized or not.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// StatusRequests returns how many status requests were served for one
// session, injected failures included.
func (s *Server) StatusRequests(id types.SessionID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusRequests[id]
}

// MaxStatusInFlight returns the highest number of concurrently served status
// requests observed so far.
func (s *Server) MaxStatusInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxStatusInFlight
}

func (s *Server) countRequests(c *gin.Context) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
	c.Next()
}

func (s *Server) requireBearer(c *gin.Context) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if c.GetHeader("Authorization") != "Bearer "+token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "missing or invalid credentials",
		})
	}
}

// takeInjection consumes one pending failure or rate-limit injection and
// returns the status to answer with.
func (s *Server) takeInjection() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rateLimitNext > 0 {
		s.rateLimitNext--
		return http.StatusTooManyRequests, true
	}
	if s.failNext > 0 {
		s.failNext--
		return http.StatusInternalServerError, true
	}
	return 0, false
}

func (s *Server) getSession(c *gin.Context) {
	id, err := types.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	s.mu.Lock()
	s.statusRequests[id]++
	s.statusInFlight++
	if s.statusInFlight > s.maxStatusInFlight {
		s.maxStatusInFlight = s.statusInFlight
	}
	latency := s.latency
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.statusInFlight--
		s.mu.Unlock()
	}()

	if latency > 0 {
		time.Sleep(latency)
	}

	if status, ok := s.takeInjection(); ok {
		c.JSON(status, gin.H{"success": false, "message": http.StatusText(status)})
		return
	}

	s.mu.Lock()
	state, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": state.snapshot})
}

func (s *Server) getParticipants(c *gin.Context) {
	id, err := types.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	s.mu.Lock()
	state, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": state.participants})
}
