// Package types defines the data model of the quiz-program administration
// API: session and participant snapshots as the backend reports them, plus
// the identifier type shared by every endpoint.
package types

import (
	"errors"
	"strconv"
	"time"
)

// ErrInvalidSessionID is returned for session identifiers that are not
// positive integers.
var ErrInvalidSessionID = errors.New("invalid session id: must be a positive integer")

// SessionID identifies one scheduled or live quiz session.
type SessionID int64

// ParseSessionID converts a string identifier (route parameters, CLI
// arguments) into a SessionID. Non-numeric and non-positive input yields
// ErrInvalidSessionID.
func ParseSessionID(s string) (SessionID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidSessionID
	}
	return SessionID(n), nil
}

// Validate reports whether the identifier can name a real session.
func (id SessionID) Validate() error {
	if id <= 0 {
		return ErrInvalidSessionID
	}
	return nil
}

// String returns the decimal form used in request paths.
func (id SessionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// SessionStatus enumerates the lifecycle states a session moves through.
type SessionStatus string

const (
	SessionScheduled   SessionStatus = "scheduled"
	SessionInstruction SessionStatus = "instruction"
	SessionActive      SessionStatus = "active"
	SessionCompleted   SessionStatus = "completed"
	SessionCancelled   SessionStatus = "cancelled"
)

// Terminal reports whether the session has reached a state it never leaves.
// Dashboards typically stop monitoring once a session is terminal.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Live reports whether participants can still act in the session.
func (s SessionStatus) Live() bool {
	return s == SessionInstruction || s == SessionActive
}

// ParticipantStatus enumerates per-participant progress within a session.
type ParticipantStatus string

const (
	ParticipantJoined    ParticipantStatus = "joined"
	ParticipantStarted   ParticipantStatus = "started"
	ParticipantSubmitted ParticipantStatus = "submitted"
	ParticipantTimeout   ParticipantStatus = "timeout"
)

// SessionSnapshot is the server-reported state of one session at poll time.
// Phase timestamps stay nil until the session enters the respective phase.
type SessionSnapshot struct {
	ID                   SessionID     `json:"id"`
	Title                string        `json:"title,omitempty"`
	Status               SessionStatus `json:"status"`
	ParticipantCount     int           `json:"participant_count"`
	ScheduledAt          *time.Time    `json:"scheduled_at,omitempty"`
	InstructionStartedAt *time.Time    `json:"instruction_started_at,omitempty"`
	QuizStartedAt        *time.Time    `json:"quiz_started_at,omitempty"`
}

// ParticipantSnapshot is the state of one participant at poll time.
type ParticipantSnapshot struct {
	ID          int64             `json:"id"`
	DisplayName string            `json:"display_name"`
	Affiliation string            `json:"affiliation,omitempty"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    *time.Time        `json:"joined_at,omitempty"`
}
