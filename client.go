package quizadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/digitalsoupmedia/quiz-program-sub001/stats"
	"github.com/digitalsoupmedia/quiz-program-sub001/transport"
	"github.com/digitalsoupmedia/quiz-program-sub001/types"
)

// DefaultTimeout bounds one API request including the body read.
const DefaultTimeout = 15 * time.Second

// Config holds client configuration. BaseURL and Token are required; the
// bearer token comes from whatever performed the login, the client only
// attaches it.
type Config struct {
	BaseURL   string        // e.g. "https://quiz.example.org/api"
	Token     string        // bearer credential for the admin account
	Timeout   time.Duration // per-request timeout, DefaultTimeout when zero
	CAPath    string        // optional pinned CA bundle for private deployments
	UserAgent string        // "quizadmin-go/<Version>" when empty
}

// Validate checks if all required config fields are present.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BaseURL required")
	}
	if c.Token == "" {
		return fmt.Errorf("Token required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("Timeout must not be negative")
	}
	return nil
}

// Client talks to the quiz-program administration API. All methods are safe
// for concurrent use.
type Client struct {
	config  Config
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
	stats   *stats.Tracker
}

// New creates an API client. Pass zerolog.Nop() to silence it.
func New(config Config, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = "quizadmin-go/" + Version
	}

	httpClient, err := transport.BuildHTTPClient(config.Timeout, config.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    httpClient,
		logger:  logger.With().Str("component", "api-client").Logger(),
		stats:   stats.NewTracker(),
	}, nil
}

// Stats summarizes the last hour of requests against the API.
func (c *Client) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// GetSession fetches the status snapshot of one session.
func (c *Client) GetSession(ctx context.Context, id types.SessionID) (types.SessionSnapshot, error) {
	if err := id.Validate(); err != nil {
		return types.SessionSnapshot{}, err
	}

	var snapshot types.SessionSnapshot
	url := fmt.Sprintf("%s/sessions/%d", c.baseURL, id)
	if err := c.getJSON(ctx, url, &snapshot); err != nil {
		return types.SessionSnapshot{}, err
	}
	return snapshot, nil
}

// ListParticipants fetches the participant list of one session.
func (c *Client) ListParticipants(ctx context.Context, id types.SessionID) ([]types.ParticipantSnapshot, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var participants []types.ParticipantSnapshot
	url := fmt.Sprintf("%s/sessions/%d/participants", c.baseURL, id)
	if err := c.getJSON(ctx, url, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// getJSON performs an authenticated GET and decodes the response envelope
// into out. Every request is recorded in the stats tracker.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", requestID)

	startTime := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(startTime)

	if err != nil {
		c.stats.RecordFailure(latency, err.Error())
		c.logger.Debug().
			Str("request_id", requestID).
			Str("url", url).
			Dur("latency", latency).
			Err(err).
			Msg("request failed")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
			RequestID:  requestID,
		}
		c.stats.RecordRateLimited(latency)
		c.logger.Debug().
			Str("request_id", requestID).
			Str("url", url).
			Dur("latency", latency).
			Msg("rate limited")
		return apiErr
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
			RequestID:  requestID,
		}
		c.stats.RecordFailure(latency, apiErr.Error())
		c.logger.Debug().
			Str("request_id", requestID).
			Str("url", url).
			Int("status", resp.StatusCode).
			Dur("latency", latency).
			Msg("request rejected")
		return apiErr
	}

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.stats.RecordFailure(latency, "decode: "+err.Error())
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !envelope.Success {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    envelope.Message,
			RequestID:  requestID,
		}
		c.stats.RecordFailure(latency, apiErr.Error())
		return apiErr
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		c.stats.RecordFailure(latency, "decode: "+err.Error())
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	c.stats.RecordSuccess(latency)
	c.logger.Debug().
		Str("request_id", requestID).
		Str("url", url).
		Dur("latency", latency).
		Msg("request ok")
	return nil
}

// readErrorMessage extracts the envelope message from an error body, falling
// back to the raw body. Reads at most 4 KiB.
func readErrorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		return envelope.Message
	}
	return strings.TrimSpace(string(body))
}
