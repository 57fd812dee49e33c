package quizadmin

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a quiz-program API response the client could not use: any
// non-2xx status, or a 2xx whose envelope reports success=false. StatusCode
// carries the HTTP status in both cases.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("quiz-program api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("quiz-program api: HTTP %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the server rejected the request with HTTP 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is (or wraps) a 429 response. Rate
// limits back polling off like any other failure but are logged without
// raising user-facing errors.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}
