package nba

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload marks a response that could not be turned into a table.
// It is never retried.
var ErrMalformedPayload = errors.New("malformed payload")

// TransientError wraps a transport or body-read failure.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("status %d for %s: %q", e.StatusCode, e.URL, e.Body)
}

// FetchError is the terminal failure of a fetch. Attempts is the number of
// network attempts made (0 when the breaker refused the call).
type FetchError struct {
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
