package nba

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// RetryConfig is the fetch policy. Delays grow as BaseBackoff * 2^(attempt-1).
type RetryConfig struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration // 0 = uncapped
	Timeout         time.Duration // per request, fixed across retries
	RetryableStatus []int
}

// DefaultRetryConfig mirrors the provider session the job has always used:
// five tries, two-second base, rate-limit and gateway statuses retried.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		BaseBackoff:     2 * time.Second,
		MaxBackoff:      60 * time.Second,
		Timeout:         120 * time.Second,
		RetryableStatus: []int{429, 500, 502, 503, 504},
	}
}

func (rc RetryConfig) attempts() int {
	if rc.MaxAttempts < 1 {
		return 1
	}
	return rc.MaxAttempts
}

// Backoff is the wait after failed attempt n (1-based).
func (rc RetryConfig) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > 30 {
		n = 30
	}
	d := rc.BaseBackoff * time.Duration(1<<(n-1))
	if rc.MaxBackoff > 0 && (d > rc.MaxBackoff || d < 0) {
		return rc.MaxBackoff
	}
	return d
}

func (rc RetryConfig) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return slices.Contains(rc.RetryableStatus, se.StatusCode)
	}
	return false
}

// wait picks the delay after attempt n, honouring Retry-After when it is longer.
func (rc RetryConfig) wait(n int, err error) time.Duration {
	d := rc.Backoff(n)
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > d {
		d = se.RetryAfter
		if rc.MaxBackoff > 0 && d > rc.MaxBackoff {
			d = rc.MaxBackoff
		}
	}
	return d
}

func parseRetryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
