package nba

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultStatsURL = "https://stats.nba.com/stats/leaguedashplayerstats"
	DefaultBrefURL  = "https://www.basketball-reference.com"

	RegularSeason = "Regular Season"

	playerStatsResultSet = "LeagueDashPlayerStats"
)

// stats.nba.com drops requests that don't look like they came from the site.
var statsHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Referer":            "https://www.nba.com/stats",
	"Origin":             "https://www.nba.com",
	"Accept":             "application/json, text/plain, */*",
	"Accept-Language":    "en-US,en;q=0.9",
	"Connection":         "keep-alive",
	"x-nba-stats-origin": "stats",
	"x-nba-stats-token":  "true",
}

// ClientConfig wires a Client.
type ClientConfig struct {
	StatsURL         string
	BrefURL          string
	Retry            RetryConfig
	MinInterval      time.Duration // spacing between attempts; 0 = none
	BreakerThreshold int           // consecutive failed fetches before a host's breaker opens; 0 = off
	BreakerCooldown  time.Duration
}

// Client owns the HTTP session for one process. Attempts are sequential.
// Each upstream host has its own breaker.
type Client struct {
	http         *http.Client
	statsURL     string
	brefURL      string
	retry        RetryConfig
	limiter      *rate.Limiter
	statsBreaker *gobreaker.CircuitBreaker
	brefBreaker  *gobreaker.CircuitBreaker
	log          *logrus.Entry
	sleep        func(context.Context, time.Duration) error
}

func NewClient(cfg ClientConfig, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.StatsURL == "" {
		cfg.StatsURL = DefaultStatsURL
	}
	if cfg.BrefURL == "" {
		cfg.BrefURL = DefaultBrefURL
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	c := &Client{
		http:     &http.Client{Timeout: cfg.Retry.Timeout},
		statsURL: cfg.StatsURL,
		brefURL:  cfg.BrefURL,
		retry:    cfg.Retry,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		sleep:    sleepCtx,
	}
	if cfg.BreakerThreshold > 0 {
		c.statsBreaker = newBreaker("stats.nba.com", cfg, log)
		c.brefBreaker = newBreaker("basketball-reference.com", cfg, log)
	}
	return c
}

func newBreaker(name string, cfg ClientConfig, log *logrus.Entry) *gobreaker.CircuitBreaker {
	threshold := uint32(cfg.BreakerThreshold)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"breaker":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Warn("breaker state changed")
		},
	})
}

// FetchPlayerAverages pulls season-to-date per-game averages for every player.
func (c *Client) FetchPlayerAverages(ctx context.Context, season, seasonType string) (*Table, error) {
	if seasonType == "" {
		seasonType = RegularSeason
	}
	u := c.statsURL + "?" + statsQuery(season, seasonType).Encode()
	return c.guard(c.statsBreaker, func() (*Table, error) {
		body, attempts, err := c.getWithRetry(ctx, u, statsHeaders)
		if err != nil {
			return nil, err
		}
		t, err := decodeStats(body)
		if err != nil {
			return nil, &FetchError{Attempts: attempts, Err: err}
		}
		return t, nil
	})
}

func (c *Client) guard(cb *gobreaker.CircuitBreaker, fn func() (*Table, error)) (*Table, error) {
	if cb == nil {
		return fn()
	}
	out, err := cb.Execute(func() (interface{}, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &FetchError{Attempts: 0, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return out.(*Table), nil
}

// Parameters the endpoint insists on, even when they are empty.
func statsQuery(season, seasonType string) url.Values {
	q := url.Values{}
	for _, k := range []string{
		"College", "Conference", "Country", "DateFrom", "DateTo", "Division",
		"DraftPick", "DraftYear", "GameScope", "GameSegment", "Height", "Location",
		"Outcome", "PlayerExperience", "PlayerPosition", "SeasonSegment",
		"ShotClockRange", "StarterBench", "VsConference", "VsDivision", "Weight",
	} {
		q.Set(k, "")
	}
	for _, k := range []string{"LastNGames", "Month", "OpponentTeamID", "PORound", "Period", "TeamID", "TwoWay"} {
		q.Set(k, "0")
	}
	q.Set("LeagueID", "00")
	q.Set("MeasureType", "Base")
	q.Set("PerMode", "PerGame")
	q.Set("PaceAdjust", "N")
	q.Set("PlusMinus", "N")
	q.Set("Rank", "N")
	q.Set("Season", season)
	q.Set("SeasonType", seasonType)
	return q
}

// getWithRetry GETs url until success, a non-retryable failure, or the attempt
// ceiling. It returns the body and the number of attempts made.
func (c *Client) getWithRetry(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	maxAttempts := c.retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempt - 1, &FetchError{Attempts: attempt - 1, Err: err}
		}
		body, err := c.getOnce(ctx, url, headers)
		if err == nil {
			if attempt > 1 {
				c.log.WithField("attempt", attempt).Info("fetch succeeded after retry")
			}
			return body, attempt, nil
		}
		lastErr = err
		if !c.retry.retryable(ctx, err) {
			return nil, attempt, &FetchError{Attempts: attempt, Err: err}
		}
		if attempt == maxAttempts {
			break
		}
		wait := c.retry.wait(attempt, err)
		c.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"wait":         wait.String(),
			"error":        err.Error(),
		}).Warn("transient fetch failure, backing off")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, attempt, &FetchError{Attempts: attempt, Err: err}
		}
	}
	return nil, maxAttempts, &FetchError{Attempts: maxAttempts, Err: lastErr}
}

func (c *Client) getOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Body:       string(bytes.TrimSpace(b)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}
	return b, nil
}

type resultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

type statsPayload struct {
	ResultSets []resultSet `json:"resultSets"`
	ResultSet  *resultSet  `json:"resultSet"`
}

func decodeStats(body []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p statsPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrMalformedPayload, err)
	}
	sets := p.ResultSets
	if len(sets) == 0 && p.ResultSet != nil {
		sets = []resultSet{*p.ResultSet}
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: no result sets", ErrMalformedPayload)
	}
	rs := sets[0]
	for _, s := range sets {
		if s.Name == playerStatsResultSet {
			rs = s
			break
		}
	}
	if len(rs.Headers) == 0 {
		return nil, fmt.Errorf("%w: result set %q has no headers", ErrMalformedPayload, rs.Name)
	}
	for i, row := range rs.RowSet {
		if len(row) != len(rs.Headers) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d headers", ErrMalformedPayload, i, len(row), len(rs.Headers))
		}
	}
	rows := rs.RowSet
	if rows == nil {
		rows = [][]any{}
	}
	return &Table{Columns: rs.Headers, Rows: rows}, nil
}
