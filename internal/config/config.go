package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tyler180/nba-stats-backends/internal/nba"
	"github.com/tyler180/nba-stats-backends/internal/season"
	"github.com/tyler180/nba-stats-backends/internal/snapshot"
)

const (
	SourceNBA  = "nba"
	SourceBref = "bref"
)

type Config struct {
	Season           string `mapstructure:"SEASON"`
	SeasonType       string `mapstructure:"SEASON_TYPE"`
	SeasonStartMonth int    `mapstructure:"SEASON_START_MONTH"`
	Timezone         string `mapstructure:"TIMEZONE"`
	Source           string `mapstructure:"SOURCE"`

	// Output
	OutputDir         string   `mapstructure:"OUTPUT_DIR"`
	Columns           []string `mapstructure:"-"`
	IncludeTimestamp  bool     `mapstructure:"INCLUDE_TIMESTAMP"`
	IncludeSeason     bool     `mapstructure:"INCLUDE_SEASON"`
	IncludeEfficiency bool     `mapstructure:"INCLUDE_EFFICIENCY"`
	StrictSchema      bool     `mapstructure:"STRICT_SCHEMA"`
	WriteParquet      bool     `mapstructure:"WRITE_PARQUET"`
	OutputBucket      string   `mapstructure:"OUTPUT_BUCKET"`
	OutputPrefix      string   `mapstructure:"OUTPUT_PREFIX"`

	// HTTP
	HTTPMaxAttempts    int   `mapstructure:"HTTP_MAX_ATTEMPTS"`
	HTTPRetryBaseMS    int   `mapstructure:"HTTP_RETRY_BASE_MS"`
	HTTPRetryMaxMS     int   `mapstructure:"HTTP_RETRY_MAX_MS"`
	HTTPTimeoutSeconds int   `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	HTTPRetryStatus    []int `mapstructure:"-"`
	HTTPMinIntervalMS  int   `mapstructure:"HTTP_MIN_INTERVAL_MS"`

	BreakerThreshold       int `mapstructure:"BREAKER_THRESHOLD"`
	BreakerCooldownSeconds int `mapstructure:"BREAKER_COOLDOWN_SECONDS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("SEASON", "")
	v.SetDefault("SEASON_TYPE", nba.RegularSeason)
	v.SetDefault("SEASON_START_MONTH", int(season.DefaultStartMonth))
	v.SetDefault("TIMEZONE", season.DefaultZone)
	v.SetDefault("SOURCE", SourceNBA)

	v.SetDefault("OUTPUT_DIR", "data")
	v.SetDefault("COLUMNS", strings.Join(snapshot.DefaultColumns, ","))
	v.SetDefault("INCLUDE_TIMESTAMP", true)
	v.SetDefault("INCLUDE_SEASON", true)
	v.SetDefault("INCLUDE_EFFICIENCY", false)
	v.SetDefault("STRICT_SCHEMA", true)
	v.SetDefault("WRITE_PARQUET", false)
	v.SetDefault("OUTPUT_BUCKET", "")
	v.SetDefault("OUTPUT_PREFIX", "nba_player_avgs")

	v.SetDefault("HTTP_MAX_ATTEMPTS", 5)
	v.SetDefault("HTTP_RETRY_BASE_MS", 2000)
	v.SetDefault("HTTP_RETRY_MAX_MS", 60000)
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 120)
	v.SetDefault("HTTP_RETRY_STATUS", "429,500,502,503,504")
	v.SetDefault("HTTP_MIN_INTERVAL_MS", 0)

	v.SetDefault("BREAKER_THRESHOLD", 3)
	v.SetDefault("BREAKER_COOLDOWN_SECONDS", 600)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads the environment over the built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.Columns = splitList(v.GetString("COLUMNS"))
	statuses, err := parseStatuses(v.GetString("HTTP_RETRY_STATUS"))
	if err != nil {
		return nil, err
	}
	cfg.HTTPRetryStatus = statuses

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceNBA, SourceBref:
	default:
		return fmt.Errorf("SOURCE %q: want %s or %s", c.Source, SourceNBA, SourceBref)
	}
	if c.SeasonStartMonth < 1 || c.SeasonStartMonth > 12 {
		return fmt.Errorf("SEASON_START_MONTH %d out of range", c.SeasonStartMonth)
	}
	if c.Season != "" {
		if _, _, err := season.Parse(c.Season); err != nil {
			return err
		}
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is empty")
	}
	if c.HTTPMaxAttempts < 1 {
		return fmt.Errorf("HTTP_MAX_ATTEMPTS must be >= 1, got %d", c.HTTPMaxAttempts)
	}
	if c.HTTPRetryBaseMS < 0 || c.HTTPRetryMaxMS < 0 {
		return fmt.Errorf("HTTP durations must not be negative")
	}
	if c.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be >= 1, got %d", c.HTTPTimeoutSeconds)
	}
	return nil
}

// Retry builds the fetch policy.
func (c *Config) Retry() nba.RetryConfig {
	return nba.RetryConfig{
		MaxAttempts:     c.HTTPMaxAttempts,
		BaseBackoff:     time.Duration(c.HTTPRetryBaseMS) * time.Millisecond,
		MaxBackoff:      time.Duration(c.HTTPRetryMaxMS) * time.Millisecond,
		Timeout:         time.Duration(c.HTTPTimeoutSeconds) * time.Second,
		RetryableStatus: append([]int(nil), c.HTTPRetryStatus...),
	}
}

func (c *Config) Client() nba.ClientConfig {
	return nba.ClientConfig{
		Retry:            c.Retry(),
		MinInterval:      time.Duration(c.HTTPMinIntervalMS) * time.Millisecond,
		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  time.Duration(c.BreakerCooldownSeconds) * time.Second,
	}
}

// Overrides are per-run settings from CLI flags or a Lambda event. Empty
// fields keep the loaded value.
type Overrides struct {
	Season       string
	SeasonType   string
	Source       string
	OutputDir    string
	WriteParquet *bool
}

// With returns a copy of c with o applied; c itself is not changed.
func (c Config) With(o Overrides) (*Config, error) {
	if o.Season != "" {
		c.Season = strings.TrimSpace(o.Season)
	}
	if o.SeasonType != "" {
		c.SeasonType = o.SeasonType
	}
	if o.Source != "" {
		c.Source = strings.ToLower(strings.TrimSpace(o.Source))
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.WriteParquet != nil {
		c.WriteParquet = *o.WriteParquet
	}
	c.Columns = append([]string(nil), c.Columns...)
	c.HTTPRetryStatus = append([]int(nil), c.HTTPRetryStatus...)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseStatuses(s string) ([]int, error) {
	var out []int
	for _, p := range splitList(s) {
		code, err := strconv.Atoi(p)
		if err != nil || code < 100 || code > 599 {
			return nil, fmt.Errorf("HTTP_RETRY_STATUS: bad status %q", p)
		}
		out = append(out, code)
	}
	return out, nil
}
