package pull

import (
	"context"
	"encoding/json"

	"github.com/tyler180/nba-stats-backends/internal/nba"
	"github.com/tyler180/nba-stats-backends/internal/store"
)

// Event is the Lambda payload. Every field is optional and applies to one
// invocation only.
type Event struct {
	Season       string `json:"season"`      // e.g. "2024-25"; resolved from the clock when empty
	SeasonType   string `json:"season_type"` // "Regular Season" | "Playoffs" | ...
	Source       string `json:"source"`      // nba | bref
	OutputDir    string `json:"output_dir"`
	WriteParquet *bool  `json:"write_parquet"`
}

// Raw keeps the Lambda edge decoupled from Event.
type Raw = json.RawMessage

// Result summarises one pull.
type Result struct {
	RunID   string       `json:"run_id"`
	Season  string       `json:"season"`
	Source  string       `json:"source"`
	Rows    int          `json:"rows"`
	CSV     store.Paths  `json:"csv"`
	Parquet *store.Paths `json:"parquet,omitempty"`
	S3Keys  []string     `json:"s3_keys,omitempty"`
}

// Fetcher is the provider side of a pull.
type Fetcher interface {
	FetchPlayerAverages(ctx context.Context, season, seasonType string) (*nba.Table, error)
	FetchBrefPerGame(ctx context.Context, label, seasonType string) (*nba.Table, error)
}

// Mirror copies a written pair somewhere durable.
type Mirror interface {
	Mirror(ctx context.Context, season string, p store.Paths) ([]string, error)
}
