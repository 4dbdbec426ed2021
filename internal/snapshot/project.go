package snapshot

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tyler180/nba-stats-backends/internal/nba"
)

const (
	ColAsOf       = "AS_OF"
	ColSeason     = "SEASON"
	ColEfficiency = "EFF"

	TimestampLayout = "2006-01-02 15:04:05"
)

// DefaultColumns is the whitelist written to every snapshot.
var DefaultColumns = []string{
	"PLAYER_ID", "PLAYER_NAME", "TEAM_ID", "TEAM_ABBREVIATION", "GP",
	"MIN", "PTS", "REB", "AST", "STL", "BLK", "TOV", "PF",
	"FG_PCT", "FG3_PCT", "FT_PCT", "PLUS_MINUS",
}

// Options controls Project. AsOf is rendered in its own location, so callers
// pass it already converted to the reference zone.
type Options struct {
	Columns           []string
	IncludeTimestamp  bool
	IncludeSeason     bool
	IncludeEfficiency bool
	Strict            bool
	AsOf              time.Time
	Season            string
}

// SchemaMismatchError means none of the whitelisted columns came back.
type SchemaMismatchError struct {
	Want []string
	Have []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: none of [%s] in response columns [%s]",
		strings.Join(e.Want, ","), strings.Join(e.Have, ","))
}

// Project keeps the whitelisted columns the source actually has, in whitelist
// order, and prepends AS_OF and SEASON when asked. Row count is preserved.
// With Strict set, a whitelist that matches nothing is a SchemaMismatchError;
// otherwise the result simply has no data columns.
//
// IncludeEfficiency appends the derived EFF column, the one column Project
// adds that is neither in the source nor in the whitelist.
func Project(src *nba.Table, opts Options) (*nba.Table, error) {
	var keep []string
	var idx []int
	seen := map[string]bool{}
	for _, c := range opts.Columns {
		if seen[c] {
			continue
		}
		seen[c] = true
		if i := src.Index(c); i >= 0 {
			keep = append(keep, c)
			idx = append(idx, i)
		}
	}
	if len(keep) == 0 && len(opts.Columns) > 0 && opts.Strict {
		return nil, &SchemaMismatchError{Want: opts.Columns, Have: src.Columns}
	}

	var cols []string
	if opts.IncludeTimestamp {
		cols = append(cols, ColAsOf)
	}
	if opts.IncludeSeason {
		cols = append(cols, ColSeason)
	}
	cols = append(cols, keep...)
	if opts.IncludeEfficiency {
		cols = append(cols, ColEfficiency)
	}

	stamp := opts.AsOf.Format(TimestampLayout)
	out := &nba.Table{Columns: cols, Rows: make([][]any, 0, src.Len())}
	for r, in := range src.Rows {
		row := make([]any, 0, len(cols))
		if opts.IncludeTimestamp {
			row = append(row, stamp)
		}
		if opts.IncludeSeason {
			row = append(row, opts.Season)
		}
		for _, i := range idx {
			if i < len(in) {
				row = append(row, in[i])
			} else {
				row = append(row, nil)
			}
		}
		if opts.IncludeEfficiency {
			row = append(row, efficiency(src, r))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// efficiency is PTS+REB+AST+STL+BLK-(FGA-FGM)-(FTA-FTM)-TOV. Any missing
// input yields nil rather than a partial sum.
func efficiency(t *nba.Table, r int) any {
	get := func(col string) (float64, bool) { return nba.CellFloat(t.Cell(r, col)) }
	var v [10]float64
	for i, col := range []string{"PTS", "REB", "AST", "STL", "BLK", "FGA", "FGM", "FTA", "FTM", "TOV"} {
		f, ok := get(col)
		if !ok {
			return nil
		}
		v[i] = f
	}
	pts, reb, ast, stl, blk, fga, fgm, fta, ftm, tov := v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8], v[9]
	eff := pts + reb + ast + stl + blk - (fga - fgm) - (fta - ftm) - tov
	// Per-game inputs carry one decimal; keep the output from showing float noise.
	return math.Round(eff*100) / 100
}
