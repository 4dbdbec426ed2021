package snapshot

import (
	"github.com/tyler180/nba-stats-backends/internal/nba"
)

// PlayerStatRow is the typed form of one snapshot row. Pointer fields are nil
// when the column is absent or the provider sent null.
type PlayerStatRow struct {
	AsOf             *string  `parquet:"as_of,optional"`
	Season           *string  `parquet:"season,optional"`
	PlayerID         *int64   `parquet:"player_id,optional"`
	PlayerSlug       *string  `parquet:"player_slug,optional"` // non-numeric ids (basketball-reference)
	PlayerName       *string  `parquet:"player_name,optional"`
	TeamID           *int64   `parquet:"team_id,optional"`
	TeamAbbreviation *string  `parquet:"team_abbreviation,optional"`
	GP               *int64   `parquet:"gp,optional"`
	Min              *float64 `parquet:"min,optional"`
	Pts              *float64 `parquet:"pts,optional"`
	Reb              *float64 `parquet:"reb,optional"`
	Ast              *float64 `parquet:"ast,optional"`
	Stl              *float64 `parquet:"stl,optional"`
	Blk              *float64 `parquet:"blk,optional"`
	Tov              *float64 `parquet:"tov,optional"`
	PF               *float64 `parquet:"pf,optional"`
	FGPct            *float64 `parquet:"fg_pct,optional"`
	FG3Pct           *float64 `parquet:"fg3_pct,optional"`
	FTPct            *float64 `parquet:"ft_pct,optional"`
	PlusMinus        *float64 `parquet:"plus_minus,optional"`
	Eff              *float64 `parquet:"eff,optional"`
}

// Rows decodes a projected table by column name.
func Rows(t *nba.Table) []PlayerStatRow {
	str := func(r int, col string) *string {
		v := t.Cell(r, col)
		if v == nil {
			return nil
		}
		s := nba.FormatCell(v)
		return &s
	}
	num := func(r int, col string) *float64 {
		if f, ok := nba.CellFloat(t.Cell(r, col)); ok {
			return &f
		}
		return nil
	}
	integer := func(r int, col string) *int64 {
		if i, ok := nba.CellInt(t.Cell(r, col)); ok {
			return &i
		}
		return nil
	}

	out := make([]PlayerStatRow, 0, t.Len())
	for r := range t.Rows {
		id := integer(r, "PLAYER_ID")
		var slug *string
		if id == nil {
			slug = str(r, "PLAYER_ID")
		}
		out = append(out, PlayerStatRow{
			AsOf:             str(r, ColAsOf),
			Season:           str(r, ColSeason),
			PlayerID:         id,
			PlayerSlug:       slug,
			PlayerName:       str(r, "PLAYER_NAME"),
			TeamID:           integer(r, "TEAM_ID"),
			TeamAbbreviation: str(r, "TEAM_ABBREVIATION"),
			GP:               integer(r, "GP"),
			Min:              num(r, "MIN"),
			Pts:              num(r, "PTS"),
			Reb:              num(r, "REB"),
			Ast:              num(r, "AST"),
			Stl:              num(r, "STL"),
			Blk:              num(r, "BLK"),
			Tov:              num(r, "TOV"),
			PF:               num(r, "PF"),
			FGPct:            num(r, "FG_PCT"),
			FG3Pct:           num(r, "FG3_PCT"),
			FTPct:            num(r, "FT_PCT"),
			PlusMinus:        num(r, "PLUS_MINUS"),
			Eff:              num(r, ColEfficiency),
		})
	}
	return out
}
