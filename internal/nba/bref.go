package nba

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tyler180/nba-stats-backends/internal/season"
)

var brefHeaders = map[string]string{
	"User-Agent":      statsHeaders["User-Agent"],
	"Referer":         "https://www.basketball-reference.com/",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// basketball-reference data-stat names (current and older layouts) mapped
// onto the stats.nba.com column names.
var brefColumns = []struct {
	col   string
	stats []string
	text  bool
}{
	{"PLAYER_NAME", []string{"name_display", "player"}, true},
	{"TEAM_ABBREVIATION", []string{"team_name_abbr", "team_id"}, true},
	{"GP", []string{"games", "g"}, false},
	{"MIN", []string{"mp_per_g"}, false},
	{"FGM", []string{"fg_per_g"}, false},
	{"FGA", []string{"fga_per_g"}, false},
	{"FG_PCT", []string{"fg_pct"}, false},
	{"FG3_PCT", []string{"fg3_pct"}, false},
	{"FTM", []string{"ft_per_g"}, false},
	{"FTA", []string{"fta_per_g"}, false},
	{"FT_PCT", []string{"ft_pct"}, false},
	{"REB", []string{"trb_per_g"}, false},
	{"AST", []string{"ast_per_g"}, false},
	{"STL", []string{"stl_per_g"}, false},
	{"BLK", []string{"blk_per_g"}, false},
	{"TOV", []string{"tov_per_g"}, false},
	{"PF", []string{"pf_per_g"}, false},
	{"PTS", []string{"pts_per_g"}, false},
}

var reSpace = regexp.MustCompile(`\s+`)

// FetchBrefPerGame reads the per-game table from basketball-reference. The
// PLAYER_ID column carries the site's player slug, not the NBA numeric id.
func (c *Client) FetchBrefPerGame(ctx context.Context, label, seasonType string) (*Table, error) {
	_, end, err := season.Parse(label)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	var u string
	switch seasonType {
	case "", RegularSeason:
		u = fmt.Sprintf("%s/leagues/NBA_%d_per_game.html", c.brefURL, end)
	case "Playoffs":
		u = fmt.Sprintf("%s/playoffs/NBA_%d_per_game.html", c.brefURL, end)
	default:
		return nil, &FetchError{Err: fmt.Errorf("season type %q not published by basketball-reference", seasonType)}
	}
	return c.guard(c.brefBreaker, func() (*Table, error) {
		body, attempts, err := c.getWithRetry(ctx, u, brefHeaders)
		if err != nil {
			return nil, err
		}
		t, err := parseBrefPerGame(string(body))
		if err != nil {
			return nil, &FetchError{Attempts: attempts, Err: err}
		}
		return t, nil
	})
}

func parseBrefPerGame(html string) (*Table, error) {
	// Secondary tables are shipped inside HTML comments.
	clean := strings.ReplaceAll(html, "<!--", "")
	clean = strings.ReplaceAll(clean, "-->", "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrMalformedPayload, err)
	}
	table := doc.Find("table#per_game_stats").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: per_game_stats table not found", ErrMalformedPayload)
	}

	present := map[string]bool{}
	table.Find("thead tr").Last().Find("th,td").Each(func(_ int, th *goquery.Selection) {
		if s, ok := th.Attr("data-stat"); ok {
			present[s] = true
		}
	})

	type binding struct {
		col  string
		stat string
		text bool
	}
	var binds []binding
	for _, bc := range brefColumns {
		for _, s := range bc.stats {
			if present[s] {
				binds = append(binds, binding{bc.col, s, bc.text})
				break
			}
		}
	}
	if len(binds) == 0 {
		return nil, fmt.Errorf("%w: per_game_stats has no recognised columns", ErrMalformedPayload)
	}

	out := &Table{Columns: []string{"PLAYER_ID"}, Rows: [][]any{}}
	for _, b := range binds {
		out.Columns = append(out.Columns, b.col)
	}

	seen := map[string]struct{}{}
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if strings.Contains(tr.AttrOr("class", ""), "thead") {
			return
		}
		id := strings.TrimSpace(tr.Find(`[data-stat="name_display"],[data-stat="player"]`).First().AttrOr("data-append-csv", ""))
		if id == "" {
			return
		}
		// Traded players list the season total first, then one row per team.
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		row := make([]any, 0, len(out.Columns))
		row = append(row, id)
		for _, b := range binds {
			txt := strings.TrimSpace(tr.Find(fmt.Sprintf(`[data-stat=%q]`, b.stat)).First().Text())
			switch {
			case b.text && b.col == "PLAYER_NAME":
				row = append(row, cleanPlayer(txt))
			case b.text:
				row = append(row, txt)
			case txt == "":
				row = append(row, nil)
			default:
				f, err := strconv.ParseFloat(txt, 64)
				if err != nil {
					row = append(row, nil)
					continue
				}
				row = append(row, f)
			}
		}
		out.Rows = append(out.Rows, row)
	})
	return out, nil
}

func cleanPlayer(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "*+")
	return reSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}
