package nba

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brefPage = `<html><body>
<div id="all_per_game_stats">
<!--
<table id="per_game_stats">
  <thead><tr>
    <th data-stat="ranker">Rk</th>
    <th data-stat="name_display">Player</th>
    <th data-stat="team_name_abbr">Team</th>
    <th data-stat="games">G</th>
    <th data-stat="fg_pct">FG%</th>
    <th data-stat="pts_per_g">PTS</th>
  </tr></thead>
  <tbody>
    <tr>
      <th data-stat="ranker">1</th>
      <td data-stat="name_display" data-append-csv="doejo01"><a href="/players/d/doejo01.html">John Doe*</a></td>
      <td data-stat="team_name_abbr">2TM</td>
      <td data-stat="games">60</td>
      <td data-stat="fg_pct">.512</td>
      <td data-stat="pts_per_g">21.3</td>
    </tr>
    <tr>
      <th data-stat="ranker"></th>
      <td data-stat="name_display" data-append-csv="doejo01"><a>John Doe</a></td>
      <td data-stat="team_name_abbr">BOS</td>
      <td data-stat="games">30</td>
      <td data-stat="fg_pct">.500</td>
      <td data-stat="pts_per_g">20.0</td>
    </tr>
    <tr class="thead"><th>Rk</th><td>Player</td></tr>
    <tr>
      <th data-stat="ranker">2</th>
      <td data-stat="name_display" data-append-csv="smithbo01"><a>Bob  Smith</a></td>
      <td data-stat="team_name_abbr">NYK</td>
      <td data-stat="games">3</td>
      <td data-stat="fg_pct"></td>
      <td data-stat="pts_per_g">0.0</td>
    </tr>
  </tbody>
</table>
-->
</div>
</body></html>`

func TestParseBrefPerGame(t *testing.T) {
	tbl, err := parseBrefPerGame(brefPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"PLAYER_ID", "PLAYER_NAME", "TEAM_ABBREVIATION", "GP", "FG_PCT", "PTS"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())

	assert.Equal(t, "doejo01", tbl.Cell(0, "PLAYER_ID"))
	assert.Equal(t, "John Doe", tbl.Cell(0, "PLAYER_NAME"))
	assert.Equal(t, "2TM", tbl.Cell(0, "TEAM_ABBREVIATION"))
	assert.Equal(t, 0.512, tbl.Cell(0, "FG_PCT"))

	assert.Equal(t, "Bob Smith", tbl.Cell(1, "PLAYER_NAME"))
	assert.Nil(t, tbl.Cell(1, "FG_PCT"))
}

func TestParseBrefPerGame_MissingTable(t *testing.T) {
	_, err := parseBrefPerGame(`<html><table id="other"></table></html>`)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchBrefPerGame_URLAndSeasonTypes(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Contains(t, r.Header.Get("Referer"), "basketball-reference.com")
		_, _ = io.WriteString(w, brefPage)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, testRetry(2), 0)
	tbl, err := c.FetchBrefPerGame(context.Background(), "2024-25", "")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	_, err = c.FetchBrefPerGame(context.Background(), "2024-25", "Playoffs")
	require.NoError(t, err)
	assert.Equal(t, []string{"/leagues/NBA_2025_per_game.html", "/playoffs/NBA_2025_per_game.html"}, paths)

	_, err = c.FetchBrefPerGame(context.Background(), "2024-25", "Pre Season")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.Attempts)

	_, err = c.FetchBrefPerGame(context.Background(), "2024", "")
	require.ErrorAs(t, err, &fe)
}

func TestFetchBrefPerGame_SurvivesOpenStatsBreaker(t *testing.T) {
	var statsCalls, brefCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stats" {
			atomic.AddInt32(&statsCalls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		atomic.AddInt32(&brefCalls, 1)
		_, _ = io.WriteString(w, brefPage)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		StatsURL:         srv.URL + "/stats",
		BrefURL:          srv.URL,
		Retry:            testRetry(1),
		BreakerThreshold: 1,
		BreakerCooldown:  time.Hour,
	}, quietLog())

	_, err := c.FetchPlayerAverages(context.Background(), "2024-25", "")
	require.Error(t, err)
	_, err = c.FetchPlayerAverages(context.Background(), "2024-25", "")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 1, atomic.LoadInt32(&statsCalls))

	tbl, err := c.FetchBrefPerGame(context.Background(), "2024-25", "")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.EqualValues(t, 1, atomic.LoadInt32(&brefCalls))
}
