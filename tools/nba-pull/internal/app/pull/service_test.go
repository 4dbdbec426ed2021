package pull

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyler180/nba-stats-backends/internal/config"
	"github.com/tyler180/nba-stats-backends/internal/nba"
	"github.com/tyler180/nba-stats-backends/internal/snapshot"
	"github.com/tyler180/nba-stats-backends/internal/store"
)

type call struct{ source, season, seasonType string }

type fakeFetcher struct {
	table *nba.Table
	err   error
	calls []call
}

func (f *fakeFetcher) FetchPlayerAverages(_ context.Context, season, seasonType string) (*nba.Table, error) {
	f.calls = append(f.calls, call{"nba", season, seasonType})
	return f.table, f.err
}

func (f *fakeFetcher) FetchBrefPerGame(_ context.Context, label, seasonType string) (*nba.Table, error) {
	f.calls = append(f.calls, call{"bref", label, seasonType})
	return f.table, f.err
}

type fakeMirror struct {
	pairs []store.Paths
	err   error
}

func (m *fakeMirror) Mirror(_ context.Context, season string, p store.Paths) ([]string, error) {
	m.pairs = append(m.pairs, p)
	if m.err != nil {
		return nil, m.err
	}
	return []string{"season=" + season + "/" + filepath.Base(p.Dated), filepath.Base(p.Latest)}, nil
}

func statsTable() *nba.Table {
	return &nba.Table{
		Columns: []string{"PLAYER_ID", "PLAYER_NAME", "TEAM_ID", "AGE", "GP", "PTS", "REB"},
		Rows: [][]any{
			{json.Number("203999"), "Nikola Jokic", json.Number("1610612743"), json.Number("29"), json.Number("70"), json.Number("26.4"), json.Number("12.4")},
			{json.Number("1630178"), "Tyrese Maxey", json.Number("1610612755"), json.Number("24"), json.Number("52"), json.Number("25.9"), nil},
		},
	}
}

// 2025-01-15 12:00 in New York
var fixedNow = time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, f Fetcher) (*Service, string) {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "out")
	cfg.OutputDir = dir

	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Service{
		Config:  cfg,
		Fetcher: f,
		Log:     l,
		Now:     func() time.Time { return fixedNow },
	}, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestRun_ResolvesSeasonAndWritesPair(t *testing.T) {
	ff := &fakeFetcher{table: statsTable()}
	svc, dir := newTestService(t, ff)

	res, err := svc.Run(context.Background(), config.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, []call{{"nba", "2024-25", "Regular Season"}}, ff.calls)
	assert.Equal(t, "2024-25", res.Season)
	assert.Equal(t, 2, res.Rows)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, filepath.Join(dir, "nba_player_avgs_2024-25_20250115.csv"), res.CSV.Dated)
	assert.Equal(t, filepath.Join(dir, "nba_player_avgs_latest.csv"), res.CSV.Latest)
	assert.Nil(t, res.Parquet)

	recs := readCSV(t, res.CSV.Dated)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"AS_OF", "SEASON", "PLAYER_ID", "PLAYER_NAME", "TEAM_ID", "GP", "PTS", "REB"}, recs[0])
	assert.Equal(t, []string{"2025-01-15 12:00:00", "2024-25", "203999", "Nikola Jokic", "1610612743", "70", "26.4", "12.4"}, recs[1])
	assert.Equal(t, "", recs[2][7])
	assert.Equal(t, recs, readCSV(t, res.CSV.Latest))
}

func TestRun_OverridesApplyToOneRun(t *testing.T) {
	ff := &fakeFetcher{table: statsTable()}
	svc, _ := newTestService(t, ff)
	other := t.TempDir()

	res, err := svc.Run(context.Background(), config.Overrides{
		Season:     "2022-23",
		SeasonType: "Playoffs",
		Source:     "bref",
		OutputDir:  other,
	})
	require.NoError(t, err)
	assert.Equal(t, []call{{"bref", "2022-23", "Playoffs"}}, ff.calls)
	assert.Equal(t, filepath.Join(other, "nba_player_avgs_2022-23_20250115.csv"), res.CSV.Dated)

	_, err = svc.Run(context.Background(), config.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, call{"nba", "2024-25", "Regular Season"}, ff.calls[1])
}

func TestRun_FetchFailureWritesNothing(t *testing.T) {
	ferr := &nba.FetchError{Attempts: 5, Err: &nba.StatusError{StatusCode: 503}}
	svc, dir := newTestService(t, &fakeFetcher{err: ferr})

	_, err := svc.Run(context.Background(), config.Overrides{})
	var fe *nba.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 5, fe.Attempts)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_SchemaMismatch(t *testing.T) {
	alien := &nba.Table{Columns: []string{"FOO"}, Rows: [][]any{{"x"}}}

	t.Run("strict", func(t *testing.T) {
		svc, dir := newTestService(t, &fakeFetcher{table: alien})
		_, err := svc.Run(context.Background(), config.Overrides{})
		var sm *snapshot.SchemaMismatchError
		require.True(t, errors.As(err, &sm))
		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("degrade", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeFetcher{table: alien})
		svc.Config.StrictSchema = false
		res, err := svc.Run(context.Background(), config.Overrides{})
		require.NoError(t, err)
		recs := readCSV(t, res.CSV.Latest)
		assert.Equal(t, []string{"AS_OF", "SEASON"}, recs[0])
		assert.Len(t, recs, 2)
	})
}

func TestRun_ParquetAndMirror(t *testing.T) {
	svc, _ := newTestService(t, &fakeFetcher{table: statsTable()})
	m := &fakeMirror{}
	svc.Mirror = m
	on := true

	res, err := svc.Run(context.Background(), config.Overrides{WriteParquet: &on})
	require.NoError(t, err)
	require.NotNil(t, res.Parquet)
	assert.FileExists(t, res.Parquet.Dated)
	assert.FileExists(t, res.Parquet.Latest)

	require.Len(t, m.pairs, 2)
	assert.Equal(t, res.CSV, m.pairs[0])
	assert.Equal(t, *res.Parquet, m.pairs[1])
	assert.Contains(t, res.S3Keys, "season=2024-25/nba_player_avgs_2024-25_20250115.parquet")
	assert.Len(t, res.S3Keys, 4)
}

func TestRun_MirrorFailureKeepsLocalFiles(t *testing.T) {
	svc, _ := newTestService(t, &fakeFetcher{table: statsTable()})
	svc.Mirror = &fakeMirror{err: errors.New("no bucket")}

	res, err := svc.Run(context.Background(), config.Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bucket")
	assert.FileExists(t, res.CSV.Dated)
}

func TestHandle_Event(t *testing.T) {
	ff := &fakeFetcher{table: statsTable()}
	svc, _ := newTestService(t, ff)
	out := t.TempDir()

	raw, err := json.Marshal(map[string]any{"season": "2023-24", "output_dir": out})
	require.NoError(t, err)
	res, err := svc.Handle(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "2023-24", res.Season)
	assert.Equal(t, out, filepath.Dir(res.CSV.Latest))

	_, err = svc.Handle(context.Background(), Raw(`{"season": 2024}`))
	assert.Error(t, err)

	res, err = svc.Handle(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-25", res.Season)
}
