package season

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadZone("")
	require.NoError(t, err)
	return loc
}

func TestResolve_Cutover(t *testing.T) {
	loc := eastern(t)
	cases := []struct {
		date string
		want string
	}{
		{"2025-09-15", "2024-25"},
		{"2025-10-15", "2025-26"},
		{"2025-01-02", "2024-25"},
		{"2025-12-31", "2025-26"},
		{"2099-10-01", "2099-00"},
	}
	for _, c := range cases {
		d, err := time.ParseInLocation("2006-01-02", c.date, loc)
		require.NoError(t, err)
		assert.Equal(t, c.want, Resolve(d, loc, time.October), c.date)
	}
}

func TestResolve_EveryMonth(t *testing.T) {
	loc := eastern(t)
	for m := time.January; m <= time.December; m++ {
		d := time.Date(2030, m, 10, 12, 0, 0, 0, loc)
		start, _, err := Parse(Resolve(d, loc, time.October))
		require.NoError(t, err)
		if m < time.October {
			assert.Equal(t, 2029, start, m.String())
		} else {
			assert.Equal(t, 2030, start, m.String())
		}
	}
}

func TestResolve_UsesReferenceZone(t *testing.T) {
	loc := eastern(t)
	// 02:30 UTC on Oct 1 is still Sep 30 in New York.
	utc := time.Date(2025, time.October, 1, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-25", Resolve(utc, loc, time.October))
	assert.Equal(t, "2025-26", Resolve(utc, time.UTC, time.October))
}

func TestResolve_InvalidMonthFallsBack(t *testing.T) {
	d := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-25", Resolve(d, time.UTC, 0))
	assert.Equal(t, "2025-26", Resolve(d, time.UTC, time.August))
}

func TestParse(t *testing.T) {
	start, end, err := Parse("2024-25")
	require.NoError(t, err)
	assert.Equal(t, 2024, start)
	assert.Equal(t, 2025, end)

	_, end, err = Parse("1999-00")
	require.NoError(t, err)
	assert.Equal(t, 2000, end)

	for _, bad := range []string{"", "2024", "2024-26", "24-25", "2024-2025", "abcd-ef"} {
		_, _, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
