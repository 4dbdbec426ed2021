package season

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Lambda images ship without a zoneinfo database.
	_ "time/tzdata"
)

// DefaultZone is the league's scheduling zone. Season-year arithmetic is done
// here rather than in UTC so late-evening runs near the cutover land on the
// right side of it.
const DefaultZone = "America/New_York"

// DefaultStartMonth is the month a new season label takes effect.
const DefaultStartMonth = time.October

// LoadZone returns the named location, falling back to DefaultZone when name is blank.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", name, err)
	}
	return loc, nil
}

// Resolve returns the season label ("2025-26") in effect at now, evaluated in loc.
func Resolve(now time.Time, loc *time.Location, startMonth time.Month) string {
	if loc != nil {
		now = now.In(loc)
	}
	if startMonth < time.January || startMonth > time.December {
		startMonth = DefaultStartMonth
	}
	year := now.Year()
	if now.Month() < startMonth {
		year--
	}
	return Label(year)
}

// Label formats a season starting in startYear.
func Label(startYear int) string {
	return fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100)
}

// Parse validates a label and returns its start and end years.
func Parse(label string) (start, end int, err error) {
	label = strings.TrimSpace(label)
	parts := strings.Split(label, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("season %q: want YYYY-YY", label)
	}
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("season %q: %w", label, err)
	}
	suffix, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("season %q: %w", label, err)
	}
	end = start + 1
	if end%100 != suffix {
		return 0, 0, fmt.Errorf("season %q: end year does not follow %d", label, start)
	}
	return start, end, nil
}
