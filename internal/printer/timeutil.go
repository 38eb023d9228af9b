package printer

import (
	"fmt"
	"time"
)

var agoUnits = []struct {
	name string
	size time.Duration
	max  time.Duration
}{
	{name: "second", size: time.Second, max: time.Minute},
	{name: "minute", size: time.Minute, max: time.Hour},
	{name: "hour", size: time.Hour, max: 24 * time.Hour},
}

// TimeAgo returns how long ago t happened, using the largest unit that fits.
// Examples: "just now", "2 minutes ago", "3 days ago".
func TimeAgo(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < 0:
		return "in the future"
	case diff < time.Second:
		return "just now"
	}

	for _, u := range agoUnits {
		if diff < u.max {
			return plural(int(diff/u.size), u.name) + " ago"
		}
	}

	return plural(int(diff/(24*time.Hour)), "day") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatTimestamp returns t in UTC as "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatDuration returns a duration rounded to seconds.
// Examples: "0s", "45s", "3m12s", "1h2m0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
