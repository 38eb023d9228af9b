package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/stackup/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Now()

	tests := map[string]struct {
		t      time.Time
		expAgo string
	}{
		"Less than a second should be now":    {t: now, expAgo: "just now"},
		"Seconds should be pluralized":        {t: now.Add(-30 * time.Second), expAgo: "30 seconds ago"},
		"A single minute should be singular":  {t: now.Add(-61 * time.Second), expAgo: "1 minute ago"},
		"Hours should use the hour unit":      {t: now.Add(-5*time.Hour - time.Minute), expAgo: "5 hours ago"},
		"More than a day should use days":     {t: now.Add(-7*24*time.Hour - time.Minute), expAgo: "7 days ago"},
		"Future times should not be relative": {t: now.Add(5 * time.Minute), expAgo: "in the future"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expAgo, printer.TimeAgo(test.t))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[string]struct {
		t      time.Time
		expOut string
	}{
		"UTC timestamps should be formatted":    {t: time.Date(2026, 1, 30, 10, 15, 30, 0, time.UTC), expOut: "2026-01-30 10:15:30 UTC"},
		"Other timezones should convert to UTC": {t: time.Date(2026, 1, 30, 10, 15, 30, 0, time.FixedZone("EST", -5*3600)), expOut: "2026-01-30 15:15:30 UTC"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expOut, printer.FormatTimestamp(test.t))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[string]struct {
		duration time.Duration
		expected string
	}{
		"sub second duration":         {duration: 300 * time.Millisecond, expected: "0s"},
		"seconds are rounded":         {duration: 45*time.Second + 600*time.Millisecond, expected: "46s"},
		"minutes":                     {duration: 3*time.Minute + 12*time.Second, expected: "3m12s"},
		"negative durations are zero": {duration: -time.Minute, expected: "0s"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.FormatDuration(test.duration))
		})
	}
}
