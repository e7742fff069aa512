package display

import (
	"fmt"
	"time"
)

// ClockConfig describes the second time zone shown under the date.
type ClockConfig struct {
	ZoneOffset time.Duration
	ZoneLabel  string
}

func DefaultClockConfig() ClockConfig {
	return ClockConfig{ZoneOffset: 3 * time.Hour, ZoneLabel: "BH"}
}

func hour12(h int) int {
	h %= 12
	if h == 0 {
		return 12
	}
	return h
}

// FormatTime renders t as a space padded 12-hour clock, e.g. " 9:05".
func FormatTime(t time.Time) string {
	return fmt.Sprintf("%2d:%02d", hour12(t.Hour()), t.Minute())
}

func AMPM(t time.Time) string {
	if t.Hour() < 12 {
		return "AM"
	}
	return "PM"
}

// FormatDate renders e.g. "Tue, Mar 04".
func FormatDate(t time.Time) string {
	return t.Format("Mon, Jan 02")
}

// FormatZoneHour renders the hour in the zone offset from UTC, e.g. " 3 PM".
func FormatZoneHour(t time.Time, offset time.Duration) string {
	z := t.UTC().Add(offset)
	return fmt.Sprintf("%2d %s", hour12(z.Hour()), AMPM(z))
}

// FormatBattery renders a charge percentage as tenths: ".7" for 70-79, "1.0" when full.
func FormatBattery(percent int) string {
	switch {
	case percent >= 100:
		return "1.0"
	case percent < 0:
		percent = 0
	}
	return fmt.Sprintf(".%d", percent/10)
}
