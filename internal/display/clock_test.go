package display

import (
	"testing"
	"time"

	"github.com/danmuck/watchsync/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
)

func TestClockFormatting(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		at   time.Time
		time string
		ampm string
		date string
		zone string
	}{
		{"morning", time.Date(2024, 3, 5, 9, 5, 0, 0, time.UTC), " 9:05", "AM", "Tue, Mar 05", "12 PM"},
		{"midnight", time.Date(2024, 12, 31, 0, 30, 0, 0, time.UTC), "12:30", "AM", "Tue, Dec 31", " 3 AM"},
		{"noon", time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC), "12:00", "PM", "Thu, Jul 04", " 3 PM"},
		{"late", time.Date(2024, 7, 4, 22, 59, 0, 0, time.UTC), "10:59", "PM", "Thu, Jul 04", " 1 AM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.time, FormatTime(tc.at))
			assert.Equal(t, tc.ampm, AMPM(tc.at))
			assert.Equal(t, tc.date, FormatDate(tc.at))
			assert.Equal(t, tc.zone, FormatZoneHour(tc.at, 3*time.Hour))
		})
	}
}

func TestZoneHourIgnoresLocalZone(t *testing.T) {
	testlog.Start(t)
	loc := time.FixedZone("X", -5*3600)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, loc) // 15:00 UTC
	assert.Equal(t, " 6 PM", FormatZoneHour(at, 3*time.Hour))
	assert.Equal(t, "10:00", FormatTime(at))
}

func TestFormatBattery(t *testing.T) {
	testlog.Start(t)
	assert.Equal(t, "1.0", FormatBattery(100))
	assert.Equal(t, ".9", FormatBattery(99))
	assert.Equal(t, ".7", FormatBattery(70))
	assert.Equal(t, ".0", FormatBattery(5))
	assert.Equal(t, ".0", FormatBattery(-3))
}
