package display

import (
	"fmt"
	"time"
)

const kelvinOffset = 273.15

// LocalTime shifts unix to a fixed offset zone.
func LocalTime(unix int64, offsetHours int) time.Time {
	zone := time.FixedZone("", offsetHours*3600)
	return time.Unix(unix, 0).In(zone)
}

// DayLabel names the local calendar day of unix relative to now: "Today",
// "Tomorrow" or the weekday.
func DayLabel(unix int64, now time.Time, offsetHours int) string {
	t := LocalTime(unix, offsetHours)
	today := LocalTime(now.Unix(), offsetHours)

	y1, m1, d1 := t.Date()
	y2, m2, d2 := today.Date()
	day := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	ref := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)

	switch day.Sub(ref) {
	case 0:
		return "Today"
	case 24 * time.Hour:
		return "Tomorrow"
	}
	return t.Weekday().String()
}

// HourLabel formats the local hour as "15:00".
func HourLabel(unix int64, offsetHours int) string {
	return fmt.Sprintf("%d:00", LocalHour(unix, offsetHours))
}

func Celsius(kelvin float64) float64 {
	return kelvin - kelvinOffset
}

// Pascal converts hectopascal to pascal.
func Pascal(hpa int) int {
	return hpa * 100
}
