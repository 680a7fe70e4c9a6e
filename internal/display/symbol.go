// Package display turns stored forecasts into what a screen shows: a glyph
// from the weather symbol font and local-time labels.
package display

import (
	"log"
	"strconv"
	"strings"
	"time"
)

// Glyphs from the weather symbol font.
const (
	NightSymbol        = "o"
	NotAvailableSymbol = "l"
	ClearSymbol        = "f"
	CloudsSymbol       = "g"
)

// Condition code buckets, see https://openweathermap.org/weather-conditions.
// Single digits are group buckets; the rest are exact codes.
var symbols = map[int]string{
	2:   "a", // thunderstorm
	3:   "n", // drizzle
	5:   "b", // rain
	6:   "d", // snow
	7:   "m", // atmosphere
	800: ClearSymbol,
	8:   CloudsSymbol,
	900: "a", // tornado
	901: "a", // tropical storm
	902: "a", // hurricane
	903: "k", // cold
	904: "f", // hot
	905: "e", // windy
	906: "i", // hail
}

// Moment places a forecast time at a location.
type Moment struct {
	Unix        int64
	OffsetHours int
}

// Resolver picks glyphs for condition codes.
type Resolver struct {
	logger *log.Logger
}

func NewResolver(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the glyph for code. When at is given and falls outside
// daytime at the location, the night glyph wins regardless of code. Codes
// that match neither exactly nor by leading digit resolve to
// NotAvailableSymbol.
func (r *Resolver) Resolve(code string, at *Moment) string {
	if at != nil && IsNight(LocalHour(at.Unix, at.OffsetHours)) {
		return NightSymbol
	}

	code = strings.TrimSpace(code)
	if n, err := strconv.Atoi(code); err == nil {
		if s, ok := symbols[n]; ok {
			return s
		}
	}
	if code != "" && code[0] >= '0' && code[0] <= '9' {
		if s, ok := symbols[int(code[0]-'0')]; ok {
			return s
		}
	}

	r.logger.Printf("WARN: the weather symbol could not be found. Symbol: %q", code)
	return NotAvailableSymbol
}

// ResolveCode is Resolve for integer codes.
func (r *Resolver) ResolveCode(code int, at *Moment) string {
	return r.Resolve(strconv.Itoa(code), at)
}

// LocalHour is the hour of day at a location offsetHours from UTC.
func LocalHour(unix int64, offsetHours int) int {
	h := (time.Unix(unix, 0).UTC().Hour() + offsetHours) % 24
	if h < 0 {
		h += 24
	}
	return h
}

// IsNight reports whether hour lies outside the 06:00-20:00 daytime window.
// Both bounds count as night.
func IsNight(hour int) bool {
	return !(6 < hour && hour < 20)
}
