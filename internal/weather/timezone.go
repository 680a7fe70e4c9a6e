package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weather-monitor/internal/storage"
)

const googleTimezoneURL = "https://maps.googleapis.com/maps/api/timezone/json"

// GoogleTimezone resolves UTC offsets with the Google Time Zone API.
type GoogleTimezone struct {
	apiKey  string
	baseURL string
	http    *requester
	now     func() time.Time
}

func NewGoogleTimezone(apiKey string, requestsPerSecond float64) *GoogleTimezone {
	return &GoogleTimezone{
		apiKey:  apiKey,
		baseURL: googleTimezoneURL,
		http:    newRequester("google timezone", requestsPerSecond),
		now:     time.Now,
	}
}

func (g *GoogleTimezone) SetBaseURL(u string) {
	g.baseURL = u
}

type googleTimezoneResponse struct {
	Status       string  `json:"status"`
	RawOffset    float64 `json:"rawOffset"`
	DstOffset    float64 `json:"dstOffset"`
	TimeZoneID   string  `json:"timeZoneId"`
	ErrorMessage string  `json:"errorMessage"`
}

// OffsetHours returns the standard offset of the point in whole hours.
// Daylight saving is ignored and fractional offsets are truncated.
func (g *GoogleTimezone) OffsetHours(ctx context.Context, lat, lon float64) (int, error) {
	if g.apiKey == "" {
		return 0, fmt.Errorf("google timezone: %w", ErrMissingAPIKey)
	}

	values := url.Values{}
	values.Set("location", fmt.Sprintf("%.2f,%.2f", lat, lon))
	values.Set("timestamp", strconv.FormatInt(g.now().Unix(), 10))
	values.Set("key", g.apiKey)

	var payload googleTimezoneResponse
	if err := g.http.getJSON(ctx, g.baseURL, values, &payload); err != nil {
		return 0, err
	}
	if payload.Status != "OK" {
		if payload.ErrorMessage != "" {
			return 0, fmt.Errorf("%w: %s: %s", ErrTimezoneStatus, payload.Status, payload.ErrorMessage)
		}
		return 0, fmt.Errorf("%w: %s", ErrTimezoneStatus, payload.Status)
	}
	return int(payload.RawOffset / 3600), nil
}

// NewTimezoneResolver picks the time zone service by name. An empty name
// selects Google when an api key is set and Open-Meteo otherwise.
func NewTimezoneResolver(provider, apiKey string, requestsPerSecond float64) (storage.TimezoneResolver, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "":
		if apiKey != "" {
			return NewGoogleTimezone(apiKey, requestsPerSecond), nil
		}
		return NewOpenMeteoTimezone(requestsPerSecond), nil
	case "google":
		return NewGoogleTimezone(apiKey, requestsPerSecond), nil
	case "openmeteo", "open-meteo":
		return NewOpenMeteoTimezone(requestsPerSecond), nil
	default:
		return nil, fmt.Errorf("timezone provider not supported: %s", provider)
	}
}
