package weather

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoTimezone resolves UTC offsets through Open-Meteo, which needs no
// api key. The offset reported is the current one, so it includes daylight
// saving when in effect.
type OpenMeteoTimezone struct {
	baseURL string
	http    *requester
}

func NewOpenMeteoTimezone(requestsPerSecond float64) *OpenMeteoTimezone {
	return &OpenMeteoTimezone{
		baseURL: openMeteoURL,
		http:    newRequester("open-meteo", requestsPerSecond),
	}
}

func (c *OpenMeteoTimezone) SetBaseURL(u string) {
	c.baseURL = u
}

type openMeteoResponse struct {
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds float64 `json:"utc_offset_seconds"`
	Error            bool    `json:"error"`
	Reason           string  `json:"reason"`
}

func (c *OpenMeteoTimezone) OffsetHours(ctx context.Context, lat, lon float64) (int, error) {
	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.4f", lat))
	query.Set("longitude", fmt.Sprintf("%.4f", lon))
	query.Set("timezone", "auto")
	query.Set("forecast_days", "1")

	var payload openMeteoResponse
	if err := c.http.getJSON(ctx, c.baseURL, query, &payload); err != nil {
		return 0, err
	}
	if payload.Error || strings.TrimSpace(payload.Timezone) == "" {
		return 0, fmt.Errorf("%w: open-meteo: %s", ErrTimezoneStatus, payload.Reason)
	}
	return int(payload.UTCOffsetSeconds / 3600), nil
}
