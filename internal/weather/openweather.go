package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient searches locations and fetches five day forecasts from
// OpenWeatherMap. Temperatures are requested in kelvin.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	http    *requester
}

func NewOpenWeatherClient(apiKey string, requestsPerSecond float64) *OpenWeatherClient {
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: openWeatherBaseURL,
		http:    newRequester("openweather", requestsPerSecond),
	}
}

// SetBaseURL points the client at another host, such as a test server.
func (c *OpenWeatherClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// FindLocations runs a "like" search for query.
func (c *OpenWeatherClient) FindLocations(ctx context.Context, query string) (SearchPayload, error) {
	if c.apiKey == "" {
		return SearchPayload{}, fmt.Errorf("openweather: %w", ErrMissingAPIKey)
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("type", "like")
	values.Set("APPID", c.apiKey)

	var payload SearchPayload
	if err := c.http.getJSON(ctx, c.baseURL+"/find", values, &payload); err != nil {
		return SearchPayload{}, err
	}
	return payload, nil
}

// Forecast fetches the forecast of a city id. An unknown id is not an error:
// the payload comes back with its not-found status so Ingest can drop it.
func (c *OpenWeatherClient) Forecast(ctx context.Context, locationID int64) (ForecastPayload, error) {
	if c.apiKey == "" {
		return ForecastPayload{}, fmt.Errorf("openweather: %w", ErrMissingAPIKey)
	}

	values := url.Values{}
	values.Set("id", strconv.FormatInt(locationID, 10))
	values.Set("APPID", c.apiKey)

	var payload ForecastPayload
	if err := c.http.getJSON(ctx, c.baseURL+"/forecast", values, &payload, http.StatusNotFound); err != nil {
		return ForecastPayload{}, err
	}
	if payload.Cod.NotFound() && payload.City.ID == 0 {
		payload.City.ID = locationID
	}
	return payload, nil
}
