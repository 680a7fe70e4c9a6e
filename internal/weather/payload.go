package weather

import (
	"bytes"
	"strings"
)

// NotFoundCode is the status the forecast service reports for an unknown
// city id.
const NotFoundCode = "404"

// StatusCode is the "cod" field of a provider payload. The provider sends it
// as a number on some endpoints and as a string on others.
type StatusCode string

func (c *StatusCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	*c = StatusCode(strings.TrimSpace(strings.Trim(string(b), `"`)))
	return nil
}

// NotFound reports whether the payload carries the not-found status.
func (c StatusCode) NotFound() bool {
	return c == NotFoundCode
}

// ForecastPayload is the body of a forecast fetch.
type ForecastPayload struct {
	Cod     StatusCode `json:"cod"`
	Message any        `json:"message,omitempty"`
	City    struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []ForecastSample `json:"list"`
}

// ForecastSample is one three-hourly entry of a forecast fetch.
type ForecastSample struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Weather []Condition `json:"weather"`
}

// Condition is a weather condition of a sample. ID is the condition code.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

// SearchPayload is the body of a location search.
type SearchPayload struct {
	Cod   StatusCode     `json:"cod"`
	Count int            `json:"count"`
	List  []SearchResult `json:"list"`
}

type SearchResult struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}
