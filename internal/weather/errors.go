package weather

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTimezoneStatus is returned when the time zone service answers with
	// a status other than "OK".
	ErrTimezoneStatus = errors.New("timezone lookup failed")

	ErrCircuitOpen   = errors.New("circuit breaker open")
	ErrMissingAPIKey = errors.New("api key is not configured")
)

// APIError is a non-2xx answer from an upstream service.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s bad status: %d %s", e.Service, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s bad status: %d %s: %s", e.Service, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
