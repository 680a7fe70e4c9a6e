package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 20

// BackoffConfig controls how failed requests are retried.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var defaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// requester performs GET requests against one upstream service. Calls wait
// on a rate limiter, run through a circuit breaker and are retried with
// exponential backoff on transport errors, 429 and 5xx answers.
type requester struct {
	service string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	backoff BackoffConfig
}

func newRequester(service string, requestsPerSecond float64) *requester {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &requester{
		service: service,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        service,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		backoff: defaultBackoff,
	}
}

// getJSON decodes the answer of endpoint into out. Status codes listed in
// accept are decoded like a 2xx answer.
func (r *requester) getJSON(ctx context.Context, endpoint string, query url.Values, out any, accept ...int) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait canceled: %w", r.service, err)
	}

	u := endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		body, err := r.do(ctx, u, accept)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%s decode: %w", r.service, err)
			}
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: %v", ErrCircuitOpen, r.service, err)
		}
		if !retryable(ctx, err) || attempt >= r.backoff.MaxRetries {
			return err
		}

		delay := r.backoff.InitialInterval << attempt
		if r.backoff.MaxInterval > 0 && delay > r.backoff.MaxInterval {
			delay = r.backoff.MaxInterval
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *requester) do(ctx context.Context, u string, accept []int) ([]byte, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("%s request: %w", r.service, err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", r.service, redact(err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("%s read body: %w", r.service, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 || accepted(resp.StatusCode, accept) {
			return body, nil
		}
		return nil, &APIError{
			Service:    r.service,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func accepted(status int, accept []int) bool {
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// redact drops the request URL, which carries the api key, from transport
// errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
