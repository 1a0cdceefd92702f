package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-extraction/internal/extraction"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// DefaultBackoff is used by providers unless overridden.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

const (
	maxBodyBytes  = 64 << 20
	maxRetryAfter = time.Minute
)

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError is a non-2xx response. Retryable statuses are 429 and 5xx.
type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status code %d", e.code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Client errors are the caller's fault and must not trip the breaker.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return !se.retryable()
			}
			return err == nil
		},
	})
}

// getWithResilience executes GET requests with retries, exponential backoff
// and a circuit breaker, returning the body of the first 2xx response.
// Failures are returned as extraction.ErrProvider errors.
func getWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	url string,
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &statusError{
					code:       resp.StatusCode,
					body:       truncate(string(body), 200),
					retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				}
			}
			if readErr != nil {
				return nil, readErr
			}
			return body, nil
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &extraction.Error{Kind: extraction.KindProvider, Detail: "circuit breaker open", Err: err}
		}

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, &extraction.Error{Kind: extraction.KindProvider, Err: err}
		}
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, &extraction.Error{
				Kind:   extraction.KindProvider,
				Detail: fmt.Sprintf("giving up after %d attempts", attempt+1),
				Err:    err,
			}
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}
		if se != nil && se.retryAfter > delay {
			delay = min(se.retryAfter, maxRetryAfter)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
