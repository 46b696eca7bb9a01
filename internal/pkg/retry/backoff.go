// Package retry provides exponential backoff with full jitter and the
// classification of HTTP responses into retryable and terminal failures.
package retry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/aslmarket/aslmatch/internal/apperr"
)

// Policy describes how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// MinDelay floors the jittered delay to avoid busy-looping.
	MinDelay time.Duration
}

// DefaultPolicy is used when no configuration is supplied.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
	MinDelay:    100 * time.Millisecond,
}

// Delay returns the backoff duration before the given retry attempt (1-based).
// Uses exponential backoff with full jitter: random(0, min(MaxDelay, BaseDelay * 2^(attempt-1))).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	expDelay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && expDelay > float64(p.MaxDelay) {
		expDelay = float64(p.MaxDelay)
	}

	jittered := time.Duration(rand.Float64() * expDelay)
	if jittered < p.MinDelay {
		jittered = p.MinDelay
	}
	return jittered
}

// Exhausted reports whether attempt (1-based, counting the first try) has
// used up the budget.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// IsRetryableStatus returns true if the HTTP status code indicates a
// transient server error that should be retried.
// Retries: 429, 500, 502, 503, 504. Everything else is terminal.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// CheckResponse turns a gateway response into an error. 2xx is success,
// retryable statuses become Transient, other failures are Internal so the
// caller drops them. The body is drained and closed.
func CheckResponse(provider string, resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, string(body))
	if IsRetryableStatus(resp.StatusCode) {
		return apperr.Transient(provider+" unavailable", err)
	}
	return apperr.Wrap(apperr.KindInternal, provider+" rejected request", err)
}

// TransportError wraps a network failure. Context cancellation is terminal;
// anything else is assumed transient.
func TransportError(provider string, req *http.Request, err error) error {
	if req.Context().Err() != nil {
		return apperr.Wrap(apperr.KindInternal, provider+" request cancelled", err)
	}
	return apperr.Transient(provider+" unreachable", err)
}
