package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestDelayBounds(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second, MinDelay: 100 * time.Millisecond}
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, 100*time.Millisecond)
			assert.LessOrEqual(t, d, 4*time.Second)
		}
	}
}

func TestDelayFirstAttemptCappedByBase(t *testing.T) {
	p := Policy{BaseDelay: 200 * time.Millisecond, MaxDelay: time.Minute}
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, p.Delay(1), 200*time.Millisecond)
	}
}

func TestExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.False(t, Policy{}.Exhausted(100))
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsRetryableStatus(code), code)
	}
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader("body"))}
}

func TestCheckResponse(t *testing.T) {
	assert.NoError(t, CheckResponse("push", response(202)))

	err := CheckResponse("push", response(503))
	assert.True(t, apperr.IsTransient(err))

	err = CheckResponse("push", response(400))
	assert.Error(t, err)
	assert.False(t, apperr.IsTransient(err))
}

func TestTransportError(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://gateway", nil)
	assert.True(t, apperr.IsTransient(TransportError("sms", req, errors.New("connection refused"))))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req = req.WithContext(ctx)
	assert.False(t, apperr.IsTransient(TransportError("sms", req, context.Canceled)))
}
