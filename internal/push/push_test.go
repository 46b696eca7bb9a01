package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/domain"
)

func testEvent() domain.Event {
	return domain.Event{
		ID:         "ev-1",
		Type:       domain.EventRequestAccepted,
		RequestID:  "req-1",
		Title:      "Request accepted",
		Body:       "A visitor accepted your request",
		Data:       map[string]string{"response_id": "resp-1"},
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSendPostsMessage(t *testing.T) {
	var got message
	var auth, idem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		auth = r.Header.Get("Authorization")
		idem = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(config.GatewayConfig{BaseURL: srv.URL + "/", APIKey: "k", TimeoutSeconds: 2}, nil)
	err := c.Send(context.Background(), domain.Recipient{UserID: "sup-1", Role: domain.RoleSupplier}, testEvent())
	require.NoError(t, err)

	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "ev-1:sup-1", idem)
	assert.Equal(t, "sup-1", got.UserID)
	assert.Equal(t, "req-1", got.Data["request_id"])
	assert.Equal(t, "resp-1", got.Data["response_id"])
	assert.Equal(t, string(domain.EventRequestAccepted), got.Data["type"])
}

func TestSendClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperr.Kind
	}{
		{"unavailable is transient", http.StatusServiceUnavailable, apperr.KindTransient},
		{"throttled is transient", http.StatusTooManyRequests, apperr.KindTransient},
		{"bad request is permanent", http.StatusBadRequest, apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(config.GatewayConfig{BaseURL: srv.URL}, srv.Client())
			err := c.Send(context.Background(), domain.Recipient{UserID: "u"}, testEvent())
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestSendUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(config.GatewayConfig{BaseURL: url, TimeoutSeconds: 1}, nil)
	err := c.Send(context.Background(), domain.Recipient{UserID: "u"}, testEvent())
	assert.True(t, apperr.IsTransient(err))
}
