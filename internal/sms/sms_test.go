package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/domain"
)

var verified = domain.Recipient{UserID: "v-1", Role: domain.RoleVisitor, Phone: "+971501234567", PhoneVerified: true}

func TestSendVerifiedVisitor(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.GatewayConfig{BaseURL: srv.URL, APIKey: "secret", Sender: "ASLMarket"}, srv.Client())
	ev := domain.Event{ID: "ev-1", Title: "New request", Body: "Saffron to Germany"}
	require.NoError(t, c.Send(context.Background(), verified, ev))

	assert.Equal(t, "+971501234567", got.To)
	assert.Equal(t, "ASLMarket", got.From)
	assert.Equal(t, "New request: Saffron to Germany", got.Text)
	assert.Equal(t, "ev-1:v-1", got.Reference)
}

func TestSendRefusesIneligible(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	c := NewClient(config.GatewayConfig{BaseURL: srv.URL}, srv.Client())

	for _, r := range []domain.Recipient{
		{UserID: "s-1", Role: domain.RoleSupplier, Phone: "+97150", PhoneVerified: true},
		{UserID: "v-2", Role: domain.RoleVisitor, Phone: "+97150", PhoneVerified: false},
		{UserID: "v-3", Role: domain.RoleVisitor, PhoneVerified: true},
	} {
		err := c.Send(context.Background(), r, domain.Event{ID: "ev"})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), r.UserID)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSendGatewayErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.GatewayConfig{BaseURL: srv.URL}, srv.Client())
	err := c.Send(context.Background(), verified, domain.Event{ID: "ev"})
	assert.True(t, apperr.IsTransient(err))
}

func TestTextTruncates(t *testing.T) {
	text := Text(domain.Event{Title: "T", Body: strings.Repeat("a", 500)})
	assert.Equal(t, maxTextRunes, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
}
