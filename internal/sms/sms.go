// Package sms sends notification texts through the SMS gateway. Only
// verified visitors receive SMS; the deliverer enforces that before calling
// Send.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
)

const (
	provider = "sms gateway"
	// maxTextRunes keeps a message within two concatenated segments.
	maxTextRunes = 300
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an SMS gateway client.
type Client struct {
	baseURL string
	apiKey  string
	sender  string
	http    HTTPDoer
}

// NewClient creates an SMS client. A nil doer gets an http.Client with the
// configured timeout.
func NewClient(cfg config.GatewayConfig, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout()}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		sender:  cfg.Sender,
		http:    doer,
	}
}

type sendRequest struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

// Text renders the SMS body of an event.
func Text(ev domain.Event) string {
	text := ev.Title
	if ev.Body != "" {
		text += ": " + ev.Body
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		r := []rune(text)
		text = string(r[:maxTextRunes-1]) + "…"
	}
	return text
}

// Send implements notification.Transport.
func (c *Client) Send(ctx context.Context, r domain.Recipient, ev domain.Event) error {
	if !r.CanReceiveSMS() {
		return apperr.Newf(apperr.KindValidation, "recipient %s cannot receive sms", r.UserID)
	}

	body, err := json.Marshal(sendRequest{
		To:        r.Phone,
		From:      c.sender,
		Text:      Text(ev),
		Reference: ev.ID + ":" + r.UserID,
	})
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return retry.TransportError(provider, req, err)
	}
	if err := retry.CheckResponse(provider, resp); err != nil {
		logger.Warn("sms rejected", "user_id", r.UserID, "phone", logger.RedactPhone(r.Phone), "error", err)
		return err
	}
	logger.Info("sms sent", "user_id", r.UserID, "phone", logger.RedactPhone(r.Phone), "event_id", ev.ID)
	return nil
}
