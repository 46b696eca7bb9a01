// Package push delivers notification events to the mobile push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
)

const provider = "push gateway"

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends push messages addressed by user id; the gateway owns device
// tokens.
type Client struct {
	baseURL string
	apiKey  string
	http    HTTPDoer
}

// NewClient creates a push client. A nil doer gets an http.Client with the
// configured timeout.
func NewClient(cfg config.GatewayConfig, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout()}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    doer,
	}
}

type message struct {
	UserID    string            `json:"user_id"`
	EventID   string            `json:"event_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	ActionURL string            `json:"action_url,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Send implements notification.Transport.
func (c *Client) Send(ctx context.Context, r domain.Recipient, ev domain.Event) error {
	data := make(map[string]string, len(ev.Data)+2)
	for k, v := range ev.Data {
		data[k] = v
	}
	data["type"] = string(ev.Type)
	data["request_id"] = ev.RequestID

	body, err := json.Marshal(message{
		UserID:    r.UserID,
		EventID:   ev.ID,
		Title:     ev.Title,
		Body:      ev.Body,
		ActionURL: ev.ActionURL,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// The gateway drops repeats of the same key.
	req.Header.Set("Idempotency-Key", ev.ID+":"+r.UserID)

	resp, err := c.http.Do(req)
	if err != nil {
		return retry.TransportError(provider, req, err)
	}
	if err := retry.CheckResponse(provider, resp); err != nil {
		return err
	}
	logger.Debug("push sent", "user_id", r.UserID, "event_id", ev.ID)
	return nil
}
