package notification

import (
	"context"
	"strings"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
)

// Inbox is the server-owned, per-user notification list with explicit read
// state.
type Inbox struct {
	repo  InboxRepository
	clock clock.Clock
}

// NewInbox creates an inbox over repo.
func NewInbox(repo InboxRepository, clk clock.Clock) *Inbox {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Inbox{repo: repo, clock: clk}
}

// InboxPage is one page of a user's notifications.
type InboxPage struct {
	Items       []domain.Notification `json:"items"`
	Total       int                   `json:"total"`
	UnreadCount int                   `json:"unread_count"`
}

// List returns a page of userID's notifications.
func (i *Inbox) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*InboxPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := i.repo.List(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := i.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return &InboxPage{Items: items, Total: total, UnreadCount: unread}, nil
}

// MarkRead marks one of userID's notifications read.
func (i *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("notification id is required")
	}
	return i.repo.MarkRead(ctx, userID, id, i.clock.Now())
}

// MarkAllRead marks all of userID's notifications read.
func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return i.repo.MarkAllRead(ctx, userID, i.clock.Now())
}

// UnreadCount returns the badge count of userID.
func (i *Inbox) UnreadCount(ctx context.Context, userID string) (int, error) {
	return i.repo.UnreadCount(ctx, userID)
}

// InAppTransport delivers by writing inbox rows. Re-delivery of the same
// event to the same user is a no-op.
type InAppTransport struct {
	repo  InboxRepository
	clock clock.Clock
}

// NewInAppTransport creates the in-app channel.
func NewInAppTransport(repo InboxRepository, clk clock.Clock) *InAppTransport {
	if clk == nil {
		clk = clock.Real{}
	}
	return &InAppTransport{repo: repo, clock: clk}
}

func (t *InAppTransport) Send(ctx context.Context, r domain.Recipient, ev domain.Event) error {
	n := &domain.Notification{
		ID:        domain.EventID("inbox", ev.ID, r.UserID),
		UserID:    r.UserID,
		EventID:   ev.ID,
		EventType: ev.Type,
		RequestID: ev.RequestID,
		Title:     ev.Title,
		Body:      ev.Body,
		ActionURL: ev.ActionURL,
		CreatedAt: t.clock.Now(),
	}
	if _, err := t.repo.Insert(ctx, n); err != nil {
		return apperr.Transient("write inbox notification", err)
	}
	return nil
}
