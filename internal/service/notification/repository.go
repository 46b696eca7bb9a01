package notification

import (
	"context"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// InboxRepository stores the durable in-app notifications.
// Implementations must be safe for concurrent use.
type InboxRepository interface {
	// Insert stores n. It returns false without error when a row for
	// (n.EventID, n.UserID) already exists.
	Insert(ctx context.Context, n *domain.Notification) (bool, error)

	// List returns a user's notifications, newest first.
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, int, error)

	// MarkRead marks one notification read. Returns ErrNotFound if it does
	// not belong to userID. Marking twice keeps the first read time.
	MarkRead(ctx context.Context, userID, id string, at time.Time) error

	// MarkAllRead marks every unread notification of userID and returns how
	// many changed.
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)

	// UnreadCount returns the number of unread notifications of userID.
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// IdempotencyStore remembers delivered job keys.
type IdempotencyStore interface {
	Delivered(ctx context.Context, key string) (bool, error)
	MarkDelivered(ctx context.Context, key string) error
}

// RecipientResolver returns the delivery profile of a user.
type RecipientResolver interface {
	Recipient(ctx context.Context, userID string) (domain.Recipient, error)
}

// Transport delivers one event to one recipient over one channel. Errors of
// kind apperr.KindTransient are retried; anything else drops the job.
type Transport interface {
	Send(ctx context.Context, r domain.Recipient, ev domain.Event) error
}

// Queue accepts jobs for asynchronous delivery. Enqueue must not block on
// delivery.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}
