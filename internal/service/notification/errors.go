package notification

import (
	"errors"

	"github.com/aslmarket/aslmatch/internal/apperr"
)

// Sentinel errors for the notification service layer.
var (
	ErrNotFound    = apperr.New(apperr.KindNotFound, "notification not found")
	ErrNoTransport = apperr.New(apperr.KindInternal, "no transport for channel")
	ErrQueueClosed = errors.New("notification queue is closed")
)
