package rating

import (
	"context"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// Repository defines the data access contract for ratings.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts r. Returns ErrDuplicate if (RequestID, RaterID) exists.
	Create(ctx context.Context, r *domain.Rating) error

	// ForRequest returns the ratings of a request, oldest first.
	ForRequest(ctx context.Context, requestID string) ([]domain.Rating, error)

	// ForUser returns ratings received by userID, newest first.
	ForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Rating, int, error)

	// Summary computes the unrounded average and count of ratings received by userID.
	Summary(ctx context.Context, userID string) (domain.RatingSummary, error)
}

// SummaryCache holds read-mostly rating summaries.
type SummaryCache interface {
	Get(ctx context.Context, userID string) (*domain.RatingSummary, bool, error)
	Set(ctx context.Context, s domain.RatingSummary) error
}

// RequestReader loads the rated request.
type RequestReader interface {
	Request(ctx context.Context, requestID string) (*domain.MatchingRequest, error)
}

// Notifier queues an event for asynchronous delivery.
type Notifier interface {
	Dispatch(ctx context.Context, ev domain.Event, recipients []string, channels []domain.Channel)
}
