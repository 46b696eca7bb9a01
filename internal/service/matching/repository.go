package matching

import (
	"context"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// Repository defines the data access contract for matching requests and
// their responses. Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new request.
	Create(ctx context.Context, r *domain.MatchingRequest) error

	// Get returns a single request. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.MatchingRequest, error)

	// Update writes every mutable column if the stored version equals
	// r.Version, then increments r.Version. Returns ErrStale otherwise.
	Update(ctx context.Context, r *domain.MatchingRequest) error

	// Accept atomically records resp as the winning accept. It succeeds only
	// while the request is pending/active with no accepted response, and
	// returns the updated request. Returns ErrAlreadyReserved on a lost
	// compare-and-set.
	Accept(ctx context.Context, resp *domain.MatchingResponse) (*domain.MatchingRequest, error)

	// AddResponse records a reject or question.
	AddResponse(ctx context.Context, resp *domain.MatchingResponse) error

	// Responses returns every response to a request ordered by created_at.
	Responses(ctx context.Context, requestID string) ([]domain.MatchingResponse, error)

	// ListBySupplier returns the supplier's requests, newest first.
	ListBySupplier(ctx context.Context, supplierID string, f ListFilter) ([]domain.MatchingRequest, int, error)

	// ListOpen returns open, unexpired requests whose destinations overlap
	// countries, newest first.
	ListOpen(ctx context.Context, now time.Time, countries []string, f ListFilter) ([]domain.MatchingRequest, int, error)

	// ListExpiring returns open requests with expires_at <= now.
	ListExpiring(ctx context.Context, now time.Time, limit int) ([]domain.MatchingRequest, error)

	// RecordNotified adds visitors to the request's notified set and returns
	// the ones that were not already in it.
	RecordNotified(ctx context.Context, requestID string, visitorIDs []string, at time.Time) ([]string, error)
}

// VisitorDirectory is the read side of the visitor profiles.
type VisitorDirectory interface {
	// EligibleVisitors returns approved visitors whose destination countries
	// overlap countries.
	EligibleVisitors(ctx context.Context, countries []string) ([]domain.Visitor, error)

	// Visitor returns one visitor profile.
	Visitor(ctx context.Context, id string) (*domain.Visitor, error)
}

// ConversationOpener opens the chat of a reserved request. It must be
// idempotent.
type ConversationOpener interface {
	OpenConversation(ctx context.Context, req *domain.MatchingRequest) (*domain.Conversation, error)
}

// Notifier queues an event for asynchronous delivery. It never blocks on
// delivery and never fails the caller.
type Notifier interface {
	Dispatch(ctx context.Context, ev domain.Event, recipients []string, channels []domain.Channel)
}

// ListFilter controls pagination and filtering for request lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Normalize clamps the page size.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
