package domain

import (
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a MatchingRequest.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestActive    RequestStatus = "active"
	RequestAccepted  RequestStatus = "accepted"
	RequestExpired   RequestStatus = "expired"
	RequestCancelled RequestStatus = "cancelled"
	RequestCompleted RequestStatus = "completed"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestActive, RequestAccepted, RequestExpired, RequestCancelled, RequestCompleted:
		return true
	}
	return false
}

// IsOpen reports whether the request still accepts responses, edits and
// extensions.
func (s RequestStatus) IsOpen() bool {
	return s == RequestPending || s == RequestActive
}

// IsReserved reports whether a response has won the request.
func (s RequestStatus) IsReserved() bool {
	return s == RequestAccepted || s == RequestCompleted
}

// IsTerminal reports whether no further transition can leave s.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestExpired || s == RequestCancelled || s == RequestCompleted
}

var transitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestActive, RequestAccepted, RequestExpired, RequestCancelled},
	RequestActive:   {RequestAccepted, RequestExpired, RequestCancelled},
	RequestAccepted: {RequestCompleted},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to RequestStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OpenStatuses lists the statuses in which a request accepts responses.
var OpenStatuses = []RequestStatus{RequestPending, RequestActive}

// ExpiryPolicy is the lifetime of a request in days.
type ExpiryPolicy int

const (
	Expiry7Days  ExpiryPolicy = 7
	Expiry14Days ExpiryPolicy = 14
	Expiry30Days ExpiryPolicy = 30
)

// Valid reports whether p is one of the offered policies.
func (p ExpiryPolicy) Valid() bool {
	return p == Expiry7Days || p == Expiry14Days || p == Expiry30Days
}

// Duration returns the policy as a time.Duration.
func (p ExpiryPolicy) Duration() time.Duration {
	return time.Duration(p) * 24 * time.Hour
}

// MatchingRequest is a supplier's posted need and the aggregate root of the
// matching workflow.
type MatchingRequest struct {
	ID                   string        `json:"id" db:"id"`
	SupplierID           string        `json:"supplier_id" db:"supplier_id"`
	ProductName          string        `json:"product_name" db:"product_name"`
	Quantity             float64       `json:"quantity" db:"quantity"`
	Unit                 string        `json:"unit" db:"unit"`
	DestinationCountries []string      `json:"destination_countries" db:"destination_countries"`
	Price                string        `json:"price" db:"price"`
	Currency             string        `json:"currency" db:"currency"`
	PaymentTerms         string        `json:"payment_terms" db:"payment_terms"`
	DeliveryWindow       string        `json:"delivery_window,omitempty" db:"delivery_window"`
	Description          string        `json:"description,omitempty" db:"description"`
	ExpiryPolicy         ExpiryPolicy  `json:"expiry_policy" db:"expiry_policy"`
	Status               RequestStatus `json:"status" db:"status"`
	AcceptedResponseID   *string       `json:"accepted_response_id" db:"accepted_response_id"`
	AcceptedVisitorID    *string       `json:"accepted_visitor_id" db:"accepted_visitor_id"`
	AcceptedAt           *time.Time    `json:"accepted_at,omitempty" db:"accepted_at"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	MatchedVisitorCount  int           `json:"matched_visitor_count" db:"matched_visitor_count"`
	Version              int64         `json:"version" db:"version"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at" db:"expires_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

// IsExpiredAt reports whether an open request has passed its expiry.
func (r *MatchingRequest) IsExpiredAt(now time.Time) bool {
	return r.Status.IsOpen() && !r.ExpiresAt.After(now)
}

// RemainingAt returns the time left before expiry, zero once passed.
func (r *MatchingRequest) RemainingAt(now time.Time) time.Duration {
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsParticipant reports whether actorID is the supplier or the accepted visitor.
func (r *MatchingRequest) IsParticipant(actorID string) bool {
	if actorID == "" {
		return false
	}
	if r.SupplierID == actorID {
		return true
	}
	return r.AcceptedVisitorID != nil && *r.AcceptedVisitorID == actorID
}

// Counterpart returns the other participant of a reserved request.
func (r *MatchingRequest) Counterpart(actorID string) (string, ActorRole, bool) {
	if r.AcceptedVisitorID == nil {
		return "", "", false
	}
	switch actorID {
	case r.SupplierID:
		return *r.AcceptedVisitorID, RoleVisitor, true
	case *r.AcceptedVisitorID:
		return r.SupplierID, RoleSupplier, true
	}
	return "", "", false
}

// NormalizeCountries upper-cases, trims and de-duplicates country codes,
// preserving first-seen order.
func NormalizeCountries(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ResponseAction is a visitor's reply to a request.
type ResponseAction string

const (
	ActionAccept   ResponseAction = "accept"
	ActionReject   ResponseAction = "reject"
	ActionQuestion ResponseAction = "question"
)

// Valid reports whether a is a known action.
func (a ResponseAction) Valid() bool {
	return a == ActionAccept || a == ActionReject || a == ActionQuestion
}

// MatchingResponse is an offer/answer from a visitor.
type MatchingResponse struct {
	ID        string         `json:"id" db:"id"`
	RequestID string         `json:"request_id" db:"request_id"`
	VisitorID string         `json:"visitor_id" db:"visitor_id"`
	Action    ResponseAction `json:"action" db:"action"`
	Message   string         `json:"message,omitempty" db:"message"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
