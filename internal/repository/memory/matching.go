package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/matching"
)

// RequestStore implements matching.Repository.
type RequestStore struct {
	mu        sync.Mutex
	requests  map[string]*domain.MatchingRequest
	responses map[string][]domain.MatchingResponse // keyed by request id
	notified  map[string]map[string]time.Time      // request id -> visitor id -> at
}

// NewRequestStore creates an empty store.
func NewRequestStore() *RequestStore {
	return &RequestStore{
		requests:  make(map[string]*domain.MatchingRequest),
		responses: make(map[string][]domain.MatchingResponse),
		notified:  make(map[string]map[string]time.Time),
	}
}

func copyRequest(r *domain.MatchingRequest) *domain.MatchingRequest {
	cp := *r
	cp.DestinationCountries = append([]string(nil), r.DestinationCountries...)
	if r.AcceptedResponseID != nil {
		v := *r.AcceptedResponseID
		cp.AcceptedResponseID = &v
	}
	if r.AcceptedVisitorID != nil {
		v := *r.AcceptedVisitorID
		cp.AcceptedVisitorID = &v
	}
	if r.AcceptedAt != nil {
		v := *r.AcceptedAt
		cp.AcceptedAt = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}

func (s *RequestStore) Create(_ context.Context, r *domain.MatchingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = copyRequest(r)
	return nil
}

func (s *RequestStore) Get(_ context.Context, id string) (*domain.MatchingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, matching.ErrNotFound
	}
	return copyRequest(r), nil
}

func (s *RequestStore) Update(_ context.Context, r *domain.MatchingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[r.ID]
	if !ok {
		return matching.ErrNotFound
	}
	if cur.Version != r.Version {
		return matching.ErrStale
	}
	r.Version++
	s.requests[r.ID] = copyRequest(r)
	return nil
}

func (s *RequestStore) Accept(_ context.Context, resp *domain.MatchingResponse) (*domain.MatchingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[resp.RequestID]
	if !ok {
		return nil, matching.ErrNotFound
	}
	if !cur.Status.IsOpen() || cur.AcceptedResponseID != nil {
		return nil, matching.ErrAlreadyReserved
	}

	respID, visitorID, at := resp.ID, resp.VisitorID, resp.CreatedAt
	cur.Status = domain.RequestAccepted
	cur.AcceptedResponseID = &respID
	cur.AcceptedVisitorID = &visitorID
	cur.AcceptedAt = &at
	cur.UpdatedAt = at
	cur.Version++
	s.responses[resp.RequestID] = append(s.responses[resp.RequestID], *resp)
	return copyRequest(cur), nil
}

func (s *RequestStore) AddResponse(_ context.Context, resp *domain.MatchingResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[resp.RequestID]; !ok {
		return matching.ErrNotFound
	}
	s.responses[resp.RequestID] = append(s.responses[resp.RequestID], *resp)
	return nil
}

func (s *RequestStore) Responses(_ context.Context, requestID string) ([]domain.MatchingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MatchingResponse(nil), s.responses[requestID]...), nil
}

func (s *RequestStore) ListBySupplier(_ context.Context, supplierID string, f matching.ListFilter) ([]domain.MatchingRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MatchingRequest
	for _, r := range s.requests {
		if r.SupplierID != supplierID {
			continue
		}
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		out = append(out, *copyRequest(r))
	}
	return page(newestFirst(out), f.Limit, f.Offset)
}

func (s *RequestStore) ListOpen(_ context.Context, now time.Time, countries []string, f matching.ListFilter) ([]domain.MatchingRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(countries))
	for _, c := range countries {
		want[c] = true
	}
	var out []domain.MatchingRequest
	for _, r := range s.requests {
		if !r.Status.IsOpen() || r.AcceptedResponseID != nil || !r.ExpiresAt.After(now) {
			continue
		}
		hit := false
		for _, c := range r.DestinationCountries {
			if want[c] {
				hit = true
				break
			}
		}
		if hit {
			out = append(out, *copyRequest(r))
		}
	}
	return page(newestFirst(out), f.Limit, f.Offset)
}

func (s *RequestStore) ListExpiring(_ context.Context, now time.Time, limit int) ([]domain.MatchingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MatchingRequest
	for _, r := range s.requests {
		if r.IsExpiredAt(now) {
			out = append(out, *copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *RequestStore) RecordNotified(_ context.Context, requestID string, visitorIDs []string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.notified[requestID]
	if !ok {
		set = make(map[string]time.Time)
		s.notified[requestID] = set
	}
	var fresh []string
	for _, id := range visitorIDs {
		if _, seen := set[id]; seen {
			continue
		}
		set[id] = at
		fresh = append(fresh, id)
	}
	return fresh, nil
}

// Notified returns the visitors notified for a request.
func (s *RequestStore) Notified(requestID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.notified[requestID]))
	for id := range s.notified[requestID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func newestFirst(in []domain.MatchingRequest) []domain.MatchingRequest {
	sort.Slice(in, func(i, j int) bool {
		if in[i].CreatedAt.Equal(in[j].CreatedAt) {
			return in[i].ID > in[j].ID
		}
		return in[i].CreatedAt.After(in[j].CreatedAt)
	})
	return in
}

func page[T any](in []T, limit, offset int) ([]T, int, error) {
	total := len(in)
	if offset >= total {
		return []T{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return in[offset:end], total, nil
}
