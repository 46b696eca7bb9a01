package matching

import (
	"context"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
)

// RequestView is a request as seen by one actor.
type RequestView struct {
	*domain.MatchingRequest
	Responses        []domain.MatchingResponse `json:"responses"`
	RemainingSeconds int64                     `json:"remaining_seconds"`
}

// Get returns a request with the responses the viewer may see: the owner
// and admins see all of them, a visitor only their own. Other suppliers are
// refused.
func (s *Service) Get(ctx context.Context, requestID string, viewer domain.Actor) (*RequestView, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if viewer.Role == domain.RoleSupplier && req.SupplierID != viewer.ID {
		return nil, ErrNotOwner
	}
	now := s.clock.Now()
	if req.IsExpiredAt(now) {
		if _, err := s.expireIfDue(ctx, requestID, now); err != nil {
			return nil, err
		}
		if req, err = s.repo.Get(ctx, requestID); err != nil {
			return nil, err
		}
	}

	all, err := s.repo.Responses(ctx, requestID)
	if err != nil {
		return nil, err
	}
	visible := all
	if viewer.Role == domain.RoleVisitor {
		visible = make([]domain.MatchingResponse, 0, len(all))
		for _, r := range all {
			if r.VisitorID == viewer.ID {
				visible = append(visible, r)
			}
		}
	}

	return &RequestView{
		MatchingRequest:  req,
		Responses:        visible,
		RemainingSeconds: int64(req.RemainingAt(now).Seconds()),
	}, nil
}

// ListForSupplier returns the supplier's own requests. Open requests past
// their expiry are expired first so the page and the status filter agree
// with Get.
func (s *Service) ListForSupplier(ctx context.Context, supplierID string, f ListFilter) ([]domain.MatchingRequest, int, error) {
	f = f.Normalize()
	if f.Status != "" && !domain.RequestStatus(f.Status).Valid() {
		return nil, 0, apperr.Validation("unknown status %q", f.Status)
	}
	if err := s.expireOverdue(ctx, supplierID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListBySupplier(ctx, supplierID, f)
}

// expireOverdue expires the supplier's open requests whose expiry passed.
// Due ids are collected before any is expired so paging is not disturbed.
func (s *Service) expireOverdue(ctx context.Context, supplierID string) error {
	now := s.clock.Now()
	var due []string
	for _, st := range []domain.RequestStatus{domain.RequestPending, domain.RequestActive} {
		for offset := 0; ; {
			page, total, err := s.repo.ListBySupplier(ctx, supplierID, ListFilter{Status: string(st), Limit: 100, Offset: offset})
			if err != nil {
				return err
			}
			for i := range page {
				if page[i].IsExpiredAt(now) {
					due = append(due, page[i].ID)
				}
			}
			offset += len(page)
			if len(page) == 0 || offset >= total {
				break
			}
		}
	}
	for _, id := range due {
		if _, err := s.expireIfDue(ctx, id, now); err != nil {
			return err
		}
	}
	return nil
}

// ListAvailable returns open, unexpired and unreserved requests that ship
// to one of the visitor's destination countries.
func (s *Service) ListAvailable(ctx context.Context, visitorID string, f ListFilter) ([]domain.MatchingRequest, int, error) {
	v, err := s.visitors.Visitor(ctx, visitorID)
	if err != nil {
		return nil, 0, err
	}
	if v.Status != domain.VisitorApproved {
		return nil, 0, apperr.New(apperr.KindNotAuthorized, "visitor profile is not approved")
	}
	if len(v.DestinationCountries) == 0 {
		return []domain.MatchingRequest{}, 0, nil
	}
	return s.repo.ListOpen(ctx, s.clock.Now(), domain.NormalizeCountries(v.DestinationCountries), f.Normalize())
}

// SuggestedVisitors returns the ranked eligible visitors for the owner's
// request.
func (s *Service) SuggestedVisitors(ctx context.Context, requestID, supplierID string) ([]domain.ScoredVisitor, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SupplierID != supplierID {
		return nil, ErrNotOwner
	}
	candidates, err := s.visitors.EligibleVisitors(ctx, req.DestinationCountries)
	if err != nil {
		return nil, err
	}
	ranked := RankVisitors(req, candidates, s.clock.Now())
	if len(ranked) > s.suggestedLimit {
		ranked = ranked[:s.suggestedLimit]
	}
	return ranked, nil
}

// Request returns the raw request. It satisfies the request readers of the
// chat and rating services.
func (s *Service) Request(ctx context.Context, requestID string) (*domain.MatchingRequest, error) {
	return s.repo.Get(ctx, requestID)
}
