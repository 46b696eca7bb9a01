package matching

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/distlock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

const defaultLockWait = 3 * time.Second

// LockKey is the distributed lock key guarding one request aggregate.
func LockKey(requestID string) string {
	return "matching:request:" + requestID
}

// Deps collects the collaborators of the Service.
type Deps struct {
	Repo     Repository
	Visitors VisitorDirectory
	Chat     ConversationOpener
	Notifier Notifier
	Locker   distlock.Locker
	Clock    clock.Clock
	// LockWait bounds how long a mutation waits for the request lock.
	LockWait time.Duration
	// SuggestedLimit caps SuggestedVisitors results.
	SuggestedLimit int
}

// Service implements the request lifecycle. All public methods are safe for
// concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo           Repository
	visitors       VisitorDirectory
	chat           ConversationOpener
	notifier       Notifier
	locker         distlock.Locker
	clock          clock.Clock
	lockWait       time.Duration
	suggestedLimit int
}

// NewService creates a matching service. Locker and Clock default to an
// in-process keyed mutex and the system clock.
func NewService(d Deps) *Service {
	s := &Service{
		repo:           d.Repo,
		visitors:       d.Visitors,
		chat:           d.Chat,
		notifier:       d.Notifier,
		locker:         d.Locker,
		clock:          d.Clock,
		lockWait:       d.LockWait,
		suggestedLimit: d.SuggestedLimit,
	}
	if s.locker == nil {
		s.locker = distlock.NewLocalLocker()
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.lockWait <= 0 {
		s.lockWait = defaultLockWait
	}
	if s.suggestedLimit <= 0 {
		s.suggestedLimit = 20
	}
	return s
}

// RequestDetails holds the supplier-provided fields of a new request.
type RequestDetails struct {
	ProductName          string   `json:"product_name"`
	Quantity             float64  `json:"quantity"`
	Unit                 string   `json:"unit"`
	DestinationCountries []string `json:"destination_countries"`
	Price                string   `json:"price"`
	Currency             string   `json:"currency"`
	PaymentTerms         string   `json:"payment_terms"`
	DeliveryWindow       string   `json:"delivery_window"`
	Description          string   `json:"description"`
}

// Patch holds the editable fields of an open request. Nil fields are not
// applied.
type Patch struct {
	ProductName          *string   `json:"product_name"`
	Quantity             *float64  `json:"quantity"`
	Unit                 *string   `json:"unit"`
	DestinationCountries *[]string `json:"destination_countries"`
	Price                *string   `json:"price"`
	Currency             *string   `json:"currency"`
	PaymentTerms         *string   `json:"payment_terms"`
	DeliveryWindow       *string   `json:"delivery_window"`
	Description          *string   `json:"description"`
}

// withLock runs fn while holding the request lock. The lock wait is bounded
// by lockWait; fn itself runs with the caller's context.
func (s *Service) withLock(ctx context.Context, requestID string, fn func(ctx context.Context) error) error {
	acqCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	err := s.locker.WithLock(acqCtx, LockKey(requestID), func(context.Context) error {
		return fn(ctx)
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return apperr.Wrap(apperr.KindTransient, ErrBusy.Msg, err)
	}
	return err
}

// =============================================================================
// Create
// =============================================================================

// CreateRequest validates and persists a new request, then notifies the
// eligible visitors. The request becomes active once at least one visitor
// has been notified; with nobody eligible it stays pending.
func (s *Service) CreateRequest(ctx context.Context, supplierID string, d RequestDetails, policy domain.ExpiryPolicy) (*domain.MatchingRequest, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, apperr.Validation("supplier id is required")
	}
	if !policy.Valid() {
		return nil, apperr.Validation("expiry policy must be 7, 14 or 30 days, got %d", policy)
	}

	now := s.clock.Now()
	req := &domain.MatchingRequest{
		ID:                   uuid.New().String(),
		SupplierID:           supplierID,
		ProductName:          strings.TrimSpace(d.ProductName),
		Quantity:             d.Quantity,
		Unit:                 strings.TrimSpace(d.Unit),
		DestinationCountries: domain.NormalizeCountries(d.DestinationCountries),
		Price:                strings.TrimSpace(d.Price),
		Currency:             strings.ToUpper(strings.TrimSpace(d.Currency)),
		PaymentTerms:         strings.TrimSpace(d.PaymentTerms),
		DeliveryWindow:       strings.TrimSpace(d.DeliveryWindow),
		Description:          strings.TrimSpace(d.Description),
		ExpiryPolicy:         policy,
		Status:               domain.RequestPending,
		Version:              1,
		CreatedAt:            now,
		ExpiresAt:            now.Add(policy.Duration()),
		UpdatedAt:            now,
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	err := s.withLock(ctx, req.ID, func(ctx context.Context) error {
		cur, err := s.repo.Get(ctx, req.ID)
		if err != nil {
			return err
		}
		if cur.Status != domain.RequestPending {
			// Reserved before fan-out finished; nothing left to announce.
			req = cur
			return nil
		}
		if _, err := s.fanOut(ctx, cur, now); err != nil {
			return err
		}
		req = cur
		return nil
	})
	if err != nil {
		// The request exists; a later edit re-runs the fan-out.
		logger.Warn("request fan-out failed", "request_id", req.ID, "error", err)
	}

	logger.Info("matching request created", "request_id", req.ID, "supplier_id", supplierID,
		"status", req.Status, "notified", req.MatchedVisitorCount)
	return req, nil
}

// fanOut notifies eligible visitors who were not notified before, moves a
// pending request to active when anyone was notified, and persists the
// request. Caller holds the request lock.
func (s *Service) fanOut(ctx context.Context, req *domain.MatchingRequest, now time.Time) (int, error) {
	candidates, err := s.visitors.EligibleVisitors(ctx, req.DestinationCountries)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindTransient, "load eligible visitors", err)
	}
	ranked := RankVisitors(req, candidates, now)
	if len(ranked) == 0 {
		return 0, nil
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Visitor.ID
	}
	fresh, err := s.repo.RecordNotified(ctx, req.ID, ids, now)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	s.notify(ctx, req, domain.EventRequestCreated, fresh, now,
		[]domain.Channel{domain.ChannelPush, domain.ChannelInApp, domain.ChannelSMS}, req.ID)

	req.MatchedVisitorCount += len(fresh)
	if req.Status == domain.RequestPending {
		req.Status = domain.RequestActive
	}
	req.UpdatedAt = now
	if err := s.repo.Update(ctx, req); err != nil {
		return len(fresh), err
	}
	return len(fresh), nil
}

func validateRequest(r *domain.MatchingRequest) error {
	if r.ProductName == "" {
		return apperr.Validation("product name is required")
	}
	if len(r.DestinationCountries) == 0 {
		return apperr.Validation("at least one destination country is required")
	}
	if r.Price == "" {
		return apperr.Validation("price is required")
	}
	if p, err := strconv.ParseFloat(r.Price, 64); err != nil || p <= 0 {
		return apperr.Validation("price must be a positive number")
	}
	if r.Currency == "" {
		return apperr.Validation("currency is required")
	}
	if r.PaymentTerms == "" {
		return apperr.Validation("payment terms are required")
	}
	if r.Quantity < 0 {
		return apperr.Validation("quantity cannot be negative")
	}
	return nil
}

// =============================================================================
// Respond
// =============================================================================

// Respond records a visitor's accept, reject or question. Accept is the
// reservation race: exactly one visitor wins, every later accept gets
// ErrAlreadyReserved and an OfferLost notification. Reject is not final; a
// visitor who rejected may still accept while the request is open.
func (s *Service) Respond(ctx context.Context, requestID, visitorID string, action domain.ResponseAction, message string) (*domain.MatchingResponse, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, apperr.Validation("visitor id is required")
	}
	if !action.Valid() {
		return nil, apperr.Validation("unknown action %q", action)
	}
	message = strings.TrimSpace(message)
	if action == domain.ActionQuestion && message == "" {
		return nil, apperr.Validation("a question needs a message")
	}
	if err := s.requireApproved(ctx, visitorID); err != nil {
		return nil, err
	}

	var out *domain.MatchingResponse
	err := s.withLock(ctx, requestID, func(ctx context.Context) error {
		req, err := s.repo.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if req.SupplierID == visitorID {
			return apperr.New(apperr.KindNotAuthorized, "suppliers cannot respond to their own request")
		}
		now := s.clock.Now()
		if req.IsExpiredAt(now) {
			if action == domain.ActionAccept {
				metrics.AcceptOutcomes.WithLabelValues("expired").Inc()
			}
			if err := s.expireLocked(ctx, req, now); err != nil {
				return err
			}
			return ErrExpired
		}

		resp := &domain.MatchingResponse{
			ID:        uuid.New().String(),
			RequestID: requestID,
			VisitorID: visitorID,
			Action:    action,
			Message:   message,
			CreatedAt: now,
		}

		if action == domain.ActionAccept {
			out, err = s.accept(ctx, req, resp, now)
			return err
		}

		if !req.Status.IsOpen() {
			return apperr.InvalidState("cannot %s a request that is %s", action, req.Status)
		}
		if err := s.repo.AddResponse(ctx, resp); err != nil {
			return err
		}
		if action == domain.ActionQuestion {
			s.notify(ctx, req, domain.EventQuestionAsked, []string{req.SupplierID}, now,
				[]domain.Channel{domain.ChannelPush, domain.ChannelInApp}, resp.ID)
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// requireApproved refuses visitors without an approved profile. An actor
// with no visitor profile at all, the request owner included, is refused
// the same way.
func (s *Service) requireApproved(ctx context.Context, visitorID string) error {
	v, err := s.visitors.Visitor(ctx, visitorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.New(apperr.KindNotAuthorized, "visitor profile not found")
	}
	if err != nil {
		return err
	}
	if v.Status != domain.VisitorApproved {
		return apperr.New(apperr.KindNotAuthorized, "visitor profile is not approved")
	}
	return nil
}

// accept runs the reservation. Caller holds the request lock.
func (s *Service) accept(ctx context.Context, req *domain.MatchingRequest, resp *domain.MatchingResponse, now time.Time) (*domain.MatchingResponse, error) {
	if req.Status.IsReserved() {
		return s.acceptLost(ctx, req, resp.VisitorID, now)
	}
	if !req.Status.IsOpen() {
		metrics.AcceptOutcomes.WithLabelValues("invalid_state").Inc()
		return nil, apperr.InvalidState("cannot accept a request that is %s", req.Status)
	}

	updated, err := s.repo.Accept(ctx, resp)
	if errors.Is(err, ErrAlreadyReserved) {
		// Lost the compare-and-set to a writer outside this lock.
		cur, gerr := s.repo.Get(ctx, req.ID)
		if gerr != nil {
			return nil, gerr
		}
		if !cur.Status.IsReserved() {
			return nil, apperr.InvalidState("cannot accept a request that is %s", cur.Status)
		}
		return s.acceptLost(ctx, cur, resp.VisitorID, now)
	}
	if err != nil {
		return nil, err
	}
	metrics.AcceptOutcomes.WithLabelValues("won").Inc()

	if _, err := s.chat.OpenConversation(ctx, updated); err != nil {
		// Reads open it lazily through ConversationForRequest.
		logger.Warn("open conversation failed", "request_id", req.ID, "error", err)
	}

	s.notify(ctx, updated, domain.EventRequestAccepted, []string{updated.SupplierID}, now,
		[]domain.Channel{domain.ChannelPush, domain.ChannelInApp}, updated.ID)

	others, err := s.responders(ctx, updated.ID, resp.VisitorID)
	if err != nil {
		logger.Warn("load responders for offer-lost failed", "request_id", req.ID, "error", err)
	} else if len(others) > 0 {
		s.notify(ctx, updated, domain.EventOfferLost, others, now,
			[]domain.Channel{domain.ChannelPush, domain.ChannelInApp}, updated.ID)
	}

	logger.Info("matching request accepted", "request_id", updated.ID, "visitor_id", resp.VisitorID)
	return resp, nil
}

// acceptLost handles an accept on an already reserved request. A repeated
// accept by the winner is answered with the winning response.
func (s *Service) acceptLost(ctx context.Context, req *domain.MatchingRequest, visitorID string, now time.Time) (*domain.MatchingResponse, error) {
	if req.AcceptedVisitorID != nil && *req.AcceptedVisitorID == visitorID {
		return s.winningResponse(ctx, req)
	}
	metrics.AcceptOutcomes.WithLabelValues("already_reserved").Inc()
	s.notify(ctx, req, domain.EventOfferLost, []string{visitorID}, now,
		[]domain.Channel{domain.ChannelPush, domain.ChannelInApp}, req.ID)
	return nil, ErrAlreadyReserved
}

func (s *Service) winningResponse(ctx context.Context, req *domain.MatchingRequest) (*domain.MatchingResponse, error) {
	all, err := s.repo.Responses(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if req.AcceptedResponseID != nil && all[i].ID == *req.AcceptedResponseID {
			return &all[i], nil
		}
	}
	return nil, apperr.Newf(apperr.KindInternal, "accepted response %v of request %s missing", req.AcceptedResponseID, req.ID)
}

// responders returns the distinct visitors who responded, except skip.
func (s *Service) responders(ctx context.Context, requestID, skip string) ([]string, error) {
	all, err := s.repo.Responses(ctx, requestID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	var out []string
	for _, r := range all {
		if r.VisitorID == skip || seen[r.VisitorID] {
			continue
		}
		seen[r.VisitorID] = true
		out = append(out, r.VisitorID)
	}
	return out, nil
}

// =============================================================================
// Supplier operations
// =============================================================================

// loadOwnedOpen loads a request for a supplier mutation. A request past its
// expiry is expired on the spot. Caller holds the request lock.
func (s *Service) loadOwnedOpen(ctx context.Context, requestID, supplierID string, now time.Time) (*domain.MatchingRequest, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SupplierID != supplierID {
		return nil, ErrNotOwner
	}
	if req.IsExpiredAt(now) {
		if err := s.expireLocked(ctx, req, now); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	if !req.Status.IsOpen() {
		return nil, apperr.InvalidState("request is %s", req.Status)
	}
	return req, nil
}

// Extend restarts the expiry window: ExpiresAt becomes now + policy.
func (s *Service) Extend(ctx context.Context, requestID, supplierID string, policy domain.ExpiryPolicy) (*domain.MatchingRequest, error) {
	if !policy.Valid() {
		return nil, apperr.Validation("expiry policy must be 7, 14 or 30 days, got %d", policy)
	}

	var out *domain.MatchingRequest
	err := s.withLock(ctx, requestID, func(ctx context.Context) error {
		now := s.clock.Now()
		req, err := s.loadOwnedOpen(ctx, requestID, supplierID, now)
		if err != nil {
			return err
		}
		req.ExpiryPolicy = policy
		req.ExpiresAt = now.Add(policy.Duration())
		req.UpdatedAt = now
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

// Edit applies a patch to an open request. When the product or destinations
// change, visitors who became eligible are notified; earlier notifications
// stand.
func (s *Service) Edit(ctx context.Context, requestID, supplierID string, p Patch) (*domain.MatchingRequest, error) {
	var out *domain.MatchingRequest
	err := s.withLock(ctx, requestID, func(ctx context.Context) error {
		now := s.clock.Now()
		req, err := s.loadOwnedOpen(ctx, requestID, supplierID, now)
		if err != nil {
			return err
		}

		refan := applyPatch(req, p)
		if err := validateRequest(req); err != nil {
			return err
		}
		req.UpdatedAt = now
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		if refan {
			if _, err := s.fanOut(ctx, req, now); err != nil {
				logger.Warn("re-notify after edit failed", "request_id", req.ID, "error", err)
			}
		}
		out = req
		return nil
	})
	return out, err
}

// applyPatch mutates req and reports whether eligibility inputs changed.
func applyPatch(req *domain.MatchingRequest, p Patch) bool {
	refan := false
	if p.ProductName != nil {
		v := strings.TrimSpace(*p.ProductName)
		refan = refan || !strings.EqualFold(v, req.ProductName)
		req.ProductName = v
	}
	if p.DestinationCountries != nil {
		v := domain.NormalizeCountries(*p.DestinationCountries)
		refan = refan || !sameSet(v, req.DestinationCountries)
		req.DestinationCountries = v
	}
	if p.Quantity != nil {
		req.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		req.Unit = strings.TrimSpace(*p.Unit)
	}
	if p.Price != nil {
		req.Price = strings.TrimSpace(*p.Price)
	}
	if p.Currency != nil {
		req.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.PaymentTerms != nil {
		req.PaymentTerms = strings.TrimSpace(*p.PaymentTerms)
	}
	if p.DeliveryWindow != nil {
		req.DeliveryWindow = strings.TrimSpace(*p.DeliveryWindow)
	}
	if p.Description != nil {
		req.Description = strings.TrimSpace(*p.Description)
	}
	return refan
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	in := make(map[string]bool, len(a))
	for _, x := range a {
		in[x] = true
	}
	for _, y := range b {
		if !in[y] {
			return false
		}
	}
	return true
}

// Cancel withdraws an open request and tells everyone who responded.
func (s *Service) Cancel(ctx context.Context, requestID, supplierID string) (*domain.MatchingRequest, error) {
	var out *domain.MatchingRequest
	err := s.withLock(ctx, requestID, func(ctx context.Context) error {
		now := s.clock.Now()
		req, err := s.loadOwnedOpen(ctx, requestID, supplierID, now)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, req, domain.RequestCancelled, now); err != nil {
			return err
		}

		responders, err := s.responders(ctx, req.ID, "")
		if err != nil {
			logger.Warn("load responders for cancel failed", "request_id", req.ID, "error", err)
		} else if len(responders) > 0 {
			s.notify(ctx, req, domain.EventRequestCancelled, responders, now,
				[]domain.Channel{domain.ChannelPush, domain.ChannelInApp}, req.ID)
		}
		out = req
		return nil
	})
	return out, err
}

// Complete closes the deal. Either participant may complete an accepted
// request; ratings open afterwards.
func (s *Service) Complete(ctx context.Context, requestID, actorID string) (*domain.MatchingRequest, error) {
	var out *domain.MatchingRequest
	err := s.withLock(ctx, requestID, func(ctx context.Context) error {
		req, err := s.repo.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.IsParticipant(actorID) {
			return ErrNotParticipant
		}
		if req.Status != domain.RequestAccepted {
			return apperr.InvalidState("only an accepted request can be completed, request is %s", req.Status)
		}
		now := s.clock.Now()
		req.CompletedAt = &now
		if err := s.transition(ctx, req, domain.RequestCompleted, now); err != nil {
			return err
		}
		logger.Info("matching request completed", "request_id", req.ID, "by", actorID)
		out = req
		return nil
	})
	return out, err
}

// transition validates and persists a status change. Caller holds the lock.
func (s *Service) transition(ctx context.Context, req *domain.MatchingRequest, to domain.RequestStatus, now time.Time) error {
	if !domain.CanTransition(req.Status, to) {
		return apperr.InvalidState("cannot move request from %s to %s", req.Status, to)
	}
	req.Status = to
	req.UpdatedAt = now
	return s.repo.Update(ctx, req)
}

// =============================================================================
// Expiry
// =============================================================================

// expireLocked moves an open request to expired and tells the supplier.
// Caller holds the request lock.
func (s *Service) expireLocked(ctx context.Context, req *domain.MatchingRequest, now time.Time) error {
	if err := s.transition(ctx, req, domain.RequestExpired, now); err != nil {
		return err
	}
	metrics.RequestsExpired.Inc()
	s.notify(ctx, req, domain.EventRequestExpired, []string{req.SupplierID}, now,
		[]domain.Channel{domain.ChannelPush, domain.ChannelInApp}, req.ID)
	return nil
}

// expireIfDue re-checks a request under its lock and expires it when its
// expiry has passed at now. It reports whether this call expired it; a
// request reserved or expired by someone else first is left alone.
func (s *Service) expireIfDue(ctx context.Context, requestID string, now time.Time) (bool, error) {
	expired := false
	err := s.withLock(ctx, requestID, func(ctx context.Context) error {
		req, err := s.repo.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.IsExpiredAt(now) {
			return nil
		}
		if err := s.expireLocked(ctx, req, now); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

const sweepBatch = 500

// ExpireSweep expires every open request whose expiry has passed at now.
// A failing request is logged and skipped. Overlapping sweeps are safe:
// each request is re-checked under its lock.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListExpiring(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range due {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		ok, err := s.expireIfDue(ctx, candidate.ID, now)
		if err != nil {
			metrics.SweepFailures.Inc()
			logger.Warn("expire request failed", "request_id", candidate.ID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		logger.Info("expiry sweep", "expired", expired, "candidates", len(due))
	}
	return expired, nil
}

// =============================================================================
// Notifications
// =============================================================================

func (s *Service) notify(ctx context.Context, req *domain.MatchingRequest, typ domain.EventType, recipients []string, now time.Time, channels []domain.Channel, key string) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}
	title, body := eventText(typ, req)
	s.notifier.Dispatch(ctx, domain.Event{
		ID:        domain.EventID(string(typ), key),
		Type:      typ,
		RequestID: req.ID,
		Title:     title,
		Body:      body,
		ActionURL: "/matching/requests/" + req.ID,
		Data: map[string]string{
			"request_id": req.ID,
			"product":    req.ProductName,
			"status":     string(req.Status),
		},
		OccurredAt: now,
	}, recipients, channels)
}

func eventText(typ domain.EventType, req *domain.MatchingRequest) (string, string) {
	switch typ {
	case domain.EventRequestCreated:
		return "New matching request", req.ProductName + " for " + strings.Join(req.DestinationCountries, ", ")
	case domain.EventQuestionAsked:
		return "New question", "A visitor asked about " + req.ProductName
	case domain.EventRequestAccepted:
		return "Request accepted", "A visitor accepted your request for " + req.ProductName
	case domain.EventOfferLost:
		return "Request taken", "Another visitor accepted the request for " + req.ProductName
	case domain.EventRequestExpired:
		return "Request expired", "Your request for " + req.ProductName + " expired without a match"
	case domain.EventRequestCancelled:
		return "Request cancelled", "The supplier cancelled the request for " + req.ProductName
	}
	return string(typ), req.ProductName
}
