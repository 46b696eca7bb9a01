package rating

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/distlock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/service/matching"
)

const maxCommentRunes = 1000

// Service implements the rating ledger.
type Service struct {
	repo     Repository
	cache    SummaryCache
	requests RequestReader
	notifier Notifier
	locker   distlock.Locker
	clock    clock.Clock
	lockWait time.Duration
}

// NewService creates a rating service. cache may be nil.
func NewService(repo Repository, cache SummaryCache, requests RequestReader, notifier Notifier, locker distlock.Locker, clk clock.Clock) *Service {
	if locker == nil {
		locker = distlock.NewLocalLocker()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		requests: requests,
		notifier: notifier,
		locker:   locker,
		clock:    clk,
		lockWait: 3 * time.Second,
	}
}

// Rate records raterID's score of ratedID for a completed request. Each
// participant rates the other exactly once.
func (s *Service) Rate(ctx context.Context, requestID, raterID, ratedID string, score int, comment string) (*domain.Rating, error) {
	if score < domain.MinScore || score > domain.MaxScore {
		return nil, apperr.Validation("score must be between %d and %d", domain.MinScore, domain.MaxScore)
	}
	comment = strings.TrimSpace(comment)
	if len([]rune(comment)) > maxCommentRunes {
		return nil, apperr.Validation("comment is longer than %d characters", maxCommentRunes)
	}

	var out *domain.Rating
	acqCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	err := s.locker.WithLock(acqCtx, matching.LockKey(requestID), func(context.Context) error {
		req, err := s.requests.Request(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestCompleted {
			return apperr.InvalidState("ratings open once the request is completed, request is %s", req.Status)
		}
		if !req.IsParticipant(raterID) {
			return ErrNotParticipant
		}
		other, otherRole, ok := req.Counterpart(raterID)
		if !ok || other != ratedID {
			return apperr.New(apperr.KindNotAuthorized, "you can only rate the other participant")
		}
		raterRole := domain.RoleSupplier
		if otherRole == domain.RoleSupplier {
			raterRole = domain.RoleVisitor
		}

		r := &domain.Rating{
			ID:        uuid.New().String(),
			RequestID: requestID,
			RaterID:   raterID,
			RaterType: raterRole,
			RatedID:   ratedID,
			RatedType: otherRole,
			Score:     score,
			Comment:   comment,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return nil, apperr.Wrap(apperr.KindTransient, "request is busy, try again", err)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.refreshSummary(ctx, ratedID); err != nil {
		// The ledger row is durable; Summary recomputes on a cache miss.
		logger.Warn("refresh rating summary failed", "user_id", ratedID, "error", err)
	}
	s.notifyRated(ctx, out)
	return out, nil
}

func (s *Service) notifyRated(ctx context.Context, r *domain.Rating) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, domain.Event{
		ID:        domain.EventID(string(domain.EventNewRating), r.ID),
		Type:      domain.EventNewRating,
		RequestID: r.RequestID,
		ActorID:   r.RaterID,
		Title:     "New rating",
		Body:      "You received a " + strconv.Itoa(r.Score) + "-star rating",
		ActionURL: "/matching/requests/" + r.RequestID + "/ratings",
		Data: map[string]string{
			"rating_id": r.ID,
			"score":     strconv.Itoa(r.Score),
		},
		OccurredAt: r.CreatedAt,
	}, []string{r.RatedID}, []domain.Channel{domain.ChannelPush, domain.ChannelInApp})
}

func summaryLockKey(userID string) string {
	return "rating:summary:" + userID
}

// refreshSummary recomputes the summary from the ledger and caches it.
// Refreshes of one user are serialized so the last write reflects every
// rating committed before it.
func (s *Service) refreshSummary(ctx context.Context, userID string) (domain.RatingSummary, error) {
	var sum domain.RatingSummary
	acqCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	err := s.locker.WithLock(acqCtx, summaryLockKey(userID), func(context.Context) error {
		got, err := s.repo.Summary(ctx, userID)
		if err != nil {
			return err
		}
		got.UserID = userID
		got.Average = roundAverage(got.Average)
		sum = got
		if s.cache != nil {
			return s.cache.Set(ctx, sum)
		}
		return nil
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return sum, apperr.Wrap(apperr.KindTransient, "rating summary is busy, try again", err)
	}
	return sum, err
}

// Summary returns userID's average and count, from cache when possible.
func (s *Service) Summary(ctx context.Context, userID string) (domain.RatingSummary, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Warn("rating cache read failed", "user_id", userID, "error", err)
		} else if ok {
			return *cached, nil
		}
	}
	sum, err := s.refreshSummary(ctx, userID)
	if err != nil && sum.UserID == "" {
		return domain.RatingSummary{}, err
	}
	return sum, nil
}

// ForRequest returns both ratings of a request to one of its participants.
func (s *Service) ForRequest(ctx context.Context, requestID, actorID string) ([]domain.Rating, error) {
	req, err := s.requests.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(actorID) {
		return nil, ErrNotParticipant
	}
	out, err := s.repo.ForRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Rating{}
	}
	return out, nil
}

// UserRatings is the public rating profile of a user.
type UserRatings struct {
	Summary domain.RatingSummary `json:"summary"`
	Ratings []domain.Rating      `json:"ratings"`
	Total   int                  `json:"total"`
}

// ForUser returns the ratings userID received.
func (s *Service) ForUser(ctx context.Context, userID string, limit, offset int) (*UserRatings, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, total, err := s.repo.ForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Rating{}
	}
	return &UserRatings{Summary: sum, Ratings: list, Total: total}, nil
}

func roundAverage(v float64) float64 {
	return math.Round(v*10) / 10
}
