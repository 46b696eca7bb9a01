package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/rating"
)

// RatingStore implements rating.Repository.
type RatingStore struct {
	mu      sync.Mutex
	ratings []domain.Rating
	keys    map[string]bool // request id + rater id
}

// NewRatingStore creates an empty store.
func NewRatingStore() *RatingStore {
	return &RatingStore{keys: make(map[string]bool)}
}

func (s *RatingStore) Create(_ context.Context, r *domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.RequestID + "\x00" + r.RaterID
	if s.keys[key] {
		return rating.ErrDuplicate
	}
	s.keys[key] = true
	s.ratings = append(s.ratings, *r)
	return nil
}

func (s *RatingStore) ForRequest(_ context.Context, requestID string) ([]domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Rating
	for _, r := range s.ratings {
		if r.RequestID == requestID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RatingStore) ForUser(_ context.Context, userID string, limit, offset int) ([]domain.Rating, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Rating
	for _, r := range s.ratings {
		if r.RatedID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset)
}

func (s *RatingStore) Summary(_ context.Context, userID string) (domain.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := domain.RatingSummary{UserID: userID}
	total := 0
	for _, r := range s.ratings {
		if r.RatedID == userID {
			total += r.Score
			sum.Count++
		}
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

// SummaryCache implements rating.SummaryCache in process.
type SummaryCache struct {
	mu    sync.RWMutex
	items map[string]domain.RatingSummary
}

// NewSummaryCache creates an empty cache.
func NewSummaryCache() *SummaryCache {
	return &SummaryCache{items: make(map[string]domain.RatingSummary)}
}

func (c *SummaryCache) Get(_ context.Context, userID string) (*domain.RatingSummary, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.items[userID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *SummaryCache) Set(_ context.Context, s domain.RatingSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.UserID] = s
	return nil
}
