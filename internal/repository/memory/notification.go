package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/service/notification"
)

// InboxStore implements notification.InboxRepository.
type InboxStore struct {
	mu    sync.Mutex
	items map[string]*domain.Notification // keyed by id
	keys  map[string]string               // event id + user id -> id
}

// NewInboxStore creates an empty inbox.
func NewInboxStore() *InboxStore {
	return &InboxStore{
		items: make(map[string]*domain.Notification),
		keys:  make(map[string]string),
	}
}

func (s *InboxStore) Insert(_ context.Context, n *domain.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := n.EventID + "\x00" + n.UserID
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	cp := *n
	s.items[cp.ID] = &cp
	s.keys[key] = cp.ID
	return true, nil
}

func (s *InboxStore) List(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.items {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, offset)
}

func (s *InboxStore) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.UserID != userID {
		return notification.ErrNotFound
	}
	if !n.IsRead {
		t := at
		n.IsRead = true
		n.ReadAt = &t
	}
	return nil
}

func (s *InboxStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			t := at
			n.IsRead = true
			n.ReadAt = &t
			count++
		}
	}
	return count, nil
}

func (s *InboxStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// IdempotencyStore implements notification.IdempotencyStore with expiring
// keys.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock clock.Clock
	keys  map[string]time.Time // key -> expiry
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(ttl time.Duration, clk clock.Clock) *IdempotencyStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &IdempotencyStore{ttl: ttl, clock: clk, keys: make(map[string]time.Time)}
}

func (s *IdempotencyStore) Delivered(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.keys[key]
	if !ok {
		return false, nil
	}
	if s.ttl > 0 && !s.clock.Now().Before(exp) {
		delete(s.keys, key)
		return false, nil
	}
	return true, nil
}

func (s *IdempotencyStore) MarkDelivered(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = s.clock.Now().Add(s.ttl)
	return nil
}
