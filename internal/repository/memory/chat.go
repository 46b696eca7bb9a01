package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/chat"
)

// ChatStore implements chat.Repository.
type ChatStore struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	byRequest     map[string]string            // request id -> conversation id
	messages      map[string][]*domain.Message // conversation id -> messages in seq order
	messageByID   map[string]*domain.Message
}

// NewChatStore creates an empty store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[string]*domain.Conversation),
		byRequest:     make(map[string]string),
		messages:      make(map[string][]*domain.Message),
		messageByID:   make(map[string]*domain.Message),
	}
}

func copyConversation(c *domain.Conversation) *domain.Conversation {
	cp := *c
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		cp.LastMessageAt = &t
	}
	return &cp
}

func copyMessage(m *domain.Message) domain.Message {
	cp := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		cp.ReadAt = &t
	}
	return cp
}

func (s *ChatStore) CreateConversation(_ context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byRequest[c.RequestID]; ok {
		return copyConversation(s.conversations[id]), nil
	}
	s.conversations[c.ID] = copyConversation(c)
	s.byRequest[c.RequestID] = c.ID
	return copyConversation(c), nil
}

func (s *ChatStore) Conversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyConversation(c), nil
}

func (s *ChatStore) ConversationByRequest(_ context.Context, requestID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return copyConversation(s.conversations[id]), nil
}

func (s *ChatStore) AppendMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return chat.ErrNotFound
	}
	c.LastSeq++
	m.Seq = c.LastSeq
	if c.LastMessageAt != nil && m.CreatedAt.Before(*c.LastMessageAt) {
		m.CreatedAt = *c.LastMessageAt
	}
	at := m.CreatedAt
	c.LastMessageAt = &at

	stored := copyMessage(m)
	s.messages[c.ID] = append(s.messages[c.ID], &stored)
	s.messageByID[stored.ID] = &stored
	return nil
}

func (s *ChatStore) Message(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messageByID[id]
	if !ok {
		return nil, chat.ErrMessageMissing
	}
	cp := copyMessage(m)
	return &cp, nil
}

func (s *ChatStore) Messages(_ context.Context, conversationID string, afterSeq int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[conversationID]
	// Seq starts at 1 and has no gaps, so the index of seq n is n-1.
	start := int(afterSeq)
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]domain.Message, 0, end-start)
	for _, m := range all[start:end] {
		out = append(out, copyMessage(m))
	}
	return out, nil
}

func (s *ChatStore) MarkRead(_ context.Context, conversationID, readerID string, uptoSeq int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages[conversationID] {
		if m.Seq > uptoSeq {
			break
		}
		if m.SenderID == readerID || m.IsRead {
			continue
		}
		t := at
		m.IsRead = true
		m.ReadAt = &t
		n++
	}
	return n, nil
}

func (s *ChatStore) ListForUser(_ context.Context, userID string) ([]domain.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConversationSummary
	for _, c := range s.conversations {
		if c.SupplierID != userID && c.VisitorID != userID {
			continue
		}
		sum := domain.ConversationSummary{Conversation: *copyConversation(c)}
		msgs := s.messages[c.ID]
		if len(msgs) > 0 {
			sum.LastMessage = msgs[len(msgs)-1].Body
		}
		for _, m := range msgs {
			if m.SenderID != userID && !m.IsRead {
				sum.UnreadCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i]).After(lastActivity(out[j])) })
	return out, nil
}

func lastActivity(s domain.ConversationSummary) time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.CreatedAt
}
