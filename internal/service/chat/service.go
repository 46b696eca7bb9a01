package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

const (
	maxBodyRunes     = 4000
	defaultPageLimit = 100
	maxPageLimit     = 500
)

// Service implements the chat gate.
type Service struct {
	repo     Repository
	requests RequestReader
	notifier Notifier
	clock    clock.Clock
}

// NewService creates a chat service.
func NewService(repo Repository, requests RequestReader, notifier Notifier, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{repo: repo, requests: requests, notifier: notifier, clock: clk}
}

// OpenConversation creates the conversation of a reserved request. Calling
// it again returns the existing conversation.
func (s *Service) OpenConversation(ctx context.Context, req *domain.MatchingRequest) (*domain.Conversation, error) {
	if req.AcceptedVisitorID == nil || !req.Status.IsReserved() {
		return nil, apperr.InvalidState("request %s has no accepted visitor", req.ID)
	}
	c := &domain.Conversation{
		ID:         uuid.New().String(),
		RequestID:  req.ID,
		SupplierID: req.SupplierID,
		VisitorID:  *req.AcceptedVisitorID,
		IsActive:   true,
		CreatedAt:  s.clock.Now(),
	}
	return s.repo.CreateConversation(ctx, c)
}

// ConversationForRequest returns the conversation of a request for one of
// its participants, opening it if the request is reserved but the
// conversation is missing.
func (s *Service) ConversationForRequest(ctx context.Context, requestID, actorID string) (*domain.Conversation, error) {
	req, err := s.requests.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParticipant(actorID) {
		return nil, ErrNotParticipant
	}

	c, err := s.repo.ConversationByRequest(ctx, requestID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if !req.Status.IsReserved() {
		return nil, apperr.Newf(apperr.KindConversationClosed, "chat opens once the request is accepted, request is %s", req.Status)
	}
	return s.OpenConversation(ctx, req)
}

// participant loads a conversation and checks actorID belongs to it.
func (s *Service) participant(ctx context.Context, conversationID, actorID string) (*domain.Conversation, domain.SenderType, error) {
	c, err := s.repo.Conversation(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	st, ok := c.SenderTypeOf(actorID)
	if !ok {
		return nil, "", ErrNotParticipant
	}
	return c, st, nil
}

// PostMessage appends a message from a participant. The owning request
// must be accepted or completed.
func (s *Service) PostMessage(ctx context.Context, conversationID, senderID, body, imageURL string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	imageURL = strings.TrimSpace(imageURL)
	if body == "" && imageURL == "" {
		return nil, apperr.Validation("message needs a body or an image")
	}
	if utf8.RuneCountInString(body) > maxBodyRunes {
		return nil, apperr.Validation("message is longer than %d characters", maxBodyRunes)
	}

	c, senderType, err := s.participant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	req, err := s.requests.Request(ctx, c.RequestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.IsReserved() {
		return nil, ErrClosed
	}

	m := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: c.ID,
		SenderID:       senderID,
		SenderType:     senderType,
		Body:           body,
		ImageURL:       imageURL,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}

	recipient := c.VisitorID
	if senderType == domain.SenderVisitor {
		recipient = c.SupplierID
	}
	s.notifyMessage(ctx, c, m, recipient)

	logger.Debug("chat message posted", "conversation_id", c.ID, "seq", m.Seq)
	return m, nil
}

func (s *Service) notifyMessage(ctx context.Context, c *domain.Conversation, m *domain.Message, recipient string) {
	if s.notifier == nil {
		return
	}
	preview := m.Body
	if preview == "" {
		preview = "sent an image"
	}
	if r := []rune(preview); len(r) > 120 {
		preview = string(r[:120]) + "…"
	}
	s.notifier.Dispatch(ctx, domain.Event{
		ID:        domain.EventID(string(domain.EventNewMessage), m.ID),
		Type:      domain.EventNewMessage,
		RequestID: c.RequestID,
		ActorID:   m.SenderID,
		Title:     "New message",
		Body:      preview,
		ActionURL: "/matching/requests/" + c.RequestID + "/messages",
		Data: map[string]string{
			"conversation_id": c.ID,
			"message_id":      m.ID,
		},
		OccurredAt: m.CreatedAt,
	}, []string{recipient}, []domain.Channel{domain.ChannelPush, domain.ChannelInApp})
}

// Messages returns the messages after afterSeq for a participant. Passing
// the last seen Seq on every poll yields each message exactly once, in
// order.
func (s *Service) Messages(ctx context.Context, conversationID, readerID string, afterSeq int64, limit int) ([]domain.Message, error) {
	if _, _, err := s.participant(ctx, conversationID, readerID); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		afterSeq = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	msgs, err := s.repo.Messages(ctx, conversationID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// MarkRead marks the other participant's messages up to and including
// uptoMessageID as read. Read state never reverts.
func (s *Service) MarkRead(ctx context.Context, conversationID, readerID, uptoMessageID string) (int, error) {
	if strings.TrimSpace(uptoMessageID) == "" {
		return 0, apperr.Validation("message id is required")
	}
	if _, _, err := s.participant(ctx, conversationID, readerID); err != nil {
		return 0, err
	}
	m, err := s.repo.Message(ctx, uptoMessageID)
	if err != nil {
		return 0, err
	}
	if m.ConversationID != conversationID {
		return 0, ErrMessageMissing
	}
	return s.repo.MarkRead(ctx, conversationID, readerID, m.Seq, s.clock.Now())
}

// Conversations lists the conversations of userID.
func (s *Service) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	out, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ConversationSummary{}
	}
	return out, nil
}
