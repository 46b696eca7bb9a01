package chat

import (
	"context"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// Repository defines the data access contract for conversations and
// messages. Implementations must be safe for concurrent use.
type Repository interface {
	// CreateConversation inserts c unless the request already has a
	// conversation, and returns the stored one either way.
	CreateConversation(ctx context.Context, c *domain.Conversation) (*domain.Conversation, error)

	// Conversation returns a conversation by id. Returns ErrNotFound.
	Conversation(ctx context.Context, id string) (*domain.Conversation, error)

	// ConversationByRequest returns the conversation of a request. Returns ErrNotFound.
	ConversationByRequest(ctx context.Context, requestID string) (*domain.Conversation, error)

	// AppendMessage atomically assigns m.Seq = last_seq + 1 and
	// m.CreatedAt = max(m.CreatedAt, last_message_at), then inserts m.
	AppendMessage(ctx context.Context, m *domain.Message) error

	// Message returns one message. Returns ErrMessageMissing.
	Message(ctx context.Context, id string) (*domain.Message, error)

	// Messages returns messages with seq > afterSeq in seq order.
	Messages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]domain.Message, error)

	// MarkRead marks unread messages not sent by readerID with seq <= uptoSeq
	// and returns how many changed.
	MarkRead(ctx context.Context, conversationID, readerID string, uptoSeq int64, at time.Time) (int, error)

	// ListForUser returns the user's conversations with their last message
	// and unread count, most recent activity first.
	ListForUser(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

// RequestReader loads the request a conversation belongs to.
type RequestReader interface {
	Request(ctx context.Context, requestID string) (*domain.MatchingRequest, error)
}

// Notifier queues an event for asynchronous delivery.
type Notifier interface {
	Dispatch(ctx context.Context, ev domain.Event, recipients []string, channels []domain.Channel)
}

// RequestReaderFunc adapts a lookup function to RequestReader.
type RequestReaderFunc func(ctx context.Context, requestID string) (*domain.MatchingRequest, error)

func (f RequestReaderFunc) Request(ctx context.Context, requestID string) (*domain.MatchingRequest, error) {
	return f(ctx, requestID)
}
