package domain

import "time"

// SenderType identifies which side of a match authored a message.
type SenderType string

const (
	SenderSupplier SenderType = "supplier"
	SenderVisitor  SenderType = "visitor"
)

// Conversation is the gated chat between the supplier and the accepted
// visitor of one request.
type Conversation struct {
	ID            string     `json:"id" db:"id"`
	RequestID     string     `json:"request_id" db:"request_id"`
	SupplierID    string     `json:"supplier_id" db:"supplier_id"`
	VisitorID     string     `json:"visitor_id" db:"visitor_id"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	LastSeq       int64      `json:"last_seq" db:"last_seq"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// SenderTypeOf returns the sender type of a participant.
func (c *Conversation) SenderTypeOf(userID string) (SenderType, bool) {
	switch userID {
	case c.SupplierID:
		return SenderSupplier, true
	case c.VisitorID:
		return SenderVisitor, true
	}
	return "", false
}

// Message is one chat line. Seq is strictly increasing per conversation.
type Message struct {
	ID             string     `json:"id" db:"id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	Seq            int64      `json:"seq" db:"seq"`
	SenderID       string     `json:"sender_id" db:"sender_id"`
	SenderType     SenderType `json:"sender_type" db:"sender_type"`
	Body           string     `json:"body" db:"body"`
	ImageURL       string     `json:"image_url,omitempty" db:"image_url"`
	IsRead         bool       `json:"is_read" db:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ConversationSummary is the list view of a conversation for one participant.
type ConversationSummary struct {
	Conversation
	LastMessage string `json:"last_message,omitempty"`
	UnreadCount int    `json:"unread_count"`
}
