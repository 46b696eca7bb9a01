package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of notification events.
type EventType string

const (
	EventRequestCreated   EventType = "request_created"
	EventQuestionAsked    EventType = "question_asked"
	EventRequestAccepted  EventType = "request_accepted"
	EventOfferLost        EventType = "offer_lost"
	EventNewMessage       EventType = "new_message"
	EventNewRating        EventType = "new_rating"
	EventRequestExpired   EventType = "request_expired"
	EventRequestCancelled EventType = "request_cancelled"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventRequestCreated, EventQuestionAsked, EventRequestAccepted, EventOfferLost,
		EventNewMessage, EventNewRating, EventRequestExpired, EventRequestCancelled:
		return true
	}
	return false
}

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
	ChannelSMS   Channel = "sms"
)

// Event is something that happened to a request and must reach people.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	RequestID  string            `json:"request_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	ActionURL  string            `json:"action_url,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notification is the durable in-app inbox record of a delivered event.
type Notification struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	EventID   string     `json:"event_id" db:"event_id"`
	EventType EventType  `json:"event_type" db:"event_type"`
	RequestID string     `json:"request_id,omitempty" db:"request_id"`
	Title     string     `json:"title" db:"title"`
	Body      string     `json:"body" db:"body"`
	ActionURL string     `json:"action_url,omitempty" db:"action_url"`
	IsRead    bool       `json:"is_read" db:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

var eventNamespace = uuid.MustParse("6f1c2b8e-4a53-4d0e-9a57-3c0e5d1b7a21")

// EventID derives a stable event id from its parts so that re-emitting the
// same logical event yields the same idempotency keys.
func EventID(parts ...string) string {
	return uuid.NewSHA1(eventNamespace, []byte(strings.Join(parts, ":"))).String()
}
