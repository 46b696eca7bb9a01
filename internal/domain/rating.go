package domain

import "time"

const (
	MinScore = 1
	MaxScore = 5
)

// Rating is one participant's score of the other after completion.
type Rating struct {
	ID        string    `json:"id" db:"id"`
	RequestID string    `json:"request_id" db:"request_id"`
	RaterID   string    `json:"rater_id" db:"rater_id"`
	RaterType ActorRole `json:"rater_type" db:"rater_type"`
	RatedID   string    `json:"rated_id" db:"rated_id"`
	RatedType ActorRole `json:"rated_type" db:"rated_type"`
	Score     int       `json:"score" db:"score"`
	Comment   string    `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RatingSummary is the cached rolling average of a ratee.
type RatingSummary struct {
	UserID  string  `json:"user_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
