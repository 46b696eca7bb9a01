package domain

import "time"

// ActorRole is the marketplace role of an authenticated caller.
type ActorRole string

const (
	RoleSupplier ActorRole = "supplier"
	RoleVisitor  ActorRole = "visitor"
	RoleAdmin    ActorRole = "admin"
)

// Valid reports whether r is a known role.
func (r ActorRole) Valid() bool {
	return r == RoleSupplier || r == RoleVisitor || r == RoleAdmin
}

// Actor is the caller identity resolved upstream.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}

// VisitorStatus is the approval state of a visitor profile.
type VisitorStatus string

const (
	VisitorApproved VisitorStatus = "approved"
	VisitorPending  VisitorStatus = "pending"
	VisitorBlocked  VisitorStatus = "blocked"
)

// Visitor is the directory view of a field agent used for eligibility.
type Visitor struct {
	ID                     string        `json:"id" db:"id"`
	DisplayName            string        `json:"display_name" db:"display_name"`
	DestinationCountries   []string      `json:"destination_countries" db:"destination_countries"`
	InterestedProducts     []string      `json:"interested_products" db:"interested_products"`
	LanguageLevel          string        `json:"language_level" db:"language_level"`
	HasMarketingExperience bool          `json:"has_marketing_experience" db:"has_marketing_experience"`
	IsFeatured             bool          `json:"is_featured" db:"is_featured"`
	Status                 VisitorStatus `json:"status" db:"status"`
	ApprovedAt             *time.Time    `json:"approved_at,omitempty" db:"approved_at"`
	Phone                  string        `json:"-" db:"phone"`
	PhoneVerified          bool          `json:"phone_verified" db:"phone_verified"`
}

// ScoredVisitor pairs a visitor with its eligibility score.
type ScoredVisitor struct {
	Visitor Visitor `json:"visitor"`
	Score   int     `json:"score"`
}

// Recipient is the delivery view of a notification target.
type Recipient struct {
	UserID        string    `json:"user_id"`
	Role          ActorRole `json:"role"`
	Phone         string    `json:"-"`
	PhoneVerified bool      `json:"phone_verified"`
	Timezone      string    `json:"timezone,omitempty"`
	Plan          string    `json:"plan,omitempty"`
}

// CanReceiveSMS reports whether SMS may be sent; only verified visitors qualify.
func (r Recipient) CanReceiveSMS() bool {
	return r.Role == RoleVisitor && r.PhoneVerified && r.Phone != ""
}

// UserProfile is the directory record behind an actor id: contact data for
// reveals and delivery settings for notifications.
type UserProfile struct {
	ID            string    `json:"id" db:"id"`
	Role          ActorRole `json:"role" db:"role"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"-" db:"email"`
	Mobile        string    `json:"-" db:"mobile"`
	PhoneVerified bool      `json:"phone_verified" db:"phone_verified"`
	Timezone      string    `json:"timezone,omitempty" db:"timezone"`
	Plan          string    `json:"plan,omitempty" db:"plan"`
}

// Recipient returns the delivery view of the profile.
func (p UserProfile) Recipient() Recipient {
	return Recipient{
		UserID:        p.ID,
		Role:          p.Role,
		Phone:         p.Mobile,
		PhoneVerified: p.PhoneVerified,
		Timezone:      p.Timezone,
		Plan:          p.Plan,
	}
}

// ContactInfo returns the revealable contact payload of the profile.
func (p UserProfile) ContactInfo() ContactInfo {
	t := TargetSupplier
	if p.Role == RoleVisitor {
		t = TargetVisitor
	}
	return ContactInfo{TargetType: t, TargetID: p.ID, Name: p.Name, Mobile: p.Mobile, Email: p.Email}
}
