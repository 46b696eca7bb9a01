package domain

import "time"

// ContactTargetType is the kind of profile whose contact data can be revealed.
type ContactTargetType string

const (
	TargetSupplier         ContactTargetType = "supplier"
	TargetVisitor          ContactTargetType = "visitor"
	TargetAvailableProduct ContactTargetType = "available_product"
)

// Valid reports whether t is a known target type.
func (t ContactTargetType) Valid() bool {
	return t == TargetSupplier || t == TargetVisitor || t == TargetAvailableProduct
}

// ContactTarget identifies one revealable profile.
type ContactTarget struct {
	Type ContactTargetType `json:"type"`
	ID   string            `json:"id"`
}

// Key returns the ledger key of the target.
func (t ContactTarget) Key() string {
	return string(t.Type) + ":" + t.ID
}

// ContactInfo is the real contact payload behind a quota check.
type ContactInfo struct {
	TargetType ContactTargetType `json:"type"`
	TargetID   string            `json:"id"`
	Name       string            `json:"name"`
	Mobile     string            `json:"mobile"`
	Email      string            `json:"email"`
}

// ContactQuota is a viewer's ledger for one calendar day.
type ContactQuota struct {
	ViewerID      string          `json:"viewer_id"`
	Date          string          `json:"date"`
	MaxViews      int             `json:"max_views"`
	ViewedTargets []ContactTarget `json:"viewed_targets"`
	ViewCount     int             `json:"view_count"`
}

// Remaining returns the views left for the day.
func (q ContactQuota) Remaining() int {
	if r := q.MaxViews - q.ViewCount; r > 0 {
		return r
	}
	return 0
}

// ContactView is one charged reveal. Contact is the payload as it was when
// charged; repeat views return it unchanged.
type ContactView struct {
	Target   ContactTarget `json:"target"`
	Contact  ContactInfo   `json:"contact"`
	ViewedAt time.Time     `json:"viewed_at"`
}
