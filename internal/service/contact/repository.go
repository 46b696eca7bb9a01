package contact

import (
	"context"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// Ledger is the per-viewer, per-day record of charged reveals.
// Implementations must make Charge atomic.
type Ledger interface {
	// Viewed returns the charged view of target for (viewerID, date), if any.
	Viewed(ctx context.Context, viewerID, date string, target domain.ContactTarget) (*domain.ContactView, bool, error)

	// Charge records v for (viewerID, date) unless already recorded. It
	// fails with ErrQuotaExceeded when maxViews distinct targets are
	// already recorded. On a repeat it returns the stored view uncharged.
	Charge(ctx context.Context, viewerID, date string, v domain.ContactView, maxViews int) (ChargeResult, error)

	// Views returns every view charged for (viewerID, date), oldest first.
	Views(ctx context.Context, viewerID, date string) ([]domain.ContactView, error)
}

// ChargeResult reports the outcome of a Charge.
type ChargeResult struct {
	Charged   bool
	ViewCount int
	View      domain.ContactView
}

// Directory resolves the real contact data of a target.
type Directory interface {
	// Contact returns ErrNotFound for unknown targets.
	Contact(ctx context.Context, target domain.ContactTarget) (*domain.ContactInfo, error)
}

// ProfileResolver supplies the viewer's timezone and plan.
type ProfileResolver interface {
	Recipient(ctx context.Context, userID string) (domain.Recipient, error)
}
