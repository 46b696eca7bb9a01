package memory

import (
	"context"
	"sync"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/contact"
)

// ContactLedger implements contact.Ledger. Days are never purged; the
// process lifetime bounds growth.
type ContactLedger struct {
	mu    sync.Mutex
	views map[string][]domain.ContactView // viewer id + date
}

// NewContactLedger creates an empty ledger.
func NewContactLedger() *ContactLedger {
	return &ContactLedger{views: make(map[string][]domain.ContactView)}
}

func ledgerKey(viewerID, date string) string { return viewerID + "|" + date }

func (l *ContactLedger) Viewed(_ context.Context, viewerID, date string, target domain.ContactTarget) (*domain.ContactView, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.views[ledgerKey(viewerID, date)] {
		if v.Target.Key() == target.Key() {
			cp := v
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (l *ContactLedger) Charge(_ context.Context, viewerID, date string, v domain.ContactView, maxViews int) (contact.ChargeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(viewerID, date)
	views := l.views[key]
	for _, prior := range views {
		if prior.Target.Key() == v.Target.Key() {
			return contact.ChargeResult{Charged: false, ViewCount: len(views), View: prior}, nil
		}
	}
	if len(views) >= maxViews {
		return contact.ChargeResult{ViewCount: len(views)}, contact.ErrQuotaExceeded
	}
	l.views[key] = append(views, v)
	return contact.ChargeResult{Charged: true, ViewCount: len(views) + 1, View: v}, nil
}

func (l *ContactLedger) Views(_ context.Context, viewerID, date string) ([]domain.ContactView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ContactView(nil), l.views[ledgerKey(viewerID, date)]...), nil
}
