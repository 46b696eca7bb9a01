package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
)

// Directory is an in-memory user, visitor and product directory. It serves
// visitor eligibility, notification recipients and contact reveals.
type Directory struct {
	mu       sync.RWMutex
	users    map[string]domain.UserProfile
	visitors map[string]domain.Visitor
	products map[string]domain.ContactInfo
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users:    make(map[string]domain.UserProfile),
		visitors: make(map[string]domain.Visitor),
		products: make(map[string]domain.ContactInfo),
	}
}

// PutUser adds or replaces a user profile.
func (d *Directory) PutUser(p domain.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[p.ID] = p
}

// PutVisitor adds or replaces a visitor profile.
func (d *Directory) PutVisitor(v domain.Visitor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v.DestinationCountries = domain.NormalizeCountries(v.DestinationCountries)
	d.visitors[v.ID] = v
}

// PutProduct adds or replaces the contact behind an available product.
func (d *Directory) PutProduct(c domain.ContactInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c.TargetType = domain.TargetAvailableProduct
	d.products[c.TargetID] = c
}

func (d *Directory) EligibleVisitors(_ context.Context, countries []string) ([]domain.Visitor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	want := make(map[string]bool, len(countries))
	for _, c := range countries {
		want[strings.ToUpper(c)] = true
	}
	var out []domain.Visitor
	for _, v := range d.visitors {
		if v.Status != domain.VisitorApproved {
			continue
		}
		for _, c := range v.DestinationCountries {
			if want[c] {
				out = append(out, v)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) Visitor(_ context.Context, id string) (*domain.Visitor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.visitors[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "visitor not found")
	}
	return &v, nil
}

// Recipient returns the delivery profile of userID. A visitor without a
// user record is resolved from the visitor profile.
func (d *Directory) Recipient(_ context.Context, userID string) (domain.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.users[userID]; ok {
		return p.Recipient(), nil
	}
	if v, ok := d.visitors[userID]; ok {
		return domain.Recipient{UserID: v.ID, Role: domain.RoleVisitor, Phone: v.Phone, PhoneVerified: v.PhoneVerified}, nil
	}
	return domain.Recipient{}, apperr.New(apperr.KindNotFound, "user not found")
}

func (d *Directory) Contact(_ context.Context, target domain.ContactTarget) (*domain.ContactInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch target.Type {
	case domain.TargetAvailableProduct:
		if c, ok := d.products[target.ID]; ok {
			return &c, nil
		}
	case domain.TargetSupplier, domain.TargetVisitor:
		want := domain.RoleSupplier
		if target.Type == domain.TargetVisitor {
			want = domain.RoleVisitor
		}
		if p, ok := d.users[target.ID]; ok && p.Role == want {
			c := p.ContactInfo()
			return &c, nil
		}
	}
	return nil, apperr.Newf(apperr.KindNotFound, "%s %s not found", target.Type, target.ID)
}
