package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
)

// DirectoryRepo reads the user, visitor and product tables for visitor
// eligibility, notification recipients and contact reveals.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed directory.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

const visitorSelect = `
	SELECT v.id, v.display_name, v.destination_countries, v.interested_products,
	       v.language_level, v.has_marketing_experience, v.is_featured, v.status,
	       v.approved_at, u.mobile, u.phone_verified
	FROM visitors v JOIN users u ON u.id = v.id`

func scanVisitor(row rowScanner) (*domain.Visitor, error) {
	var (
		v          domain.Visitor
		approvedAt sql.NullTime
	)
	err := row.Scan(&v.ID, &v.DisplayName, pq.Array(&v.DestinationCountries), pq.Array(&v.InterestedProducts),
		&v.LanguageLevel, &v.HasMarketingExperience, &v.IsFeatured, &v.Status,
		&approvedAt, &v.Phone, &v.PhoneVerified)
	if err != nil {
		return nil, err
	}
	v.ApprovedAt = timePtr(approvedAt)
	return &v, nil
}

func (r *DirectoryRepo) EligibleVisitors(ctx context.Context, countries []string) ([]domain.Visitor, error) {
	rows, err := r.db.QueryContext(ctx, visitorSelect+`
		WHERE v.status = 'approved' AND v.destination_countries && $1
		ORDER BY v.id
	`, pq.Array(countries))
	if err != nil {
		return nil, storeErr("list eligible visitors", err)
	}
	defer rows.Close()

	var out []domain.Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, storeErr("scan visitor", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *DirectoryRepo) Visitor(ctx context.Context, id string) (*domain.Visitor, error) {
	v, err := scanVisitor(r.db.QueryRowContext(ctx, visitorSelect+` WHERE v.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "visitor not found")
	}
	if err != nil {
		return nil, storeErr("get visitor", err)
	}
	return v, nil
}

func (r *DirectoryRepo) profile(ctx context.Context, id string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, role, name, email, mobile, phone_verified, timezone, plan
		FROM users WHERE id = $1
	`, id).Scan(&p.ID, &p.Role, &p.Name, &p.Email, &p.Mobile, &p.PhoneVerified, &p.Timezone, &p.Plan)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return &p, nil
}

func (r *DirectoryRepo) Recipient(ctx context.Context, userID string) (domain.Recipient, error) {
	p, err := r.profile(ctx, userID)
	if err != nil {
		return domain.Recipient{}, err
	}
	return p.Recipient(), nil
}

func (r *DirectoryRepo) Contact(ctx context.Context, target domain.ContactTarget) (*domain.ContactInfo, error) {
	switch target.Type {
	case domain.TargetAvailableProduct:
		c := domain.ContactInfo{TargetType: target.Type, TargetID: target.ID}
		err := r.db.QueryRowContext(ctx,
			`SELECT name, mobile, email FROM available_products WHERE id = $1`, target.ID,
		).Scan(&c.Name, &c.Mobile, &c.Email)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, storeErr("get product contact", err)
		}
		return &c, nil
	case domain.TargetSupplier, domain.TargetVisitor:
		p, err := r.profile(ctx, target.ID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				break
			}
			return nil, err
		}
		c := p.ContactInfo()
		if p.Role == domain.RoleAdmin || c.TargetType != target.Type {
			break
		}
		return &c, nil
	}
	return nil, apperr.Newf(apperr.KindNotFound, "%s %s not found", target.Type, target.ID)
}
