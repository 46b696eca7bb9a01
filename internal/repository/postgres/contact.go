package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/contact"
)

// ContactLedger implements contact.Ledger against PostgreSQL.
type ContactLedger struct{ db *sql.DB }

// NewContactLedger creates a Postgres-backed contact ledger.
func NewContactLedger(db *sql.DB) *ContactLedger { return &ContactLedger{db: db} }

func (l *ContactLedger) Viewed(ctx context.Context, viewerID, date string, target domain.ContactTarget) (*domain.ContactView, bool, error) {
	v, err := viewed(ctx, l.db, viewerID, date, target)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func viewed(ctx context.Context, q queryer, viewerID, date string, target domain.ContactTarget) (*domain.ContactView, error) {
	var (
		raw []byte
		at  time.Time
	)
	err := q.QueryRowContext(ctx, `
		SELECT contact, viewed_at FROM contact_views
		WHERE viewer_id = $1 AND view_date = $2 AND target_type = $3 AND target_id = $4
	`, viewerID, date, target.Type, target.ID).Scan(&raw, &at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get contact view", err)
	}
	v := &domain.ContactView{Target: target, ViewedAt: at}
	if err := json.Unmarshal(raw, &v.Contact); err != nil {
		return nil, storeErr("decode contact view", err)
	}
	return v, nil
}

// Charge serializes the viewer's day with a transaction-scoped advisory
// lock, so the count check and the insert cannot interleave.
func (l *ContactLedger) Charge(ctx context.Context, viewerID, date string, v domain.ContactView, maxViews int) (contact.ChargeResult, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return contact.ChargeResult{}, storeErr("begin charge", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, viewerID+"|"+date); err != nil {
		return contact.ChargeResult{}, storeErr("lock contact quota", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_views WHERE viewer_id = $1 AND view_date = $2`, viewerID, date,
	).Scan(&count); err != nil {
		return contact.ChargeResult{}, storeErr("count contact views", err)
	}

	prior, err := viewed(ctx, tx, viewerID, date, v.Target)
	if err != nil {
		return contact.ChargeResult{}, err
	}
	if prior != nil {
		return contact.ChargeResult{Charged: false, ViewCount: count, View: *prior}, nil
	}
	if count >= maxViews {
		return contact.ChargeResult{ViewCount: count}, contact.ErrQuotaExceeded
	}

	raw, err := json.Marshal(v.Contact)
	if err != nil {
		return contact.ChargeResult{}, storeErr("encode contact view", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO contact_views (viewer_id, view_date, target_type, target_id, contact, viewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, viewerID, date, v.Target.Type, v.Target.ID, raw, v.ViewedAt); err != nil {
		return contact.ChargeResult{}, storeErr("insert contact view", err)
	}
	if err := tx.Commit(); err != nil {
		return contact.ChargeResult{}, storeErr("commit charge", err)
	}
	return contact.ChargeResult{Charged: true, ViewCount: count + 1, View: v}, nil
}

func (l *ContactLedger) Views(ctx context.Context, viewerID, date string) ([]domain.ContactView, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT target_type, target_id, contact, viewed_at FROM contact_views
		WHERE viewer_id = $1 AND view_date = $2
		ORDER BY viewed_at
	`, viewerID, date)
	if err != nil {
		return nil, storeErr("list contact views", err)
	}
	defer rows.Close()

	var out []domain.ContactView
	for rows.Next() {
		var (
			v   domain.ContactView
			raw []byte
		)
		if err := rows.Scan(&v.Target.Type, &v.Target.ID, &raw, &v.ViewedAt); err != nil {
			return nil, storeErr("scan contact view", err)
		}
		if err := json.Unmarshal(raw, &v.Contact); err != nil {
			return nil, storeErr("decode contact view", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
