package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/notification"
)

// InboxRepo implements notification.InboxRepository against PostgreSQL.
type InboxRepo struct{ db *sql.DB }

// NewInboxRepo creates a Postgres-backed inbox.
func NewInboxRepo(db *sql.DB) *InboxRepo { return &InboxRepo{db: db} }

func (r *InboxRepo) Insert(ctx context.Context, n *domain.Notification) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, event_id, event_type, request_id, title, body, action_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
		ON CONFLICT (event_id, user_id) DO NOTHING
	`, n.ID, n.UserID, n.EventID, n.EventType, n.RequestID, n.Title, n.Body, n.ActionURL, n.CreatedAt)
	if err != nil {
		return false, storeErr("insert notification", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (r *InboxRepo) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, int, error) {
	where := `WHERE user_id = $1`
	if unreadOnly {
		where += ` AND NOT is_read`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications `+where, userID).Scan(&total); err != nil {
		return nil, 0, storeErr("count notifications", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, event_id, event_type, request_id, title, body, action_url, is_read, read_at, created_at
		FROM notifications `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, storeErr("list notifications", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n      domain.Notification
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.EventType, &n.RequestID, &n.Title, &n.Body,
			&n.ActionURL, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
			return nil, 0, storeErr("scan notification", err)
		}
		n.ReadAt = timePtr(readAt)
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *InboxRepo) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`, id, userID, at)
	if err != nil {
		return storeErr("mark notification read", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *InboxRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true, read_at = $2 WHERE user_id = $1 AND NOT is_read`, userID, at)
	if err != nil {
		return 0, storeErr("mark all notifications read", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *InboxRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n); err != nil {
		return 0, storeErr("count unread notifications", err)
	}
	return n, nil
}
