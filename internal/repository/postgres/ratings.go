package postgres

import (
	"context"
	"database/sql"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/rating"
)

// RatingRepo implements rating.Repository against PostgreSQL.
type RatingRepo struct{ db *sql.DB }

// NewRatingRepo creates a Postgres-backed rating repository.
func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

const ratingColumns = `id, request_id, rater_id, rater_type, rated_id, rated_type, score, comment, created_at`

func (r *RatingRepo) Create(ctx context.Context, rt *domain.Rating) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratings (`+ratingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rt.ID, rt.RequestID, rt.RaterID, rt.RaterType, rt.RatedID, rt.RatedType, rt.Score, rt.Comment, rt.CreatedAt)
	if isUniqueViolation(err) {
		return rating.ErrDuplicate
	}
	if err != nil {
		return storeErr("create rating", err)
	}
	return nil
}

func (r *RatingRepo) scan(rows *sql.Rows) ([]domain.Rating, error) {
	defer rows.Close()
	var out []domain.Rating
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.ID, &rt.RequestID, &rt.RaterID, &rt.RaterType, &rt.RatedID, &rt.RatedType,
			&rt.Score, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, storeErr("scan rating", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *RatingRepo) ForRequest(ctx context.Context, requestID string) ([]domain.Rating, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, storeErr("list request ratings", err)
	}
	return r.scan(rows)
}

func (r *RatingRepo) ForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Rating, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings WHERE rated_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, storeErr("count ratings", err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+ratingColumns+` FROM ratings
		WHERE rated_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, storeErr("list user ratings", err)
	}
	out, err := r.scan(rows)
	return out, total, err
}

func (r *RatingRepo) Summary(ctx context.Context, userID string) (domain.RatingSummary, error) {
	s := domain.RatingSummary{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(score), 0)::float8, COUNT(*) FROM ratings WHERE rated_id = $1`, userID,
	).Scan(&s.Average, &s.Count)
	if err != nil {
		return s, storeErr("rating summary", err)
	}
	return s, nil
}
