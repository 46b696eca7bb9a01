package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/matching"
)

// RequestRepo implements matching.Repository against PostgreSQL.
type RequestRepo struct{ db *sql.DB }

// NewRequestRepo creates a Postgres-backed matching request repository.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestColumns = `
	id, supplier_id, product_name, quantity, unit, destination_countries,
	price, currency, payment_terms, delivery_window, description,
	expiry_policy, status, accepted_response_id, accepted_visitor_id,
	accepted_at, completed_at, matched_visitor_count, version,
	created_at, expires_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.MatchingRequest, error) {
	var (
		r                       domain.MatchingRequest
		respID, visitorID       sql.NullString
		acceptedAt, completedAt sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.SupplierID, &r.ProductName, &r.Quantity, &r.Unit, pq.Array(&r.DestinationCountries),
		&r.Price, &r.Currency, &r.PaymentTerms, &r.DeliveryWindow, &r.Description,
		&r.ExpiryPolicy, &r.Status, &respID, &visitorID,
		&acceptedAt, &completedAt, &r.MatchedVisitorCount, &r.Version,
		&r.CreatedAt, &r.ExpiresAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.AcceptedResponseID = stringPtr(respID)
	r.AcceptedVisitorID = stringPtr(visitorID)
	r.AcceptedAt = timePtr(acceptedAt)
	r.CompletedAt = timePtr(completedAt)
	return &r, nil
}

func (r *RequestRepo) Create(ctx context.Context, req *domain.MatchingRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO matching_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`,
		req.ID, req.SupplierID, req.ProductName, req.Quantity, req.Unit, pq.Array(req.DestinationCountries),
		req.Price, req.Currency, req.PaymentTerms, req.DeliveryWindow, req.Description,
		req.ExpiryPolicy, req.Status, nullString(req.AcceptedResponseID), nullString(req.AcceptedVisitorID),
		nullTime(req.AcceptedAt), nullTime(req.CompletedAt), req.MatchedVisitorCount, req.Version,
		req.CreatedAt, req.ExpiresAt, req.UpdatedAt,
	)
	if err != nil {
		return storeErr("create matching request", err)
	}
	return nil
}

func (r *RequestRepo) Get(ctx context.Context, id string) (*domain.MatchingRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM matching_requests WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, matching.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get matching request", err)
	}
	return req, nil
}

// Update writes every mutable column when the stored version still equals
// req.Version, then bumps req.Version.
func (r *RequestRepo) Update(ctx context.Context, req *domain.MatchingRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matching_requests SET
			product_name = $3, quantity = $4, unit = $5, destination_countries = $6,
			price = $7, currency = $8, payment_terms = $9, delivery_window = $10,
			description = $11, expiry_policy = $12, status = $13,
			completed_at = $14, matched_visitor_count = $15, expires_at = $16,
			updated_at = $17, version = version + 1
		WHERE id = $1 AND version = $2
	`,
		req.ID, req.Version,
		req.ProductName, req.Quantity, req.Unit, pq.Array(req.DestinationCountries),
		req.Price, req.Currency, req.PaymentTerms, req.DeliveryWindow,
		req.Description, req.ExpiryPolicy, req.Status,
		nullTime(req.CompletedAt), req.MatchedVisitorCount, req.ExpiresAt,
		req.UpdatedAt,
	)
	if err != nil {
		return storeErr("update matching request", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		exists, err := r.exists(ctx, r.db, req.ID)
		if err != nil {
			return err
		}
		if !exists {
			return matching.ErrNotFound
		}
		return matching.ErrStale
	}
	req.Version++
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *RequestRepo) exists(ctx context.Context, q queryer, id string) (bool, error) {
	var ok bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM matching_requests WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, storeErr("check matching request", err)
	}
	return ok, nil
}

// Accept reserves the request for resp in one transaction. The conditional
// update is the compare-and-set; the partial unique index on accept
// responses backs it up.
func (r *RequestRepo) Accept(ctx context.Context, resp *domain.MatchingResponse) (*domain.MatchingRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin accept", err)
	}
	defer tx.Rollback()

	updated, err := scanRequest(tx.QueryRowContext(ctx, `
		UPDATE matching_requests SET
			status = 'accepted', accepted_response_id = $2, accepted_visitor_id = $3,
			accepted_at = $4, updated_at = $4, version = version + 1
		WHERE id = $1 AND status IN ('pending', 'active') AND accepted_response_id IS NULL
		RETURNING `+requestColumns,
		resp.RequestID, resp.ID, resp.VisitorID, resp.CreatedAt,
	))
	if err == sql.ErrNoRows {
		exists, xerr := r.exists(ctx, tx, resp.RequestID)
		if xerr != nil {
			return nil, xerr
		}
		if !exists {
			return nil, matching.ErrNotFound
		}
		return nil, matching.ErrAlreadyReserved
	}
	if err != nil {
		return nil, storeErr("accept matching request", err)
	}

	if err := insertResponse(ctx, tx, resp); err != nil {
		if isUniqueViolation(err) {
			return nil, matching.ErrAlreadyReserved
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit accept", err)
	}
	return updated, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertResponse(ctx context.Context, ex execer, resp *domain.MatchingResponse) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO matching_responses (id, request_id, visitor_id, action, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, resp.ID, resp.RequestID, resp.VisitorID, resp.Action, resp.Message, resp.CreatedAt)
	if err != nil {
		return storeErr("insert matching response", err)
	}
	return nil
}

func (r *RequestRepo) AddResponse(ctx context.Context, resp *domain.MatchingResponse) error {
	err := insertResponse(ctx, r.db, resp)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return matching.ErrNotFound
	}
	return err
}

func (r *RequestRepo) Responses(ctx context.Context, requestID string) ([]domain.MatchingResponse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, visitor_id, action, message, created_at
		FROM matching_responses
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, storeErr("list matching responses", err)
	}
	defer rows.Close()

	var out []domain.MatchingResponse
	for rows.Next() {
		var m domain.MatchingResponse
		if err := rows.Scan(&m.ID, &m.RequestID, &m.VisitorID, &m.Action, &m.Message, &m.CreatedAt); err != nil {
			return nil, storeErr("scan matching response", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *RequestRepo) ListBySupplier(ctx context.Context, supplierID string, f matching.ListFilter) ([]domain.MatchingRequest, int, error) {
	where := `WHERE supplier_id = $1`
	args := []any{supplierID}
	if f.Status != "" {
		where += ` AND status = $2`
		args = append(args, f.Status)
	}
	return r.list(ctx, where, args, f)
}

func (r *RequestRepo) ListOpen(ctx context.Context, now time.Time, countries []string, f matching.ListFilter) ([]domain.MatchingRequest, int, error) {
	where := `WHERE status IN ('pending', 'active') AND accepted_response_id IS NULL
		AND expires_at > $1 AND destination_countries && $2`
	return r.list(ctx, where, []any{now, pq.Array(countries)}, f)
}

func (r *RequestRepo) list(ctx context.Context, where string, args []any, f matching.ListFilter) ([]domain.MatchingRequest, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matching_requests `+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count matching requests", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM matching_requests %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, storeErr("list matching requests", err)
	}
	defer rows.Close()

	out := []domain.MatchingRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, storeErr("scan matching request", err)
		}
		out = append(out, *req)
	}
	return out, total, rows.Err()
}

func (r *RequestRepo) ListExpiring(ctx context.Context, now time.Time, limit int) ([]domain.MatchingRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM matching_requests
		WHERE status IN ('pending', 'active') AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, storeErr("list expiring requests", err)
	}
	defer rows.Close()

	var out []domain.MatchingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, storeErr("scan matching request", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// RecordNotified inserts the (request, visitor) pairs and returns the
// visitors that were not recorded before.
func (r *RequestRepo) RecordNotified(ctx context.Context, requestID string, visitorIDs []string, at time.Time) ([]string, error) {
	if len(visitorIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO request_notifications (request_id, visitor_id, notified_at)
		SELECT $1, v, $3 FROM unnest($2::text[]) AS v
		ON CONFLICT (request_id, visitor_id) DO NOTHING
		RETURNING visitor_id
	`, requestID, pq.Array(visitorIDs), at)
	if err != nil {
		return nil, storeErr("record notified visitors", err)
	}
	defer rows.Close()

	var fresh []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan notified visitor", err)
		}
		fresh = append(fresh, id)
	}
	return fresh, rows.Err()
}
