package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/contact"
	"github.com/aslmarket/aslmatch/internal/service/matching"
	"github.com/aslmarket/aslmatch/internal/service/notification"
	"github.com/aslmarket/aslmatch/internal/service/rating"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

var (
	now            = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	requestColumnN = []string{
		"id", "supplier_id", "product_name", "quantity", "unit", "destination_countries",
		"price", "currency", "payment_terms", "delivery_window", "description",
		"expiry_policy", "status", "accepted_response_id", "accepted_visitor_id",
		"accepted_at", "completed_at", "matched_visitor_count", "version",
		"created_at", "expires_at", "updated_at",
	}
)

func requestRows(status string, acceptedBy any) *sqlmock.Rows {
	var respID, acceptedAt any
	if acceptedBy != nil {
		respID, acceptedAt = "resp-1", now
	}
	return sqlmock.NewRows(requestColumnN).AddRow(
		"req-1", "supplier-1", "Saffron", 100.0, "kg", "{AE,IQ}",
		"12.50", "USD", "net 30", "", "",
		int64(7), status, respID, acceptedBy,
		acceptedAt, nil, int64(2), int64(3),
		now, now.Add(7*24*time.Hour), now,
	)
}

// =============================================================================
// MATCHING REQUESTS
// =============================================================================

func TestRequestRepo_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewRequestRepo(db)

	mock.ExpectQuery("SELECT .* FROM matching_requests WHERE id = \\$1").
		WithArgs("req-1").
		WillReturnRows(requestRows("active", nil))

	req, err := repo.Get(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if req.Status != domain.RequestActive || req.ExpiryPolicy != domain.Expiry7Days {
		t.Errorf("unexpected request: %+v", req)
	}
	if len(req.DestinationCountries) != 2 || req.DestinationCountries[1] != "IQ" {
		t.Errorf("countries = %v", req.DestinationCountries)
	}
	if req.AcceptedVisitorID != nil {
		t.Errorf("expected no accepted visitor")
	}
}

func TestRequestRepo_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM matching_requests").WillReturnError(sql.ErrNoRows)

	_, err := NewRequestRepo(db).Get(context.Background(), "missing")
	if !errors.Is(err, matching.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestRepo_UpdateStale(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE matching_requests SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	req := &domain.MatchingRequest{ID: "req-1", Version: 2, Status: domain.RequestActive}
	err := NewRequestRepo(db).Update(context.Background(), req)
	if !errors.Is(err, matching.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if req.Version != 2 {
		t.Errorf("version bumped on failed update: %d", req.Version)
	}
}

func TestRequestRepo_UpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE matching_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))

	req := &domain.MatchingRequest{ID: "req-1", Version: 2, Status: domain.RequestExpired}
	if err := NewRequestRepo(db).Update(context.Background(), req); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if req.Version != 3 {
		t.Errorf("version = %d, want 3", req.Version)
	}
}

func TestRequestRepo_AcceptWins(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE matching_requests SET").
		WithArgs("req-1", "resp-1", "visitor-1", now).
		WillReturnRows(requestRows("accepted", "visitor-1"))
	mock.ExpectExec("INSERT INTO matching_responses").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := NewRequestRepo(db).Accept(context.Background(), &domain.MatchingResponse{
		ID: "resp-1", RequestID: "req-1", VisitorID: "visitor-1", Action: domain.ActionAccept, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.AcceptedVisitorID == nil || *got.AcceptedVisitorID != "visitor-1" {
		t.Errorf("accepted visitor = %v", got.AcceptedVisitorID)
	}
}

func TestRequestRepo_AcceptLosesCompareAndSet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE matching_requests SET").WillReturnRows(sqlmock.NewRows(requestColumnN))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := NewRequestRepo(db).Accept(context.Background(), &domain.MatchingResponse{ID: "resp-2", RequestID: "req-1", VisitorID: "visitor-2"})
	if !errors.Is(err, matching.ErrAlreadyReserved) {
		t.Fatalf("expected ErrAlreadyReserved, got %v", err)
	}
}

func TestRequestRepo_AcceptUniqueViolation(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE matching_requests SET").WillReturnRows(requestRows("accepted", "visitor-1"))
	mock.ExpectExec("INSERT INTO matching_responses").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := NewRequestRepo(db).Accept(context.Background(), &domain.MatchingResponse{ID: "resp-1", RequestID: "req-1", VisitorID: "visitor-1"})
	if !errors.Is(err, matching.ErrAlreadyReserved) {
		t.Fatalf("expected ErrAlreadyReserved, got %v", err)
	}
}

func TestRequestRepo_RecordNotified(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO request_notifications").
		WillReturnRows(sqlmock.NewRows([]string{"visitor_id"}).AddRow("v-2"))

	fresh, err := NewRequestRepo(db).RecordNotified(context.Background(), "req-1", []string{"v-1", "v-2"}, now)
	if err != nil {
		t.Fatalf("RecordNotified: %v", err)
	}
	if len(fresh) != 1 || fresh[0] != "v-2" {
		t.Errorf("fresh = %v", fresh)
	}

	none, err := NewRequestRepo(db).RecordNotified(context.Background(), "req-1", nil, now)
	if err != nil || none != nil {
		t.Errorf("empty input should not query, got %v %v", none, err)
	}
}

func TestRequestRepo_ListOpen(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM matching_requests WHERE status IN").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
		WillReturnRows(requestRows("active", nil))

	list, total, err := NewRequestRepo(db).ListOpen(context.Background(), now, []string{"AE"}, matching.ListFilter{Limit: 50})
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Errorf("got %d rows, total %d", len(list), total)
	}
}

// =============================================================================
// CHAT
// =============================================================================

func TestChatRepo_AppendMessageAssignsSeq(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	later := now.Add(time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE conversations").
		WithArgs("conv-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq", "last_message_at"}).AddRow(int64(4), later))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("msg-1", "conv-1", int64(4), "visitor-1", sqlmock.AnyArg(), "hello", "", later).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := &domain.Message{ID: "msg-1", ConversationID: "conv-1", SenderID: "visitor-1", SenderType: domain.SenderVisitor, Body: "hello", CreatedAt: now}
	if err := NewChatRepo(db).AppendMessage(context.Background(), m); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if m.Seq != 4 || !m.CreatedAt.Equal(later) {
		t.Errorf("seq=%d created=%v", m.Seq, m.CreatedAt)
	}
}

func TestChatRepo_MarkRead(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE messages SET is_read = true").
		WithArgs("conv-1", "supplier-1", int64(3), now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewChatRepo(db).MarkRead(context.Background(), "conv-1", "supplier-1", 3, now)
	if err != nil || n != 2 {
		t.Fatalf("MarkRead = %d, %v", n, err)
	}
}

// =============================================================================
// RATINGS
// =============================================================================

func TestRatingRepo_CreateDuplicate(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO ratings").WillReturnError(&pq.Error{Code: "23505"})

	err := NewRatingRepo(db).Create(context.Background(), &domain.Rating{ID: "r1", RequestID: "req-1", RaterID: "supplier-1", Score: 5})
	if !errors.Is(err, rating.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRatingRepo_Summary(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COALESCE\\(AVG\\(score\\), 0\\)").
		WithArgs("visitor-1").
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(4.5, 2))

	s, err := NewRatingRepo(db).Summary(context.Background(), "visitor-1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Average != 4.5 || s.Count != 2 {
		t.Errorf("summary = %+v", s)
	}
}

// =============================================================================
// CONTACT LEDGER
// =============================================================================

func TestContactLedger_ChargeQuotaExceeded(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs("viewer|2026-03-01").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("SELECT contact, viewed_at FROM contact_views").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	target := domain.ContactTarget{Type: domain.TargetSupplier, ID: "s6"}
	_, err := NewContactLedger(db).Charge(context.Background(), "viewer", "2026-03-01", domain.ContactView{Target: target, ViewedAt: now}, 5)
	if !errors.Is(err, contact.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestContactLedger_ChargeRepeatIsFree(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("SELECT contact, viewed_at FROM contact_views").
		WillReturnRows(sqlmock.NewRows([]string{"contact", "viewed_at"}).
			AddRow([]byte(`{"type":"supplier","id":"s1","name":"Old Name","mobile":"+971500000001","email":"s1@example.com"}`), now))
	mock.ExpectRollback()

	target := domain.ContactTarget{Type: domain.TargetSupplier, ID: "s1"}
	res, err := NewContactLedger(db).Charge(context.Background(), "viewer", "2026-03-01", domain.ContactView{Target: target, ViewedAt: now}, 5)
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if res.Charged || res.View.Contact.Name != "Old Name" || res.ViewCount != 5 {
		t.Errorf("unexpected result %+v", res)
	}
}

// =============================================================================
// INBOX AND DIRECTORY
// =============================================================================

func TestInboxRepo_InsertConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := NewInboxRepo(db).Insert(context.Background(), &domain.Notification{ID: "n1", UserID: "u1", EventID: "ev-1", CreatedAt: now})
	if err != nil || inserted {
		t.Fatalf("Insert = %v, %v; want false, nil", inserted, err)
	}
}

func TestInboxRepo_MarkReadForeign(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE notifications SET is_read = true").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewInboxRepo(db).MarkRead(context.Background(), "u2", "n1", now)
	if !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectoryRepo_ContactRoleMismatch(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "name", "email", "mobile", "phone_verified", "timezone", "plan"}).
			AddRow("u1", "visitor", "Vee", "v@example.com", "+971500000009", true, "", ""))

	_, err := NewDirectoryRepo(db).Contact(context.Background(), domain.ContactTarget{Type: domain.TargetSupplier, ID: "u1"})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDirectoryRepo_EligibleVisitors(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("WHERE v.status = 'approved'").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "display_name", "destination_countries", "interested_products",
			"language_level", "has_marketing_experience", "is_featured", "status",
			"approved_at", "mobile", "phone_verified",
		}).AddRow("v1", "Vee", "{AE}", "{saffron}", "good", true, false, "approved", now, "+971500000009", true))

	list, err := NewDirectoryRepo(db).EligibleVisitors(context.Background(), []string{"AE"})
	if err != nil {
		t.Fatalf("EligibleVisitors: %v", err)
	}
	if len(list) != 1 || list[0].InterestedProducts[0] != "saffron" || list[0].ApprovedAt == nil {
		t.Errorf("unexpected visitors %+v", list)
	}
}

func TestStoreErrMarksConnectionFailuresTransient(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"not null violation", &pq.Error{Code: "23502"}, false},
		{"undefined column", &pq.Error{Code: "42703"}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unclassified", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			mock.ExpectQuery("FROM matching_requests").WillReturnError(tc.err)

			_, err := NewRequestRepo(db).Get(context.Background(), "req-1")
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, apperr.ErrTransient); got != tc.transient {
				t.Fatalf("transient = %v, want %v (%v)", got, tc.transient, err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("cause lost: %v", err)
			}
		})
	}
}
