package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/service/contact"
	"github.com/aslmarket/aslmatch/internal/service/matching"
	"github.com/aslmarket/aslmatch/internal/service/rating"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestRequestStoreUpdateIsCompareAndSet(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.MatchingRequest{ID: "r1", Status: domain.RequestActive, Version: 1}))

	a, _ := s.Get(ctx, "r1")
	b, _ := s.Get(ctx, "r1")
	a.Status = domain.RequestCancelled
	require.NoError(t, s.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Status = domain.RequestExpired
	assert.True(t, errors.Is(s.Update(ctx, b), matching.ErrStale))
}

func TestRequestStoreAcceptOnce(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.MatchingRequest{ID: "r1", Status: domain.RequestActive, Version: 1}))

	got, err := s.Accept(ctx, &domain.MatchingResponse{ID: "a", RequestID: "r1", VisitorID: "v1", Action: domain.ActionAccept, CreatedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestAccepted, got.Status)

	_, err = s.Accept(ctx, &domain.MatchingResponse{ID: "b", RequestID: "r1", VisitorID: "v2", Action: domain.ActionAccept, CreatedAt: t0})
	assert.True(t, errors.Is(err, matching.ErrAlreadyReserved))

	resps, err := s.Responses(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, resps, 1)
}

func TestRequestStoreRecordNotified(t *testing.T) {
	s := NewRequestStore()
	ctx := context.Background()
	fresh, err := s.RecordNotified(ctx, "r1", []string{"a", "b"}, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fresh)

	fresh, err = s.RecordNotified(ctx, "r1", []string{"b", "c"}, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, fresh)
}

func TestChatStoreSeqAndClock(t *testing.T) {
	s := NewChatStore()
	ctx := context.Background()
	c, err := s.CreateConversation(ctx, &domain.Conversation{ID: "c1", RequestID: "r1", SupplierID: "s", VisitorID: "v", CreatedAt: t0})
	require.NoError(t, err)

	again, err := s.CreateConversation(ctx, &domain.Conversation{ID: "c2", RequestID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	m1 := &domain.Message{ID: "m1", ConversationID: "c1", SenderID: "s", CreatedAt: t0.Add(time.Minute)}
	m2 := &domain.Message{ID: "m2", ConversationID: "c1", SenderID: "v", CreatedAt: t0}
	require.NoError(t, s.AppendMessage(ctx, m1))
	require.NoError(t, s.AppendMessage(ctx, m2))
	assert.Equal(t, int64(2), m2.Seq)
	assert.Equal(t, m1.CreatedAt, m2.CreatedAt)

	page, err := s.Messages(ctx, "c1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "m2", page[0].ID)
}

func TestRatingStoreUniquePerRater(t *testing.T) {
	s := NewRatingStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.Rating{ID: "1", RequestID: "r1", RaterID: "s", RatedID: "v", Score: 4}))
	err := s.Create(ctx, &domain.Rating{ID: "2", RequestID: "r1", RaterID: "s", RatedID: "v", Score: 1})
	assert.True(t, errors.Is(err, rating.ErrDuplicate))

	require.NoError(t, s.Create(ctx, &domain.Rating{ID: "3", RequestID: "r2", RaterID: "s", RatedID: "v", Score: 5}))
	sum, err := s.Summary(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 4.5, sum.Average)
}

func TestContactLedgerCharge(t *testing.T) {
	l := NewContactLedger()
	ctx := context.Background()
	v := func(id string) domain.ContactView {
		return domain.ContactView{Target: domain.ContactTarget{Type: domain.TargetVisitor, ID: id}, ViewedAt: t0}
	}

	res, err := l.Charge(ctx, "viewer", "2026-03-01", v("a"), 1)
	require.NoError(t, err)
	assert.True(t, res.Charged)

	res, err = l.Charge(ctx, "viewer", "2026-03-01", v("a"), 1)
	require.NoError(t, err)
	assert.False(t, res.Charged)

	_, err = l.Charge(ctx, "viewer", "2026-03-01", v("b"), 1)
	assert.True(t, errors.Is(err, contact.ErrQuotaExceeded))

	res, err = l.Charge(ctx, "viewer", "2026-03-02", v("b"), 1)
	require.NoError(t, err)
	assert.True(t, res.Charged)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	clk := clock.NewFake(t0)
	s := NewIdempotencyStore(time.Hour, clk)
	ctx := context.Background()

	require.NoError(t, s.MarkDelivered(ctx, "k"))
	done, _ := s.Delivered(ctx, "k")
	assert.True(t, done)

	clk.Advance(time.Hour)
	done, _ = s.Delivered(ctx, "k")
	assert.False(t, done)
}

func TestDirectoryEligibleVisitors(t *testing.T) {
	d := NewDirectory()
	d.PutVisitor(domain.Visitor{ID: "b", Status: domain.VisitorApproved, DestinationCountries: []string{"ae"}})
	d.PutVisitor(domain.Visitor{ID: "a", Status: domain.VisitorApproved, DestinationCountries: []string{"IQ", "AE"}})
	d.PutVisitor(domain.Visitor{ID: "c", Status: domain.VisitorBlocked, DestinationCountries: []string{"AE"}})

	got, err := d.EligibleVisitors(context.Background(), []string{"AE"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - id: s-1
    role: supplier
    name: Desert Dates
    mobile: "+971501111111"
    timezone: Asia/Dubai
visitors:
  - id: v-1
    display_name: Mona
    destination_countries: [ae, sa]
    phone: "+971502222222"
    phone_verified: true
  - id: v-2
    status: pending
products:
  - id: p-1
    name: Saffron
`), 0o600))

	d := NewDirectory()
	n, err := LoadSeed(d, path, t0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ctx := context.Background()
	eligible, err := d.EligibleVisitors(ctx, []string{"SA"})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "v-1", eligible[0].ID)
	require.NotNil(t, eligible[0].ApprovedAt)

	r, err := d.Recipient(ctx, "v-1")
	require.NoError(t, err)
	assert.True(t, r.CanReceiveSMS())

	c, err := d.Contact(ctx, domain.ContactTarget{Type: domain.TargetAvailableProduct, ID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "Saffron", c.Name)
}

func TestLoadSeedRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: x\n    role: admin\n"), 0o600))
	_, err := LoadSeed(NewDirectory(), path, t0)
	assert.Error(t, err)
}
