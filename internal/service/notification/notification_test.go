package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
	"github.com/aslmarket/aslmatch/internal/repository/memory"
	"github.com/aslmarket/aslmatch/internal/service/notification"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type captureQueue struct {
	mu   sync.Mutex
	jobs []notification.Job
	err  error
}

func (q *captureQueue) Enqueue(_ context.Context, job notification.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// fakeTransport fails the first failures sends with err, then succeeds.
type fakeTransport struct {
	mu       sync.Mutex
	failures int
	err      error
	sent     []string
}

func (f *fakeTransport) Send(_ context.Context, r domain.Recipient, ev domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	f.sent = append(f.sent, ev.ID+"/"+r.UserID)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func event(id string) domain.Event {
	return domain.Event{ID: id, Type: domain.EventRequestCreated, RequestID: "req-1", Title: "New matching request", Body: "Saffron for AE", OccurredAt: t0}
}

func TestDispatchDedupsRecipientsAndChannels(t *testing.T) {
	q := &captureQueue{}
	d := notification.NewDispatcher(q)

	d.Dispatch(context.Background(), event("ev-1"),
		[]string{"u1", "u2", "u1", ""},
		[]domain.Channel{domain.ChannelPush, domain.ChannelInApp, domain.ChannelPush})

	require.Len(t, q.jobs, 4)
	keys := make([]string, len(q.jobs))
	for i, j := range q.jobs {
		keys[i] = j.Key
	}
	assert.ElementsMatch(t, []string{
		"ev-1:u1:push", "ev-1:u1:in_app", "ev-1:u2:push", "ev-1:u2:in_app",
	}, keys)
}

func TestDispatchSkipsDisabledChannels(t *testing.T) {
	q := &captureQueue{}
	d := notification.NewDispatcher(q)
	d.Disable(domain.ChannelSMS, domain.ChannelPush)

	d.Dispatch(context.Background(), event("ev-2"), []string{"v-1"}, []domain.Channel{domain.ChannelPush, domain.ChannelInApp, domain.ChannelSMS})

	require.Len(t, q.jobs, 1)
	assert.Equal(t, domain.ChannelInApp, q.jobs[0].Channel)
}

func TestDispatchRefusesMalformedEvent(t *testing.T) {
	q := &captureQueue{}
	d := notification.NewDispatcher(q)
	d.Dispatch(context.Background(), domain.Event{ID: "x", Type: "bogus"}, []string{"u1"}, []domain.Channel{domain.ChannelPush})
	assert.Empty(t, q.jobs)
}

func TestDispatchSurvivesEnqueueFailure(t *testing.T) {
	q := &captureQueue{err: errors.New("redis down")}
	d := notification.NewDispatcher(q)
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), event("ev-1"), []string{"u1"}, []domain.Channel{domain.ChannelPush})
	})
}

func newDeliverer(t *testing.T, push *fakeTransport) (*notification.Deliverer, *memory.Directory, *memory.InboxStore) {
	t.Helper()
	dir := memory.NewDirectory()
	dir.PutUser(domain.UserProfile{ID: "supplier-1", Role: domain.RoleSupplier, Mobile: "+971500000001"})
	dir.PutVisitor(domain.Visitor{ID: "v-1", Status: domain.VisitorApproved, Phone: "+971500000002", PhoneVerified: true})
	inbox := memory.NewInboxStore()
	clk := clock.NewFake(t0)
	d := notification.NewDeliverer(dir, memory.NewIdempotencyStore(time.Hour, clk), map[domain.Channel]notification.Transport{
		domain.ChannelPush:  push,
		domain.ChannelSMS:   push,
		domain.ChannelInApp: notification.NewInAppTransport(inbox, clk),
	})
	return d, dir, inbox
}

func TestDeliverIsIdempotent(t *testing.T) {
	push := &fakeTransport{}
	d, _, _ := newDeliverer(t, push)
	job := notification.Job{Key: notification.JobKey("ev-1", "v-1", domain.ChannelPush), Event: event("ev-1"), RecipientID: "v-1", Channel: domain.ChannelPush}

	require.NoError(t, d.Deliver(context.Background(), job))
	require.NoError(t, d.Deliver(context.Background(), job))
	assert.Equal(t, 1, push.count())
}

func TestDeliverSkipsSMSForSuppliers(t *testing.T) {
	push := &fakeTransport{}
	d, _, _ := newDeliverer(t, push)

	supplierJob := notification.Job{Key: "ev-1:supplier-1:sms", Event: event("ev-1"), RecipientID: "supplier-1", Channel: domain.ChannelSMS}
	require.NoError(t, d.Deliver(context.Background(), supplierJob))
	assert.Zero(t, push.count())

	visitorJob := notification.Job{Key: "ev-1:v-1:sms", Event: event("ev-1"), RecipientID: "v-1", Channel: domain.ChannelSMS}
	require.NoError(t, d.Deliver(context.Background(), visitorJob))
	assert.Equal(t, 1, push.count())
}

func TestDeliverClassifiesFailures(t *testing.T) {
	push := &fakeTransport{failures: 1, err: apperr.Transient("gateway 503", errors.New("503"))}
	d, _, _ := newDeliverer(t, push)
	ctx := context.Background()

	err := d.Deliver(ctx, notification.Job{Key: "k1", Event: event("ev-1"), RecipientID: "v-1", Channel: domain.ChannelPush})
	assert.True(t, apperr.IsTransient(err))

	err = d.Deliver(ctx, notification.Job{Key: "k2", Event: event("ev-1"), RecipientID: "ghost", Channel: domain.ChannelPush})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = d.Deliver(ctx, notification.Job{Key: "k3", Event: event("ev-1"), RecipientID: "v-1", Channel: "pigeon"})
	assert.True(t, errors.Is(err, notification.ErrNoTransport))
	assert.False(t, apperr.IsTransient(err))
}

func TestInAppDeliveryWritesInboxOnce(t *testing.T) {
	push := &fakeTransport{}
	d, _, store := newDeliverer(t, push)
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		// Distinct keys bypass the idempotency store; the inbox still dedups.
		job := notification.Job{Key: key, Event: event("ev-1"), RecipientID: "v-1", Channel: domain.ChannelInApp}
		require.NoError(t, d.Deliver(ctx, job))
	}

	inbox := notification.NewInbox(store, nil)
	page, err := inbox.List(ctx, "v-1", false, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.UnreadCount)
	assert.Equal(t, "ev-1", page.Items[0].EventID)
}

func TestInboxReadState(t *testing.T) {
	store := memory.NewInboxStore()
	clk := clock.NewFake(t0)
	transport := notification.NewInAppTransport(store, clk)
	inbox := notification.NewInbox(store, clk)
	ctx := context.Background()
	r := domain.Recipient{UserID: "u1"}

	for _, id := range []string{"ev-1", "ev-2", "ev-3"} {
		clk.Advance(time.Minute)
		require.NoError(t, transport.Send(ctx, r, event(id)))
	}

	page, err := inbox.List(ctx, "u1", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "ev-3", page.Items[0].EventID)

	require.NoError(t, inbox.MarkRead(ctx, "u1", page.Items[0].ID))
	err = inbox.MarkRead(ctx, "u2", page.Items[1].ID)
	assert.True(t, errors.Is(err, notification.ErrNotFound))

	n, err := inbox.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	changed, err := inbox.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	unread, err := inbox.List(ctx, "u1", true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
	assert.Zero(t, unread.UnreadCount)
}

// scriptedHandler returns errs in order, then nil.
type scriptedHandler struct {
	mu       sync.Mutex
	errs     []error
	attempts []int
}

func (h *scriptedHandler) Deliver(_ context.Context, job notification.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, job.Attempt)
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func (h *scriptedHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attempts)
}

var testPolicy = retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, MinDelay: 100 * time.Millisecond}

func TestMemoryQueueRetriesTransientFailures(t *testing.T) {
	transient := apperr.Transient("gateway", errors.New("503"))
	h := &scriptedHandler{errs: []error{transient, transient}}
	clk := clock.NewFake(t0)
	q := notification.NewMemoryQueue(h, 2, testPolicy, clk)
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), notification.Job{Key: "k", Channel: domain.ChannelPush}))

	for want := 1; want <= 2; want++ {
		require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, want, h.calls())
		clk.Advance(testPolicy.MaxDelay)
	}

	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, h.attempts)
}

func TestMemoryQueueDropsAfterMaxAttempts(t *testing.T) {
	transient := apperr.Transient("gateway", errors.New("503"))
	h := &scriptedHandler{errs: []error{transient, transient, transient, transient}}
	clk := clock.NewFake(t0)
	q := notification.NewMemoryQueue(h, 1, testPolicy, clk)
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), notification.Job{Key: "k", Channel: domain.ChannelSMS}))
	for i := 0; i < 2; i++ {
		require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
		clk.Advance(testPolicy.MaxDelay)
	}

	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 3, h.calls())
	assert.Zero(t, clk.Waiters())
}

func TestMemoryQueueDoesNotRetryPermanentFailures(t *testing.T) {
	h := &scriptedHandler{errs: []error{apperr.New(apperr.KindNotFound, "user not found")}}
	clk := clock.NewFake(t0)
	q := notification.NewMemoryQueue(h, 1, testPolicy, clk)
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), notification.Job{Key: "k", Channel: domain.ChannelPush}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.calls())
	assert.Zero(t, clk.Waiters())
}

func TestMemoryQueueRejectsAfterStop(t *testing.T) {
	q := notification.NewMemoryQueue(&scriptedHandler{}, 1, testPolicy, clock.NewFake(t0))
	q.Start()
	q.Stop()
	err := q.Enqueue(context.Background(), notification.Job{Key: "k"})
	assert.True(t, errors.Is(err, notification.ErrQueueClosed))
}

func TestMemoryQueueStopReleasesQueuedJobs(t *testing.T) {
	h := &scriptedHandler{}
	q := notification.NewMemoryQueue(h, 1, testPolicy, clock.NewFake(t0))
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), notification.Job{Key: key, Channel: domain.ChannelInApp}))
	}
	assert.Equal(t, 3, q.Pending())

	q.Stop()
	assert.Zero(t, q.Pending())
	assert.Zero(t, h.calls())
}
