package chat_test

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
	"github.com/aslmarket/aslmatch/internal/repository/memory"
	"github.com/aslmarket/aslmatch/internal/service/chat"
)

type countingNotifier struct {
	mu         sync.Mutex
	recipients []string
}

func (n *countingNotifier) Dispatch(_ context.Context, ev domain.Event, recipients []string, _ []domain.Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ev.Type == domain.EventNewMessage {
		n.recipients = append(n.recipients, recipients...)
	}
}

type chatFixture struct {
	svc      *chat.Service
	requests *memory.RequestStore
	notifier *countingNotifier
	clock    *clock.Fake
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		requests: memory.NewRequestStore(),
		notifier: &countingNotifier{},
		clock:    clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.svc = chat.NewService(memory.NewChatStore(), chat.RequestReaderFunc(f.requests.Get), f.notifier, f.clock)
	return f
}

// request stores a request in the given status, accepted by visitor-1 when
// status is reserved.
func (f *chatFixture) request(t *testing.T, id string, status domain.RequestStatus) *domain.MatchingRequest {
	t.Helper()
	req := &domain.MatchingRequest{
		ID:          id,
		SupplierID:  "supplier-1",
		ProductName: "Saffron",
		Status:      domain.RequestActive,
		CreatedAt:   f.clock.Now(),
		ExpiresAt:   f.clock.Now().Add(7 * 24 * time.Hour),
	}
	require.NoError(t, f.requests.Create(context.Background(), req))
	if status.IsReserved() {
		got, err := f.requests.Accept(context.Background(), &domain.MatchingResponse{
			ID: "resp-" + id, RequestID: id, VisitorID: "visitor-1", Action: domain.ActionAccept, CreatedAt: f.clock.Now(),
		})
		require.NoError(t, err)
		req = got
	}
	if status != req.Status {
		req.Status = status
		require.NoError(t, f.requests.Update(context.Background(), req))
	}
	return req
}

func TestConversationOpensOnlyWhenReserved(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	open := f.request(t, "req-open", domain.RequestActive)

	_, err := f.svc.ConversationForRequest(ctx, open.ID, "supplier-1")
	assert.True(t, errors.Is(err, apperr.ErrConversationClosed))

	_, err = f.svc.OpenConversation(ctx, open)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	reserved := f.request(t, "req-won", domain.RequestAccepted)
	c1, err := f.svc.ConversationForRequest(ctx, reserved.ID, "visitor-1")
	require.NoError(t, err)
	c2, err := f.svc.OpenConversation(ctx, reserved)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, "supplier-1", c1.SupplierID)
	assert.Equal(t, "visitor-1", c1.VisitorID)

	_, err = f.svc.ConversationForRequest(ctx, reserved.ID, "visitor-2")
	assert.True(t, errors.Is(err, chat.ErrNotParticipant))
}

func TestPostMessageAndPoll(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	req := f.request(t, "req-1", domain.RequestAccepted)
	c, err := f.svc.ConversationForRequest(ctx, req.ID, "supplier-1")
	require.NoError(t, err)

	var lastSeq int64
	var seen []string
	for i, body := range []string{"hello", "how many kg?", "500"} {
		sender := "supplier-1"
		if i%2 == 1 {
			sender = "visitor-1"
		}
		m, err := f.svc.PostMessage(ctx, c.ID, sender, body, "")
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), m.Seq)

		page, err := f.svc.Messages(ctx, c.ID, "supplier-1", lastSeq, 0)
		require.NoError(t, err)
		for _, msg := range page {
			seen = append(seen, msg.Body)
			lastSeq = msg.Seq
		}
	}
	assert.Equal(t, []string{"hello", "how many kg?", "500"}, seen)
	assert.Equal(t, []string{"visitor-1", "supplier-1", "visitor-1"}, f.notifier.recipients)

	all, err := f.svc.Messages(ctx, c.ID, "visitor-1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	req := f.request(t, "req-1", domain.RequestAccepted)
	c, err := f.svc.ConversationForRequest(ctx, req.ID, "supplier-1")
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, c.ID, "supplier-1", "   ", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	m, err := f.svc.PostMessage(ctx, c.ID, "supplier-1", "", "https://cdn.example.com/chat/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.SenderSupplier, m.SenderType)

	_, err = f.svc.PostMessage(ctx, c.ID, "visitor-2", "hi", "")
	assert.True(t, errors.Is(err, chat.ErrNotParticipant))

	_, err = f.svc.Messages(ctx, c.ID, "visitor-2", 0, 0)
	assert.True(t, errors.Is(err, chat.ErrNotParticipant))
}

func TestPostMessageAfterCompletion(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	req := f.request(t, "req-1", domain.RequestAccepted)
	c, err := f.svc.ConversationForRequest(ctx, req.ID, "supplier-1")
	require.NoError(t, err)

	req.Status = domain.RequestCompleted
	require.NoError(t, f.requests.Update(ctx, req))

	_, err = f.svc.PostMessage(ctx, c.ID, "visitor-1", "thanks", "")
	require.NoError(t, err)
}

func TestMarkReadIsMonotonic(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	req := f.request(t, "req-1", domain.RequestAccepted)
	c, err := f.svc.ConversationForRequest(ctx, req.ID, "supplier-1")
	require.NoError(t, err)

	var ids []string
	for _, body := range []string{"a", "b", "c"} {
		m, err := f.svc.PostMessage(ctx, c.ID, "visitor-1", body, "")
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	_, err = f.svc.PostMessage(ctx, c.ID, "supplier-1", "mine", "")
	require.NoError(t, err)

	n, err := f.svc.MarkRead(ctx, c.ID, "supplier-1", ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.MarkRead(ctx, c.ID, "supplier-1", ids[0])
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := f.svc.Conversations(ctx, "supplier-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)
	assert.Equal(t, "mine", list[0].LastMessage)

	_, err = f.svc.MarkRead(ctx, c.ID, "supplier-1", "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
