package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
	"github.com/aslmarket/aslmatch/internal/service/notification"
)

type stubHandler struct {
	err  error
	jobs []notification.Job
}

func (s *stubHandler) Deliver(_ context.Context, job notification.Job) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

func testJob() notification.Job {
	ev := domain.Event{ID: "ev-1", Type: domain.EventOfferLost, RequestID: "req-1", Title: "Offer taken"}
	return notification.Job{
		Key:         notification.JobKey(ev.ID, "v-2", domain.ChannelPush),
		Event:       ev,
		RecipientID: "v-2",
		Channel:     domain.ChannelPush,
	}
}

func task(t *testing.T, job notification.Job) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return asynq.NewTask(TypeDeliverNotification, payload)
}

func TestDeliveryHandlerSuccess(t *testing.T) {
	h := &stubHandler{}
	err := NewDeliveryHandler(h).ProcessTask(context.Background(), task(t, testJob()))
	require.NoError(t, err)
	require.Len(t, h.jobs, 1)
	assert.Equal(t, 1, h.jobs[0].Attempt)
	assert.Equal(t, "v-2", h.jobs[0].RecipientID)
}

func TestDeliveryHandlerTransientIsRetried(t *testing.T) {
	h := &stubHandler{err: apperr.Transient("push gateway unavailable", errors.New("503"))}
	err := NewDeliveryHandler(h).ProcessTask(context.Background(), task(t, testJob()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestDeliveryHandlerPermanentSkipsRetry(t *testing.T) {
	h := &stubHandler{err: apperr.New(apperr.KindInternal, "push gateway rejected request")}
	err := NewDeliveryHandler(h).ProcessTask(context.Background(), task(t, testJob()))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDeliveryHandlerBadPayload(t *testing.T) {
	h := &stubHandler{}
	err := NewDeliveryHandler(h).ProcessTask(context.Background(), asynq.NewTask(TypeDeliverNotification, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, h.jobs)
}

func TestAsynqQueueDeduplicatesByJobKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := asynq.NewClient(RedisOpt(mr.Addr(), "", 0))
	t.Cleanup(func() { client.Close() })

	q := NewAsynqQueue(client, nil, retry.Policy{MaxAttempts: 5})
	job := testJob()

	require.NoError(t, q.Enqueue(context.Background(), job))
	require.NoError(t, q.Enqueue(context.Background(), job))
	assert.True(t, mr.Exists("asynq:{"+NotificationQueue+"}:t:"+job.Key))

	_, err := q.Depth(context.Background())
	assert.Error(t, err)
}
