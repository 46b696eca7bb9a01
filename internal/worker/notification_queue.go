package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
	"github.com/aslmarket/aslmatch/internal/service/notification"
)

// =============================================================================
// NOTIFICATION QUEUE: Durable Delivery over Redis (asynq)
// =============================================================================
// The API enqueues one task per (event, recipient, channel); the worker
// binary runs the asynq server that delivers them. The job key doubles as
// the asynq task id, so re-dispatching an event while its task is still
// queued is a no-op. The idempotency store covers the window after that.

const (
	// TypeDeliverNotification is the asynq task type of a delivery job.
	TypeDeliverNotification = "notification:deliver"

	// NotificationQueue is the asynq queue name.
	NotificationQueue = "notifications"

	taskRetention = 24 * time.Hour
)

// AsynqQueue implements notification.Queue on an asynq client.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	maxRetry  int
}

// NewAsynqQueue creates the queue. inspector may be nil; it only backs
// Depth.
func NewAsynqQueue(client *asynq.Client, inspector *asynq.Inspector, policy retry.Policy) *AsynqQueue {
	maxRetry := policy.MaxAttempts - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	return &AsynqQueue{client: client, inspector: inspector, maxRetry: maxRetry}
}

// Enqueue implements notification.Queue.
func (q *AsynqQueue) Enqueue(ctx context.Context, job notification.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	task := asynq.NewTask(TypeDeliverNotification, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.Key),
		asynq.Queue(NotificationQueue),
		asynq.MaxRetry(q.maxRetry),
		asynq.Retention(taskRetention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		metrics.NotificationsSkipped.WithLabelValues(string(job.Channel), metrics.ReasonDuplicate).Inc()
		return nil
	}
	if err != nil {
		return apperr.Transient("enqueue notification", err)
	}
	return nil
}

// Depth returns the number of jobs waiting or scheduled for retry.
func (q *AsynqQueue) Depth(_ context.Context) (int, error) {
	if q.inspector == nil {
		return 0, errors.New("no inspector configured")
	}
	info, err := q.inspector.GetQueueInfo(NotificationQueue)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return info.Pending + info.Scheduled + info.Retry + info.Active, nil
}

// DeliveryHandler adapts a notification.JobHandler to asynq. Transient
// failures are retried by asynq with the policy's backoff; every other
// failure skips retry.
type DeliveryHandler struct {
	handler notification.JobHandler
}

// NewDeliveryHandler wraps h.
func NewDeliveryHandler(h notification.JobHandler) *DeliveryHandler {
	return &DeliveryHandler{handler: h}
}

// ProcessTask implements asynq.Handler.
func (dh *DeliveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job notification.Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		metrics.NotificationsDropped.WithLabelValues("unknown", metrics.ReasonPermanent).Inc()
		return fmt.Errorf("decode job: %v: %w", err, asynq.SkipRetry)
	}
	retried, _ := asynq.GetRetryCount(ctx)
	job.Attempt = retried + 1

	err := dh.handler.Deliver(ctx, job)
	if err == nil {
		return nil
	}
	ch := string(job.Channel)
	if apperr.IsTransient(err) {
		metrics.NotificationsRetried.WithLabelValues(ch).Inc()
		logger.Warn("notification delivery failed, will retry", "key", job.Key, "attempt", job.Attempt, "error", err)
		return err
	}
	metrics.NotificationsDropped.WithLabelValues(ch, metrics.ReasonPermanent).Inc()
	logger.Error("notification dropped", "key", job.Key, "channel", ch, "error", err)
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

// NewDeliveryServer builds the asynq server and mux that drain the
// notification queue.
func NewDeliveryServer(opt asynq.RedisConnOpt, h notification.JobHandler, policy retry.Policy, concurrency int) (*asynq.Server, *asynq.ServeMux) {
	if concurrency <= 0 {
		concurrency = 4
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{NotificationQueue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return policy.Delay(n + 1)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried < maxRetry || errors.Is(err, asynq.SkipRetry) {
				return
			}
			var job notification.Job
			_ = json.Unmarshal(task.Payload(), &job)
			metrics.NotificationsDropped.WithLabelValues(string(job.Channel), metrics.ReasonMaxAttempts).Inc()
			logger.Error("notification retries exhausted", "key", job.Key, "retried", retried, "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeDeliverNotification, NewDeliveryHandler(h))
	return srv, mux
}

// RedisOpt converts connection settings into asynq's form.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}

var _ notification.Queue = (*AsynqQueue)(nil)
