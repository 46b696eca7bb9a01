package notification

import (
	"context"
	"sync"
	"time"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/pkg/retry"
)

// JobHandler processes one job. *Deliverer implements it.
type JobHandler interface {
	Deliver(ctx context.Context, job Job) error
}

// MemoryQueue is an unbounded in-process queue drained by a worker pool.
// Retries wait on the Clock so tests can drive backoff with a fake clock.
// Jobs do not survive a restart; use the asynq queue for that.
type MemoryQueue struct {
	handler JobHandler
	policy  retry.Policy
	clock   clock.Clock
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	items   []Job
	pending int
	running bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryQueue creates a queue. Call Start before jobs are processed;
// Enqueue works before Start.
func NewMemoryQueue(h JobHandler, workers int, policy retry.Policy, clk clock.Clock) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	if clk == nil {
		clk = clock.Real{}
	}
	q := &MemoryQueue{handler: h, policy: policy, clock: clk, workers: workers}
	q.cond = sync.NewCond(&q.mu)
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

// Start launches the workers.
func (q *MemoryQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.closed {
		return
	}
	q.running = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	logger.Info("notification queue started", "workers", q.workers, "max_attempts", q.policy.MaxAttempts)
}

// Stop stops accepting jobs, abandons queued and scheduled retries and
// waits for in-flight deliveries to return.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	abandoned := len(q.items)
	q.items = nil
	q.pending -= abandoned
	q.cond.Broadcast()
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	if abandoned > 0 {
		logger.Warn("notification queue stopped with queued jobs", "abandoned", abandoned)
	}
}

// Enqueue appends job. It never blocks.
func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, job)
	q.pending++
	q.cond.Signal()
	return nil
}

// Pending returns the jobs not yet finished, counting queued, in-flight
// and waiting-to-retry jobs.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

func (q *MemoryQueue) work() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		job := q.items[0]
		q.items[0] = Job{}
		q.items = q.items[1:]
		q.mu.Unlock()

		q.process(job)
	}
}

func (q *MemoryQueue) process(job Job) {
	job.Attempt++
	err := q.handler.Deliver(q.ctx, job)
	ch := string(job.Channel)

	switch {
	case err == nil:
		q.finish()
	case !apperr.IsTransient(err):
		metrics.NotificationsDropped.WithLabelValues(ch, metrics.ReasonPermanent).Inc()
		logger.Warn("notification dropped", "key", job.Key, "attempt", job.Attempt, "error", err)
		q.finish()
	case q.policy.Exhausted(job.Attempt):
		metrics.NotificationsDropped.WithLabelValues(ch, metrics.ReasonMaxAttempts).Inc()
		logger.Error("notification dropped after max attempts", "key", job.Key, "attempts", job.Attempt, "error", err)
		q.finish()
	default:
		metrics.NotificationsRetried.WithLabelValues(ch).Inc()
		delay := q.policy.Delay(job.Attempt)
		logger.Debug("notification retry scheduled", "key", job.Key, "attempt", job.Attempt, "delay", delay.String())
		q.scheduleRetry(job, delay)
	}
}

// scheduleRetry registers the backoff timer before returning so a fake
// clock sees it immediately.
func (q *MemoryQueue) scheduleRetry(job Job, delay time.Duration) {
	timer := q.clock.After(delay)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-timer:
			q.requeue(job)
		case <-q.ctx.Done():
			q.finish()
		}
	}()
}

func (q *MemoryQueue) requeue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.pending--
		return
	}
	q.items = append(q.items, job)
	q.cond.Signal()
}

func (q *MemoryQueue) finish() {
	q.mu.Lock()
	q.pending--
	q.mu.Unlock()
}
