package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

// =============================================================================
// EXPIRY SWEEPER: Moves Overdue Requests to Expired
// =============================================================================
// Requests are also expired lazily when touched; the sweeper makes sure the
// ones nobody touches still expire and their notified visitors hear about
// it. Each request is expired under its own lock, so running the sweeper on
// several nodes is safe.

// DefaultSweepInterval is how often the sweep runs.
const DefaultSweepInterval = time.Minute

// Sweeper expires every overdue request. *matching.Service implements it.
type Sweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

// ExpirySweeper runs Sweeper periodically.
type ExpirySweeper struct {
	sweeper  Sweeper
	interval time.Duration
	clock    clock.Clock

	runs    atomic.Int64
	expired atomic.Int64
}

// NewExpirySweeper creates a sweeper. A non-positive interval uses
// DefaultSweepInterval.
func NewExpirySweeper(s Sweeper, interval time.Duration, clk clock.Clock) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &ExpirySweeper{sweeper: s, interval: interval, clock: clk}
}

// Start runs a sweep immediately and then every interval. It blocks until
// ctx is cancelled.
func (es *ExpirySweeper) Start(ctx context.Context) {
	logger.Info("expiry sweeper starting", "interval", es.interval.String())

	es.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("expiry sweeper stopping", "runs", es.runs.Load(), "expired", es.expired.Load())
			return
		case <-es.clock.After(es.interval):
			es.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many requests expired.
func (es *ExpirySweeper) RunOnce(ctx context.Context) int {
	start := time.Now()
	n, err := es.sweeper.ExpireSweep(ctx, es.clock.Now())
	es.runs.Add(1)
	es.expired.Add(int64(n))
	if err != nil {
		metrics.SweepFailures.Inc()
		logger.Error("expiry sweep failed", "error", err, "expired", n)
		return n
	}
	if n > 0 {
		logger.Info("expiry sweep completed", "expired", n, "duration", time.Since(start).Round(time.Millisecond).String())
	}
	return n
}

// Stats returns the number of sweeps run and requests expired so far.
func (es *ExpirySweeper) Stats() (runs, expired int64) {
	return es.runs.Load(), es.expired.Load()
}
