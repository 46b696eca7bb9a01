package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/pkg/clock"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	n     int
	err   error
}

func (s *countingSweeper) ExpireSweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, now)
	return s.n, s.err
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestExpirySweeperRunsOnSchedule(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	sw := &countingSweeper{n: 2}
	es := NewExpirySweeper(sw, time.Minute, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		es.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, sw.count())

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return sw.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	runs, expired := es.Stats()
	assert.Equal(t, int64(2), runs)
	assert.Equal(t, int64(4), expired)
	assert.Equal(t, clk.Now(), sw.calls[1])
}

func TestExpirySweeperSurvivesErrors(t *testing.T) {
	sw := &countingSweeper{n: 1, err: errors.New("row failed")}
	es := NewExpirySweeper(sw, 0, nil)

	assert.Equal(t, 1, es.RunOnce(context.Background()))
	assert.Equal(t, 1, es.RunOnce(context.Background()))
	runs, expired := es.Stats()
	assert.Equal(t, int64(2), runs)
	assert.Equal(t, int64(2), expired)
	assert.Equal(t, DefaultSweepInterval, es.interval)
}
