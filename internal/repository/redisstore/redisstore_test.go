package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/contact"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func view(id string, at time.Time) domain.ContactView {
	return domain.ContactView{
		Target:   domain.ContactTarget{Type: domain.TargetSupplier, ID: id},
		Contact:  domain.ContactInfo{TargetType: domain.TargetSupplier, TargetID: id, Name: "Supplier " + id},
		ViewedAt: at,
	}
}

func TestQuotaLedgerCharge(t *testing.T) {
	mr, client := setupRedis(t)
	ledger := NewQuotaLedger(client)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	res, err := ledger.Charge(ctx, "viewer", "2026-03-01", view("s1", at), 2)
	require.NoError(t, err)
	assert.True(t, res.Charged)
	assert.Equal(t, 1, res.ViewCount)

	repeat := view("s1", at.Add(time.Hour))
	repeat.Contact.Name = "Renamed"
	res, err = ledger.Charge(ctx, "viewer", "2026-03-01", repeat, 2)
	require.NoError(t, err)
	assert.False(t, res.Charged)
	assert.Equal(t, "Supplier s1", res.View.Contact.Name)

	_, err = ledger.Charge(ctx, "viewer", "2026-03-01", view("s2", at.Add(time.Minute)), 2)
	require.NoError(t, err)

	res, err = ledger.Charge(ctx, "viewer", "2026-03-01", view("s3", at), 2)
	assert.True(t, errors.Is(err, contact.ErrQuotaExceeded))
	assert.Equal(t, 2, res.ViewCount)

	views, err := ledger.Views(ctx, "viewer", "2026-03-01")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "s1", views[0].Target.ID)

	got, ok, err := ledger.Viewed(ctx, "viewer", "2026-03-01", domain.ContactTarget{Type: domain.TargetSupplier, ID: "s2"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Supplier s2", got.Contact.Name)

	assert.True(t, mr.TTL(quotaKey("viewer", "2026-03-01")) > 0)
	mr.FastForward(quotaTTL + time.Second)
	views, err = ledger.Views(ctx, "viewer", "2026-03-01")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestQuotaLedgerConcurrentChargesRespectLimit(t *testing.T) {
	_, client := setupRedis(t)
	ledger := NewQuotaLedger(client)
	at := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		charged int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ledger.Charge(context.Background(), "viewer", "2026-03-01", view(fmt.Sprintf("s%d", i), at), 5)
			if err == nil && res.Charged {
				mu.Lock()
				charged++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, charged)
}

func TestIdempotencyStore(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	done, err := store.Delivered(ctx, "ev:u:push")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkDelivered(ctx, "ev:u:push"))
	done, err = store.Delivered(ctx, "ev:u:push")
	require.NoError(t, err)
	assert.True(t, done)

	mr.FastForward(2 * time.Hour)
	done, err = store.Delivered(ctx, "ev:u:push")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSummaryCache(t *testing.T) {
	_, client := setupRedis(t)
	cache := NewSummaryCache(client, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "visitor-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, domain.RatingSummary{UserID: "visitor-1", Average: 4.5, Count: 2}))
	got, ok, err := cache.Get(ctx, "visitor-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4.5, got.Average)
	assert.Equal(t, 2, got.Count)
}

func TestStoreErrorsAreClassified(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	ledger := NewQuotaLedger(client)

	require.NoError(t, mr.Set(quotaKey("viewer", "2026-03-01"), "not a hash"))
	_, _, err := ledger.Viewed(ctx, "viewer", "2026-03-01", domain.ContactTarget{Type: domain.TargetSupplier, ID: "s1"})
	require.Error(t, err)
	assert.False(t, apperr.IsTransient(err), "wrong type reply: %v", err)

	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { down.Close() })
	_, err = NewIdempotencyStore(down, time.Minute).Delivered(ctx, "job-1")
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err), "server down: %v", err)

	_, err = NewQuotaLedger(down).Charge(ctx, "viewer", "2026-03-02", view("s1", time.Now()), 3)
	assert.True(t, errors.Is(err, apperr.ErrTransient))
}
