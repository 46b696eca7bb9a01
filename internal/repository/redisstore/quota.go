package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/service/contact"
)

// quotaTTL keeps a day's hash a little past the longest timezone offset.
const quotaTTL = 48 * time.Hour

// chargeScript atomically records a reveal in the viewer's day hash.
// Returns {status, count, payload}: status 1 charged, 0 repeat, -1 over quota.
var chargeScript = redis.NewScript(`
local prior = redis.call("HGET", KEYS[1], ARGV[1])
local n = redis.call("HLEN", KEYS[1])
if prior then
	return {0, n, prior}
end
if n >= tonumber(ARGV[3]) then
	return {-1, n, ""}
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("EXPIRE", KEYS[1], ARGV[4])
return {1, n + 1, ARGV[2]}
`)

// QuotaLedger implements contact.Ledger on one Redis hash per viewer and day.
type QuotaLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQuotaLedger creates a Redis-backed contact ledger.
func NewQuotaLedger(client *redis.Client) *QuotaLedger {
	return &QuotaLedger{client: client, ttl: quotaTTL}
}

func quotaKey(viewerID, date string) string {
	return "contact:views:" + viewerID + ":" + date
}

func (l *QuotaLedger) Viewed(ctx context.Context, viewerID, date string, target domain.ContactTarget) (*domain.ContactView, bool, error) {
	raw, err := l.client.HGet(ctx, quotaKey(viewerID, date), target.Key()).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, redisErr("get contact view", err)
	}
	var v domain.ContactView
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, fmt.Errorf("decode contact view: %w", err)
	}
	return &v, true, nil
}

func (l *QuotaLedger) Charge(ctx context.Context, viewerID, date string, v domain.ContactView, maxViews int) (contact.ChargeResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return contact.ChargeResult{}, fmt.Errorf("encode contact view: %w", err)
	}
	res, err := chargeScript.Run(ctx, l.client,
		[]string{quotaKey(viewerID, date)},
		v.Target.Key(), string(payload), maxViews, int(l.ttl.Seconds()),
	).Slice()
	if err != nil {
		return contact.ChargeResult{}, redisErr("charge contact view", err)
	}
	if len(res) != 3 {
		return contact.ChargeResult{}, fmt.Errorf("charge contact view: unexpected reply %v", res)
	}
	status, _ := res[0].(int64)
	count, _ := res[1].(int64)
	out := contact.ChargeResult{ViewCount: int(count)}

	switch status {
	case -1:
		return out, contact.ErrQuotaExceeded
	case 0:
		raw, _ := res[2].(string)
		if err := json.Unmarshal([]byte(raw), &out.View); err != nil {
			return contact.ChargeResult{}, fmt.Errorf("decode contact view: %w", err)
		}
		return out, nil
	}
	out.Charged = true
	out.View = v
	return out, nil
}

func (l *QuotaLedger) Views(ctx context.Context, viewerID, date string) ([]domain.ContactView, error) {
	all, err := l.client.HGetAll(ctx, quotaKey(viewerID, date)).Result()
	if err != nil {
		return nil, redisErr("list contact views", err)
	}
	out := make([]domain.ContactView, 0, len(all))
	for _, raw := range all {
		var v domain.ContactView
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode contact view: %w", err)
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewedAt.Before(out[j].ViewedAt) })
	return out, nil
}
