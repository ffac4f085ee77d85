package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Window is a sliding window limiter backed by Redis sorted sets. Every
// attempt is recorded, so clients that keep hammering stay blocked.
type Window struct {
	Client *redis.Client
	Prefix string
	Max    int
	Period time.Duration
	Now    func() time.Time
}

func (l Window) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow records an attempt for key and reports whether it fits in the window.
// A limiter without a client or limits allows everything.
func (l Window) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	d := Decision{Allowed: true, Limit: l.Max, Remaining: l.Max, ResetAt: now.Add(l.Period)}
	if l.Client == nil || l.Max <= 0 || l.Period <= 0 {
		return d, nil
	}

	redisKey := l.Prefix + key
	cutoff := float64(now.Add(-l.Period).UnixNano())
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, l.Period)
	if _, err := pipe.Exec(ctx); err != nil {
		return d, fmt.Errorf("sliding window %s: %w", key, err)
	}

	current := int(count.Val())
	d.Allowed = current <= l.Max
	d.Remaining = max(l.Max-current, 0)
	if z := oldest.Val(); len(z) == 1 {
		d.ResetAt = time.Unix(0, int64(z[0].Score)).Add(l.Period)
	}
	return d, nil
}
