package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
)

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0", false, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "k", "v", time.Minute).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	_, err = OpenRedis(context.Background(), "not a url", false, zerolog.Nop())
	require.Error(t, err)
}

func TestNewLimiterStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr(), false, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewLimiterStore(client)
	require.NoError(t, err)
	ctx, err := store.Get(context.Background(), "203.0.113.1", limiter.Rate{Period: time.Minute, Limit: 2})
	require.NoError(t, err)
	require.EqualValues(t, 1, ctx.Remaining)
	require.False(t, ctx.Reached)
}

func TestTaskRedis(t *testing.T) {
	opt, err := TaskRedis("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "cache.internal:6380", client.Addr)
	require.Equal(t, 2, client.DB)
	require.Equal(t, "secret", client.Password)

	_, err = TaskRedis("http://nope")
	require.Error(t, err)
}
