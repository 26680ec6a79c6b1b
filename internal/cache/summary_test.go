package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classroll/internal/attendance"
)

// Runs against a live Redis when REDIS_ADDR is set.
func newTestCache(t *testing.T) *Summaries {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	prefix := "classroll-test:" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})
	return NewSummaries(rdb, prefix, time.Minute)
}

func TestSummaries_SetGetInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.False(t, ok)

	want := attendance.Summary{TotalRecords: 4, PresentCount: 3, AbsentCount: 1, AttendanceRate: 75}
	require.NoError(t, c.Set(ctx, "2024-01-01", want))

	got, ok, err := c.Get(ctx, "2024-01-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.False(t, ok)
}
