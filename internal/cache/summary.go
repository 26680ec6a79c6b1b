package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"classroll/internal/attendance"
)

// Summaries caches attendance summaries in Redis. Invalidate bumps a
// generation counter so every cached window is dropped at once; stale keys
// expire through their TTL.
type Summaries struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSummaries creates a cache storing entries under prefix for ttl.
func NewSummaries(rdb *redis.Client, prefix string, ttl time.Duration) *Summaries {
	if prefix == "" {
		prefix = "classroll:summary"
	}
	return &Summaries{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Summaries) Get(ctx context.Context, from string) (attendance.Summary, bool, error) {
	key, err := s.key(ctx, from)
	if err != nil {
		return attendance.Summary{}, false, err
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return attendance.Summary{}, false, nil
	}
	if err != nil {
		return attendance.Summary{}, false, err
	}
	var sum attendance.Summary
	if err := json.Unmarshal(b, &sum); err != nil {
		return attendance.Summary{}, false, fmt.Errorf("decode cached summary: %w", err)
	}
	return sum, true, nil
}

func (s *Summaries) Set(ctx context.Context, from string, sum attendance.Summary) error {
	key, err := s.key(ctx, from)
	if err != nil {
		return err
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, s.ttl).Err()
}

func (s *Summaries) Invalidate(ctx context.Context) error {
	return s.rdb.Incr(ctx, s.prefix+":gen").Err()
}

func (s *Summaries) key(ctx context.Context, from string) (string, error) {
	gen, err := s.rdb.Get(ctx, s.prefix+":gen").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", s.prefix, gen, from), nil
}
