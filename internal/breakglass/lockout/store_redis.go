package lockout

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failureKeyPrefix = "bg:failures:"
	lockKeyPrefix    = "bg:lock:"
)

// redisCommands is the slice of the redis client this store actually uses.
// *redis.Client satisfies it.
type redisCommands interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore is a Redis-backed lockout tracker. This is the recommended
// implementation for multi-instance deployments where activation attempts may
// land on different nodes.
type RedisStore struct {
	client    redisCommands
	threshold int
	duration  time.Duration
}

type RedisOption func(*RedisStore)

func WithRedisThreshold(n int) RedisOption {
	return func(s *RedisStore) { s.threshold = n }
}

func WithRedisDuration(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.duration = d }
}

func NewRedisStore(client redisCommands, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		threshold: DefaultThreshold,
		duration:  DefaultDuration,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RecordFailure bumps the failure counter and, at the threshold, sets the
// lock key with the lock duration as its TTL. INCR + EXPIRE keeps the counter
// from living forever on abandoned identifiers.
func (s *RedisStore) RecordFailure(ctx context.Context, identifier string) (int, error) {
	key := failureKeyPrefix + identifier
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, s.duration).Err(); err != nil {
			return int(count), err
		}
	}
	if int(count) >= s.threshold {
		until := time.Now().Add(s.duration)
		if err := s.client.Set(ctx, lockKeyPrefix+identifier, until.UTC().Format(time.RFC3339), s.duration).Err(); err != nil {
			return int(count), err
		}
	}
	return int(count), nil
}

func (s *RedisStore) IsLocked(ctx context.Context, identifier string) (bool, *time.Time, error) {
	raw, err := s.client.Get(ctx, lockKeyPrefix+identifier).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	until, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Unparseable marker still means locked; fall back to the key TTL.
		ttl, ttlErr := s.client.TTL(ctx, lockKeyPrefix+identifier).Result()
		if ttlErr != nil {
			return true, nil, nil
		}
		fallback := time.Now().Add(ttl)
		return true, &fallback, nil
	}
	return true, &until, nil
}

func (s *RedisStore) Clear(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, failureKeyPrefix+identifier, lockKeyPrefix+identifier).Err()
}
