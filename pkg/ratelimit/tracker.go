package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Tracker stores pacing state in Redis so that several processes sharing an
// API token keep the service's spacing between them.
type Tracker struct {
	redis     *redis.Client
	namespace string
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewTracker creates a Redis-backed tracker. Keys are written under
// namespace ("fssp" if empty) and expire after ttl of inactivity.
func NewTracker(redisClient *redis.Client, namespace string, ttl time.Duration, logger zerolog.Logger) *Tracker {
	if namespace == "" {
		namespace = "fssp"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tracker{
		redis:     redisClient,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

func (t *Tracker) key(suffix string) string {
	return t.namespace + ":" + suffix
}

// GetState retrieves the shared state. Returns an empty state if nothing has
// been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	state := &State{}

	lastAttempt, err := t.redis.Get(ctx, t.key(RedisKeyLastAttempt)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last attempt: %w", err)
	}
	if err == nil {
		state.LastAttempt = time.Unix(0, lastAttempt)
	}

	lastThrottle, err := t.redis.Get(ctx, t.key(RedisKeyLastThrottle)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last throttle: %w", err)
	}
	if err == nil {
		state.LastThrottle = time.Unix(0, lastThrottle)
	}

	throttles, err := t.redis.Get(ctx, t.key(RedisKeyThrottles)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get throttles: %w", err)
	}
	state.Throttles = throttles

	return state, nil
}

// RecordAttempt stores the start time of a submission attempt.
func (t *Tracker) RecordAttempt(ctx context.Context, at time.Time) error {
	if err := t.redis.Set(ctx, t.key(RedisKeyLastAttempt), at.UnixNano(), t.ttl).Err(); err != nil {
		return fmt.Errorf("store last attempt: %w", err)
	}
	return nil
}

// RecordThrottle stores a rate-limited answer.
func (t *Tracker) RecordThrottle(ctx context.Context, at time.Time) error {
	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, t.key(RedisKeyLastThrottle), at.UnixNano(), t.ttl)
	pipe.Incr(ctx, t.key(RedisKeyThrottles))
	pipe.Expire(ctx, t.key(RedisKeyThrottles), t.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store throttle in redis: %w", err)
	}

	t.logger.Debug().
		Time("at", at).
		Msg("Throttle recorded")

	return nil
}
