package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/fssp-client/pkg/fssp"
)

// Redis is a PendingSet kept in Redis under a per-run key, so the tasks a
// run is still waiting on can be inspected from outside the process until
// the keys expire. A run never reopens another run's set. Tasks are stored
// in a list (submission order) with a companion set enforcing uniqueness.
type Redis struct {
	redis   *redis.Client
	listKey string
	setKey  string
	ttl     time.Duration
}

// NewRedis creates a pending set under "<namespace>:run:<runID>:pending".
// Keys expire after ttl (24h if not positive).
func NewRedis(redisClient *redis.Client, namespace, runID string, ttl time.Duration) *Redis {
	if namespace == "" {
		namespace = "fssp"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	base := fmt.Sprintf("%s:run:%s:pending", namespace, runID)
	return &Redis{
		redis:   redisClient,
		listKey: base,
		setKey:  base + ":members",
		ttl:     ttl,
	}
}

// Add implements PendingSet.
func (r *Redis) Add(ctx context.Context, task fssp.TaskID) (bool, error) {
	added, err := r.redis.SAdd(ctx, r.setKey, string(task)).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	if added == 0 {
		return false, nil
	}

	pipe := r.redis.TxPipeline()
	pipe.RPush(ctx, r.listKey, string(task))
	pipe.Expire(ctx, r.listKey, r.ttl)
	pipe.Expire(ctx, r.setKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rpush: %w", err)
	}

	pendingTasks.Inc()
	return true, nil
}

// Drain implements PendingSet.
func (r *Redis) Drain(ctx context.Context, order Order) ([]fssp.TaskID, error) {
	var list *redis.StringSliceCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		list = pipe.LRange(ctx, r.listKey, 0, -1)
		pipe.Del(ctx, r.listKey, r.setKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis drain: %w", err)
	}

	values := list.Val()
	out := make([]fssp.TaskID, len(values))
	for i, v := range values {
		out[i] = fssp.TaskID(v)
	}
	pendingTasks.Sub(float64(len(out)))

	if order == LIFO {
		reverse(out)
	}
	return out, nil
}

// Len implements PendingSet.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.redis.LLen(ctx, r.listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return int(n), nil
}
