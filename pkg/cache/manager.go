package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss indicates no accepted batch is recorded for the key.
	ErrMiss = errors.New("journal miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid journal entry")
)

// Journal stores accepted batches in Redis.
type Journal struct {
	redis     *redis.Client
	namespace string
	ttl       time.Duration
}

// NewJournal creates a journal. Entries live for ttl (24h if not positive).
func NewJournal(redisClient *redis.Client, namespace string, ttl time.Duration) *Journal {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = "fssp"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Journal{
		redis:     redisClient,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Get returns the entry for key, or ErrMiss.
func (j *Journal) Get(ctx context.Context, key BatchKey) (*Entry, error) {
	data, err := j.redis.Get(ctx, key.String(j.namespace)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			JournalMisses.Inc()
			return nil, ErrMiss
		}
		JournalErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		JournalErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.Task == "" {
		JournalErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: empty task", ErrInvalidEntry)
	}

	JournalHits.Inc()
	return &entry, nil
}

// Put stores entry under key with the journal TTL.
func (j *Journal) Put(ctx context.Context, key BatchKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("journal entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		JournalErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	if err := j.redis.Set(ctx, key.String(j.namespace), data, j.ttl).Err(); err != nil {
		JournalErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
