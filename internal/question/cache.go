package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/dramquiz/internal/domain"
)

// Cached keeps pools in Redis as JSON, keyed by kind, category and difficulty.
// Exclusions are applied after the cache so every session shares one entry.
type Cached struct {
	next   Source
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	sf     singleflight.Group
}

type CachedConfig struct {
	Source Source
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func NewCached(c CachedConfig) *Cached {
	return &Cached{
		next:   c.Source,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}
}

func (c *Cached) FetchPool(ctx context.Context, q PoolQuery) ([]domain.Question, error) {
	key := c.key(q)

	pool, err := c.load(ctx, key)
	if err == nil {
		return Filter(pool, q), nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "question: read pool cache failed", "key", key, "error", err)
	}

	res, err, _ := c.sf.Do(key, func() (any, error) {
		// Re-check, another caller may have filled the entry.
		if pool, err := c.load(ctx, key); err == nil {
			return pool, nil
		}

		pool, err := c.next.FetchPool(ctx, q.withoutExclusions())
		if err != nil {
			return nil, err
		}

		if err := c.store(ctx, key, pool); err != nil {
			slog.WarnContext(ctx, "question: write pool cache failed", "key", key, "error", err)
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	return Filter(res.([]domain.Question), q), nil
}

// Invalidate drops every cached pool.
func (c *Cached) Invalidate(ctx context.Context) error {
	iter := c.redis.Scan(ctx, 0, c.prefix+":pool:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("question: scan pool keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *Cached) load(ctx context.Context, key string) ([]domain.Question, error) {
	b, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var pool []domain.Question
	if err := json.Unmarshal(b, &pool); err != nil {
		return nil, fmt.Errorf("decode cached pool: %w", err)
	}
	return pool, nil
}

func (c *Cached) store(ctx context.Context, key string, pool []domain.Question) error {
	b, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}
	return c.redis.Set(ctx, key, b, c.ttlWithJitter()).Err()
}

func (c *Cached) key(q PoolQuery) string {
	category, difficulty := "*", "*"
	if q.Category != nil {
		category = string(*q.Category)
	}
	if q.Difficulty != nil {
		difficulty = string(*q.Difficulty)
	}
	return fmt.Sprintf("%s:pool:%s:%s:%s", c.prefix, q.Kind, category, difficulty)
}

// ttlWithJitter adds up to 10% to the TTL to spread expirations.
func (c *Cached) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + time.Duration(rand.Int64N(int64(c.ttl)/10+1))
}
