package question

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Seen remembers which items a player was shown recently, so a new session can
// exclude them from its pool.
type Seen struct {
	redis  redis.UniversalClient
	prefix string
	limit  int64
	ttl    time.Duration
}

type SeenConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	// Limit is how many of the most recent items are kept per player.
	Limit int
	TTL   time.Duration
}

func NewSeen(c SeenConfig) *Seen {
	limit := int64(c.Limit)
	if limit <= 0 {
		limit = 200
	}
	return &Seen{redis: c.Redis, prefix: c.Prefix, limit: limit, ttl: c.TTL}
}

// Recent returns the ids most recently shown to identity, newest first.
func (s *Seen) Recent(ctx context.Context, identity string) ([]string, error) {
	ids, err := s.redis.ZRevRange(ctx, s.key(identity), 0, s.limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("question: recent seen: %w", err)
	}
	return ids, nil
}

// Remember records ids as shown to identity at time at.
func (s *Seen) Remember(ctx context.Context, identity string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	key := s.key(identity)
	members := make([]redis.Z, 0, len(ids))
	for i, id := range ids {
		// Keep the session order stable among items shown at the same instant.
		members = append(members, redis.Z{Score: float64(at.UnixMilli()) + float64(i)/1000, Member: id})
	}

	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, members...)
		p.ZRemRangeByRank(ctx, key, 0, -s.limit-1)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("question: remember seen: %w", err)
	}
	return nil
}

func (s *Seen) key(identity string) string {
	return fmt.Sprintf("%s:seen:%s", s.prefix, identity)
}
