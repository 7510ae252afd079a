package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/errors"
	"github.com/victornm/dramquiz/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultLimit    = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameSessionRecorded, "leaderboard", func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventSessionRecorded))
	})

	return s
}

type GetLeaderboardRequest struct {
	Mode domain.Mode
	// Limit defaults to 10.
	Limit int
}

// GetLeaderboard returns the best players of a mode, highest total reward first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	if !req.Mode.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown mode %q", req.Mode))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(req.Mode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: mode=%s", req.Mode))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Identity: z.Member.(string),
			Reward:   int64(z.Score),
		})
	}

	return &domain.Leaderboard{
		Mode:    req.Mode,
		Entries: entries,
	}, nil
}

// UpdateLeaderboard adds the reward of a newly recorded session to the player's total.
// It only sees first-time records, so replays never count twice.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventSessionRecorded) error {
	sum := e.Summary
	if sum.Anonymous() || sum.TotalReward <= 0 {
		return nil
	}

	if err := s.redis.ZIncrBy(ctx, s.getLeaderboardKey(sum.Mode), float64(sum.TotalReward), sum.Identity).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sum.Mode, sum.CompletedAt)
}

// schedulePublishLeaderboard publishes at most one update per mode and interval, since
// many sessions may finish at nearly the same time.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, mode domain.Mode, at time.Time) error {
	// SetNX keeps several instances from publishing the same change.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(mode), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, mode)
}

func (s *Service) publishLeaderboard(ctx context.Context, mode domain.Mode) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{Mode: mode})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: mode=%s: %w", mode, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})
	return nil
}

func (s *Service) getLeaderboardKey(mode domain.Mode) string {
	return fmt.Sprintf("%s:leaderboard:%s", s.prefix, mode)
}

func (s *Service) getLeaderboardTimeKey(mode domain.Mode) string {
	return fmt.Sprintf("%s:leaderboard:%s:time", s.prefix, mode)
}
