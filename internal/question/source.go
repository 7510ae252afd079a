package question

import (
	"context"

	"github.com/victornm/dramquiz/internal/domain"
)

// PoolQuery selects candidate items. Nil filters match everything.
type PoolQuery struct {
	Kind       domain.Kind
	Category   *domain.Category
	Difficulty *domain.Difficulty
	ExcludeIDs []string
}

// Source fetches pools of candidate questions or tasting targets.
type Source interface {
	FetchPool(ctx context.Context, q PoolQuery) ([]domain.Question, error)
}

// Matches reports whether item passes the filters of q, exclusions included.
func (q PoolQuery) Matches(item domain.Question) bool {
	if q.Kind != "" && item.Kind != q.Kind {
		return false
	}
	if q.Category != nil && item.Category != *q.Category {
		return false
	}
	if q.Difficulty != nil && item.Difficulty != *q.Difficulty {
		return false
	}
	for _, id := range q.ExcludeIDs {
		if id == item.ID {
			return false
		}
	}
	return true
}

// Filter returns the items of pool that match q, in their original order.
func Filter(pool []domain.Question, q PoolQuery) []domain.Question {
	out := make([]domain.Question, 0, len(pool))
	for _, item := range pool {
		if q.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

// withoutExclusions is q with ExcludeIDs cleared; caches key on it.
func (q PoolQuery) withoutExclusions() PoolQuery {
	q.ExcludeIDs = nil
	return q
}
