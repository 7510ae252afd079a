package game

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/victornm/dramquiz/internal/domain"
)

// distractorCount is how many wrong choices a multiple-choice round shows.
const distractorCount = 3

// Sampler selects non-repeating items from a pool and dresses them up as rounds.
// It is not safe for concurrent use; every session owns its own.
type Sampler struct {
	rnd *rand.Rand
}

func NewSampler(rnd *rand.Rand) *Sampler {
	return &Sampler{rnd: rnd}
}

// NewSeededSampler returns a sampler whose choices depend only on seed.
func NewSeededSampler(seed uint64) *Sampler {
	return NewSampler(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Sample returns n distinct items of pool. Items are drawn round-robin over
// (category, difficulty) buckets so a mixed pool yields mixed rounds.
func (s *Sampler) Sample(pool []domain.Question, n int) ([]domain.Question, error) {
	unique := dedupe(pool)
	if n <= 0 || len(unique) < n {
		return nil, &InsufficientPoolError{Requested: n, Available: len(unique)}
	}

	type bucketKey struct {
		category   domain.Category
		difficulty domain.Difficulty
	}
	buckets := make(map[bucketKey][]domain.Question)
	var keys []bucketKey
	for _, item := range unique {
		k := bucketKey{item.Category, item.Difficulty}
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], item)
	}

	// keys is in first-seen order, so the shuffle below is reproducible for a seed.
	s.rnd.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for _, k := range keys {
		b := buckets[k]
		s.rnd.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	}

	out := make([]domain.Question, 0, n)
	for len(out) < n {
		for _, k := range keys {
			b := buckets[k]
			if len(b) == 0 {
				continue
			}
			out = append(out, b[0])
			buckets[k] = b[1:]
			if len(out) == n {
				break
			}
		}
	}
	return out, nil
}

// Distractors draws up to k wrong answers for item without replacement. The
// item's own wrong answers and the answers of same-category items come first;
// the rest of the pool is the fallback. The correct answer never appears.
func (s *Sampler) Distractors(item domain.Question, pool []domain.Question, k int) []string {
	var own, sameCategory, rest []string
	if item.Kind != domain.KindTasting {
		own = slices.Clone(item.WrongAnswers)
	}
	for _, other := range pool {
		if other.ID == item.ID || other.Kind != item.Kind {
			continue
		}
		if other.Category == item.Category {
			sameCategory = append(sameCategory, other.Answer)
		} else {
			rest = append(rest, other.Answer)
		}
	}

	taken := map[string]struct{}{normalize(item.Answer): {}}
	out := make([]string, 0, k)
	for _, tier := range [][]string{own, sameCategory, rest} {
		s.rnd.Shuffle(len(tier), func(i, j int) { tier[i], tier[j] = tier[j], tier[i] })
		for _, candidate := range tier {
			if len(out) == k {
				return out
			}
			key := normalize(candidate)
			if key == "" {
				continue
			}
			if _, dup := taken[key]; dup {
				continue
			}
			taken[key] = struct{}{}
			out = append(out, candidate)
		}
	}
	return out
}

// BuildRounds turns the selected items into rounds with frozen choice order.
func (s *Sampler) BuildRounds(selected, pool []domain.Question) []domain.SampledRound {
	rounds := make([]domain.SampledRound, 0, len(selected))
	for i, item := range selected {
		choices := s.Distractors(item, pool, distractorCount)
		correct := s.rnd.IntN(len(choices) + 1)
		choices = slices.Insert(choices, correct, item.Answer)

		var hints []domain.Hint
		if item.Kind == domain.KindTasting {
			hints = item.OrderedHints()
		}

		rounds = append(rounds, domain.SampledRound{
			Index:        i,
			QuestionID:   item.ID,
			Kind:         item.Kind,
			Category:     item.Category,
			Difficulty:   item.Difficulty,
			Prompt:       item.Prompt,
			Choices:      choices,
			CorrectIndex: correct,
			Answer:       item.Answer,
			Explanation:  item.Explanation,
			Hints:        hints,
			BaseReward:   item.BaseReward,
		})
	}
	return rounds
}

// dedupe drops repeated ids, keeping the first occurrence, and orders the pool by
// id so sampling does not depend on the order the source returned.
func dedupe(pool []domain.Question) []domain.Question {
	seen := make(map[string]struct{}, len(pool))
	out := make([]domain.Question, 0, len(pool))
	for _, item := range pool {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b domain.Question) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
