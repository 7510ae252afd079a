package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/dramquiz/internal/domain"
)

// Rules are the reward constants of one mode.
type Rules struct {
	BasePoints   int
	HintPenalty  int
	MinimumFloor int
	Multipliers  map[domain.Difficulty]decimal.Decimal
}

// RewardInput is everything the reward of a single round depends on.
type RewardInput struct {
	Correct       bool
	HintsRevealed int
	Difficulty    domain.Difficulty
	TimeTaken     time.Duration
	TimeLimit     time.Duration
	// BaseOverride replaces BasePoints for questions that carry their own base reward.
	BaseOverride *int
}

// Multiplier returns the multiplier of d. Unknown difficulties get the easy multiplier.
func (r Rules) Multiplier(d domain.Difficulty) decimal.Decimal {
	if m, ok := r.Multipliers[d]; ok {
		return m
	}
	if m, ok := r.Multipliers[domain.DifficultyEasy]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// Reward computes the reward of one round. It is a pure function of its input:
// incorrect answers earn nothing, correct ones earn round(base * multiplier) minus
// the hint penalty, never less than MinimumFloor. Time taken only matters through
// the forced incorrect outcome at expiry.
func (r Rules) Reward(in RewardInput) int {
	if !in.Correct {
		return 0
	}

	base := r.BasePoints
	if in.BaseOverride != nil && *in.BaseOverride > 0 {
		base = *in.BaseOverride
	}

	scaled := decimal.NewFromInt(int64(base)).Mul(r.Multiplier(in.Difficulty)).Round(0)
	penalty := decimal.NewFromInt(int64(r.HintPenalty)).Mul(decimal.NewFromInt(int64(max(in.HintsRevealed, 0))))

	reward := int(scaled.Sub(penalty).IntPart())
	return max(reward, r.MinimumFloor)
}

// Validate checks that the multipliers strictly increase with difficulty and that a
// correct answer can never be worth nothing.
func (r Rules) Validate() error {
	var errs []error
	if r.BasePoints <= 0 {
		errs = append(errs, fmt.Errorf("base points must be positive, got %d", r.BasePoints))
	}
	if r.HintPenalty < 0 {
		errs = append(errs, fmt.Errorf("hint penalty must not be negative, got %d", r.HintPenalty))
	}
	if r.MinimumFloor < 1 {
		errs = append(errs, fmt.Errorf("minimum floor must be at least 1, got %d", r.MinimumFloor))
	}

	var prev *decimal.Decimal
	for _, d := range domain.Difficulties {
		m, ok := r.Multipliers[d]
		if !ok {
			errs = append(errs, fmt.Errorf("missing multiplier for %s", d))
			continue
		}
		if !m.IsPositive() {
			errs = append(errs, fmt.Errorf("multiplier for %s must be positive, got %s", d, m))
		}
		if prev != nil && !m.GreaterThan(*prev) {
			errs = append(errs, fmt.Errorf("multiplier for %s (%s) must be greater than %s", d, m, *prev))
		}
		prev = &m
	}
	return errors.Join(errs...)
}

func multipliers(easy, medium, hard, expert string) map[domain.Difficulty]decimal.Decimal {
	return map[domain.Difficulty]decimal.Decimal{
		domain.DifficultyEasy:   decimal.RequireFromString(easy),
		domain.DifficultyMedium: decimal.RequireFromString(medium),
		domain.DifficultyHard:   decimal.RequireFromString(hard),
		domain.DifficultyExpert: decimal.RequireFromString(expert),
	}
}
