package game_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/game"
)

func TestRules_Reward(t *testing.T) {
	modes := game.DefaultModes()
	standard := modes[domain.ModeQuick].Rules
	tastingRules := modes[domain.ModeBlindTasting].Rules

	tests := map[string]struct {
		rules game.Rules
		in    game.RewardInput
		want  int
	}{
		"medium correct answer without hints earns base times 1.5": {
			rules: standard,
			in:    game.RewardInput{Correct: true, Difficulty: domain.DifficultyMedium},
			want:  150,
		},
		"incorrect answer earns nothing": {
			rules: standard,
			in:    game.RewardInput{Correct: false, Difficulty: domain.DifficultyExpert},
			want:  0,
		},
		"time taken does not change the reward": {
			rules: standard,
			in: game.RewardInput{
				Correct:    true,
				Difficulty: domain.DifficultyHard,
				TimeTaken:  14 * time.Second,
				TimeLimit:  15 * time.Second,
			},
			want: 200,
		},
		"two hints on an easy tasting target cost 30": {
			rules: tastingRules,
			in:    game.RewardInput{Correct: true, HintsRevealed: 2, Difficulty: domain.DifficultyEasy},
			want:  70,
		},
		"all four hints cost 60": {
			rules: tastingRules,
			in:    game.RewardInput{Correct: true, HintsRevealed: 4, Difficulty: domain.DifficultyEasy},
			want:  40,
		},
		"heavy penalty is clamped to the minimum floor": {
			rules: game.Rules{
				BasePoints:   20,
				HintPenalty:  50,
				MinimumFloor: 10,
				Multipliers:  tastingRules.Multipliers,
			},
			in:   game.RewardInput{Correct: true, HintsRevealed: 3, Difficulty: domain.DifficultyEasy},
			want: 10,
		},
		"question base reward overrides the mode base": {
			rules: standard,
			in:    game.RewardInput{Correct: true, Difficulty: domain.DifficultyMedium, BaseOverride: ptr(40)},
			want:  60,
		},
		"fractional products are rounded half away from zero": {
			rules: tastingRules,
			in:    game.RewardInput{Correct: true, Difficulty: domain.DifficultyMedium, BaseOverride: ptr(10)},
			want:  13,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.rules.Reward(tt.in))
		})
	}
}

func TestRules_RewardIsMonotonicInDifficulty(t *testing.T) {
	for mode, mr := range game.DefaultModes() {
		prev := 0
		for _, d := range domain.Difficulties {
			got := mr.Rules.Reward(game.RewardInput{Correct: true, Difficulty: d})
			require.Greater(t, got, prev, "mode %s difficulty %s", mode, d)
			prev = got
		}
	}
}

func TestRules_Validate(t *testing.T) {
	valid := game.DefaultModes()[domain.ModeQuick].Rules

	tests := map[string]struct {
		arrange func() game.Rules
		wantErr string
	}{
		"default rules are valid": {
			arrange: func() game.Rules { return valid },
		},
		"multipliers must strictly increase": {
			arrange: func() game.Rules {
				r := valid
				r.Multipliers = map[domain.Difficulty]decimal.Decimal{
					domain.DifficultyEasy:   decimal.NewFromInt(1),
					domain.DifficultyMedium: decimal.NewFromInt(2),
					domain.DifficultyHard:   decimal.NewFromInt(2),
					domain.DifficultyExpert: decimal.NewFromInt(3),
				}
				return r
			},
			wantErr: "multiplier for hard (2) must be greater than 2",
		},
		"floor must be positive": {
			arrange: func() game.Rules {
				r := valid
				r.MinimumFloor = 0
				return r
			},
			wantErr: "minimum floor must be at least 1",
		},
		"every difficulty needs a multiplier": {
			arrange: func() game.Rules {
				r := valid
				r.Multipliers = map[domain.Difficulty]decimal.Decimal{
					domain.DifficultyEasy: decimal.NewFromInt(1),
				}
				return r
			},
			wantErr: "missing multiplier for medium",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.arrange().Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
