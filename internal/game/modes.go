package game

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/dramquiz/internal/domain"
)

// ModeRules are the defaults and reward constants of one mode.
type ModeRules struct {
	Rounds    int
	TimeLimit time.Duration
	Rules     Rules
	// ForceDifficulty overrides any difficulty filter in the session config.
	ForceDifficulty *domain.Difficulty
	// ShortenOnShortPool shortens the session to the pool size instead of failing.
	ShortenOnShortPool bool
	// AutoAdvance shows the next round as soon as the timer resolves the current one.
	AutoAdvance bool
}

// DefaultModes returns the built-in rules of every mode.
func DefaultModes() map[domain.Mode]ModeRules {
	standard := Rules{
		BasePoints:   100,
		HintPenalty:  0,
		MinimumFloor: 10,
		Multipliers:  multipliers("1.0", "1.5", "2.0", "3.0"),
	}
	expert := domain.DifficultyExpert

	return map[domain.Mode]ModeRules{
		domain.ModeQuick: {
			Rounds:             10,
			Rules:              standard,
			ShortenOnShortPool: true,
		},
		domain.ModeTimed: {
			Rounds:             10,
			TimeLimit:          15 * time.Second,
			Rules:              standard,
			ShortenOnShortPool: true,
			AutoAdvance:        true,
		},
		domain.ModeDaily: {
			Rounds:             5,
			Rules:              standard,
			ShortenOnShortPool: true,
		},
		domain.ModeExpert: {
			Rounds:             10,
			Rules:              standard,
			ForceDifficulty:    &expert,
			ShortenOnShortPool: true,
		},
		domain.ModeBlindTasting: {
			Rounds: 5,
			Rules: Rules{
				BasePoints:   100,
				HintPenalty:  15,
				MinimumFloor: 10,
				Multipliers:  multipliers("1.0", "1.25", "1.5", "2.0"),
			},
			ShortenOnShortPool: true,
		},
	}
}

// ModeSettings is the configuration-file form of ModeRules. Zero values keep the default.
type ModeSettings struct {
	Rounds             int                `mapstructure:"rounds"`
	TimeLimit          time.Duration      `mapstructure:"time_limit"`
	BasePoints         int                `mapstructure:"base_points"`
	HintPenalty        *int               `mapstructure:"hint_penalty"`
	MinimumFloor       int                `mapstructure:"minimum_floor"`
	Multipliers        map[string]float64 `mapstructure:"multipliers"`
	ForceDifficulty    string             `mapstructure:"force_difficulty"`
	ShortenOnShortPool *bool              `mapstructure:"shorten_on_short_pool"`
	AutoAdvance        *bool              `mapstructure:"auto_advance"`
}

// ApplySettings overlays settings on top of DefaultModes and validates the result.
func ApplySettings(settings map[string]ModeSettings) (map[domain.Mode]ModeRules, error) {
	modes := DefaultModes()

	for name, st := range settings {
		mode, err := domain.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("game: settings: %w", err)
		}

		mr := modes[mode]
		if st.Rounds > 0 {
			mr.Rounds = st.Rounds
		}
		if st.TimeLimit > 0 {
			mr.TimeLimit = st.TimeLimit
		}
		if st.BasePoints > 0 {
			mr.Rules.BasePoints = st.BasePoints
		}
		if st.HintPenalty != nil {
			mr.Rules.HintPenalty = *st.HintPenalty
		}
		if st.MinimumFloor > 0 {
			mr.Rules.MinimumFloor = st.MinimumFloor
		}
		if len(st.Multipliers) > 0 {
			m := make(map[domain.Difficulty]decimal.Decimal, len(mr.Rules.Multipliers))
			for d, v := range mr.Rules.Multipliers {
				m[d] = v
			}
			for raw, v := range st.Multipliers {
				d, err := domain.ParseDifficulty(raw)
				if err != nil {
					return nil, fmt.Errorf("game: settings: %s: %w", mode, err)
				}
				m[d] = decimal.NewFromFloat(v)
			}
			mr.Rules.Multipliers = m
		}
		if st.ForceDifficulty != "" {
			d, err := domain.ParseDifficulty(st.ForceDifficulty)
			if err != nil {
				return nil, fmt.Errorf("game: settings: %s: %w", mode, err)
			}
			mr.ForceDifficulty = &d
		}
		if st.ShortenOnShortPool != nil {
			mr.ShortenOnShortPool = *st.ShortenOnShortPool
		}
		if st.AutoAdvance != nil {
			mr.AutoAdvance = *st.AutoAdvance
		}

		modes[mode] = mr
	}

	for mode, mr := range modes {
		if err := mr.Rules.Validate(); err != nil {
			return nil, fmt.Errorf("game: rules of %s: %w", mode, err)
		}
		if mode.Timed() && mr.TimeLimit <= 0 {
			return nil, fmt.Errorf("game: mode %s needs a time limit", mode)
		}
	}

	return modes, nil
}
