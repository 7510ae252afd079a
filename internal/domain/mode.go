package domain

import (
	"errors"
	"fmt"
	"time"
)

// Mode is the closed set of game modes.
type Mode string

const (
	ModeQuick        Mode = "quick"
	ModeTimed        Mode = "timed"
	ModeDaily        Mode = "daily"
	ModeExpert       Mode = "expert"
	ModeBlindTasting Mode = "blind_tasting"
)

// Modes lists every recognized mode.
var Modes = []Mode{ModeQuick, ModeTimed, ModeDaily, ModeExpert, ModeBlindTasting}

func (m Mode) Valid() bool {
	for _, v := range Modes {
		if v == m {
			return true
		}
	}
	return false
}

func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// Timed reports whether rounds of this mode run against a countdown.
func (m Mode) Timed() bool { return m == ModeTimed }

// Hinted reports whether rounds of this mode use the hint ladder.
func (m Mode) Hinted() bool { return m == ModeBlindTasting }

// Kind is the kind of catalog item the mode plays with.
func (m Mode) Kind() Kind {
	if m == ModeBlindTasting {
		return KindTasting
	}
	return KindTrivia
}

// SessionConfig is fixed once a session leaves Idle.
type SessionConfig struct {
	Mode       Mode
	Category   *Category
	Difficulty *Difficulty
	Rounds     int
	TimeLimit  time.Duration
}

// Validate rejects configurations that must never reach ModeSelected.
func (c SessionConfig) Validate() error {
	var errs []error
	if !c.Mode.Valid() {
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Rounds <= 0 {
		errs = append(errs, fmt.Errorf("rounds must be positive, got %d", c.Rounds))
	}
	if c.Category != nil && !c.Category.Valid() {
		errs = append(errs, fmt.Errorf("unknown category %q", *c.Category))
	}
	if c.Difficulty != nil && !c.Difficulty.Valid() {
		errs = append(errs, fmt.Errorf("unknown difficulty %q", *c.Difficulty))
	}
	if c.TimeLimit < 0 {
		errs = append(errs, fmt.Errorf("time limit must not be negative, got %s", c.TimeLimit))
	}
	if c.Mode.Valid() && c.Mode.Timed() && c.TimeLimit == 0 {
		errs = append(errs, fmt.Errorf("mode %s requires a time limit", c.Mode))
	}
	if c.Mode.Valid() && !c.Mode.Timed() && c.TimeLimit > 0 {
		errs = append(errs, fmt.Errorf("mode %s does not accept a time limit", c.Mode))
	}
	return errors.Join(errs...)
}
