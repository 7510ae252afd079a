package domain

import (
	"fmt"
	"time"
)

// Category is the closed set of spirit categories a question can belong to.
type Category string

const (
	CategoryBourbon  Category = "bourbon"
	CategoryScotch   Category = "scotch"
	CategoryRye      Category = "rye"
	CategoryIrish    Category = "irish"
	CategoryJapanese Category = "japanese"
	CategoryTequila  Category = "tequila"
	CategoryRum      Category = "rum"
	CategoryGin      Category = "gin"
	CategoryBrandy   Category = "brandy"
	CategoryGeneral  Category = "general"
)

var categories = map[Category]struct{}{
	CategoryBourbon:  {},
	CategoryScotch:   {},
	CategoryRye:      {},
	CategoryIrish:    {},
	CategoryJapanese: {},
	CategoryTequila:  {},
	CategoryRum:      {},
	CategoryGin:      {},
	CategoryBrandy:   {},
	CategoryGeneral:  {},
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Difficulty is ordered: easy < medium < hard < expert.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Difficulties lists every difficulty in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

// Rank returns the position of d in Difficulties, or -1 if d is unknown.
func (d Difficulty) Rank() int {
	for i, v := range Difficulties {
		if v == d {
			return i
		}
	}
	return -1
}

func (d Difficulty) Valid() bool { return d.Rank() >= 0 }

func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// Kind distinguishes knowledge questions from blind-tasting targets.
type Kind string

const (
	KindTrivia  Kind = "trivia"
	KindTasting Kind = "tasting"
)

// HintTier is one disclosable clue of a tasting target.
type HintTier string

const (
	HintColor  HintTier = "color"
	HintNose   HintTier = "nose"
	HintPalate HintTier = "palate"
	HintFinish HintTier = "finish"
)

// HintOrder is the fixed order in which hint tiers are disclosed.
var HintOrder = []HintTier{HintColor, HintNose, HintPalate, HintFinish}

// Question is a read-only catalog fact, either a trivia question or a tasting target.
type Question struct {
	ID           string              `json:"id" yaml:"id" bson:"_id"`
	Kind         Kind                `json:"kind" yaml:"kind" bson:"kind"`
	Category     Category            `json:"category" yaml:"category" bson:"category"`
	Difficulty   Difficulty          `json:"difficulty" yaml:"difficulty" bson:"difficulty"`
	Prompt       string              `json:"prompt" yaml:"prompt" bson:"prompt"`
	Answer       string              `json:"answer" yaml:"answer" bson:"answer"`
	WrongAnswers []string            `json:"wrong_answers,omitempty" yaml:"wrong_answers" bson:"wrong_answers,omitempty"`
	Explanation  string              `json:"explanation,omitempty" yaml:"explanation" bson:"explanation,omitempty"`
	BaseReward   *int                `json:"base_reward,omitempty" yaml:"base_reward" bson:"base_reward,omitempty"`
	Hints        map[HintTier]string `json:"hints,omitempty" yaml:"hints" bson:"hints,omitempty"`
}

// Hint is a single disclosed or undisclosed clue within a round.
type Hint struct {
	Tier HintTier `json:"tier"`
	Text string   `json:"text"`
}

// OrderedHints returns the hints of q in HintOrder, skipping tiers without text.
func (q Question) OrderedHints() []Hint {
	hints := make([]Hint, 0, len(q.Hints))
	for _, t := range HintOrder {
		if text, ok := q.Hints[t]; ok && text != "" {
			hints = append(hints, Hint{Tier: t, Text: text})
		}
	}
	return hints
}

// SampledRound is a presentable, frozen instance of a question.
type SampledRound struct {
	Index        int
	QuestionID   string
	Kind         Kind
	Category     Category
	Difficulty   Difficulty
	Prompt       string
	Choices      []string
	CorrectIndex int
	Answer       string
	Explanation  string
	Hints        []Hint
	BaseReward   *int
}

// RoundOutcome is the immutable result of resolving one round.
type RoundOutcome struct {
	Index         int           `json:"index"`
	QuestionID    string        `json:"question_id"`
	Correct       bool          `json:"correct"`
	Answer        string        `json:"answer,omitempty"`
	TimedOut      bool          `json:"timed_out"`
	TimeTaken     time.Duration `json:"time_taken"`
	HintsRevealed int           `json:"hints_revealed"`
	Reward        int           `json:"reward"`
}

// RoundSample is the per-round part of a persisted session summary.
type RoundSample struct {
	Index         int
	QuestionID    string
	Correct       bool
	TimedOut      bool
	HintsRevealed int
	Reward        int
	TimeTaken     time.Duration
}

// SessionSummary is the persisted record of a completed session.
// SessionID is generated once when the session is created and is the natural key.
type SessionSummary struct {
	SessionID       string
	Identity        string
	Mode            Mode
	Category        *Category
	Difficulty      *Difficulty
	RequestedRounds int
	TotalRounds     int
	CorrectRounds   int
	TotalReward     int
	StartedAt       time.Time
	CompletedAt     time.Time
	Rounds          []RoundSample
}

// Anonymous reports whether the session was played without an identity.
func (s SessionSummary) Anonymous() bool { return s.Identity == "" }

// Leaderboard ranks players of one mode by their total recorded reward.
type Leaderboard struct {
	Mode    Mode               `json:"mode"`
	Entries []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Identity string `json:"identity"`
	Reward   int64  `json:"reward"`
}
