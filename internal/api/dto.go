package api

import (
	"time"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/game"
)

type (
	StartSessionRequest struct {
		Mode        string `json:"mode" binding:"required"`
		Category    string `json:"category"`
		Difficulty  string `json:"difficulty"`
		Rounds      int    `json:"rounds" binding:"gte=0"`
		TimeLimitMS int64  `json:"time_limit_ms" binding:"gte=0"`
	}

	SubmitAnswerRequest struct {
		Round  *int   `json:"round" binding:"required,gte=0"`
		Answer string `json:"answer"`
	}

	Session struct {
		SessionID       string     `json:"session_id"`
		Status          string     `json:"status"`
		Mode            string     `json:"mode"`
		Category        string     `json:"category,omitempty"`
		Difficulty      string     `json:"difficulty,omitempty"`
		RequestedRounds int        `json:"requested_rounds"`
		TotalRounds     int        `json:"total_rounds"`
		RoundIndex      int        `json:"round_index"`
		CorrectRounds   int        `json:"correct_rounds"`
		TotalReward     int        `json:"total_reward"`
		Round           *Round     `json:"round,omitempty"`
		Outcomes        []Outcome  `json:"outcomes"`
		StartedAt       time.Time  `json:"started_at"`
		CompletedAt     *time.Time `json:"completed_at,omitempty"`
	}

	Round struct {
		Index       int           `json:"index"`
		Kind        string        `json:"kind"`
		Category    string        `json:"category"`
		Difficulty  string        `json:"difficulty"`
		Prompt      string        `json:"prompt"`
		Choices     []string      `json:"choices"`
		Hints       []domain.Hint `json:"hints"`
		HintsTotal  int           `json:"hints_total"`
		Deadline    *time.Time    `json:"deadline,omitempty"`
		RemainingMS int64         `json:"remaining_ms,omitempty"`
		Resolved    bool          `json:"resolved"`
		Answer      string        `json:"answer,omitempty"`
		Explanation string        `json:"explanation,omitempty"`
		Outcome     *Outcome      `json:"outcome,omitempty"`
	}

	Outcome struct {
		Index         int    `json:"index"`
		QuestionID    string `json:"question_id"`
		Correct       bool   `json:"correct"`
		Answer        string `json:"answer,omitempty"`
		TimedOut      bool   `json:"timed_out"`
		TimeTakenMS   int64  `json:"time_taken_ms"`
		HintsRevealed int    `json:"hints_revealed"`
		Reward        int    `json:"reward"`
	}

	HintResponse struct {
		Hint     *domain.Hint `json:"hint,omitempty"`
		Revealed bool         `json:"revealed"`
		Count    int          `json:"count"`
		Total    int          `json:"total"`
	}

	RecordStatus struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
	}

	Summary struct {
		SessionID     string    `json:"session_id"`
		Mode          string    `json:"mode"`
		TotalRounds   int       `json:"total_rounds"`
		CorrectRounds int       `json:"correct_rounds"`
		TotalReward   int       `json:"total_reward"`
		StartedAt     time.Time `json:"started_at"`
		CompletedAt   time.Time `json:"completed_at"`
	}
)

func toSession(v *game.View) Session {
	s := Session{
		SessionID:       v.SessionID,
		Status:          string(v.Status),
		Mode:            string(v.Mode),
		RequestedRounds: v.RequestedRounds,
		TotalRounds:     v.TotalRounds,
		RoundIndex:      v.RoundIndex,
		CorrectRounds:   v.CorrectRounds,
		TotalReward:     v.TotalReward,
		Outcomes:        make([]Outcome, 0, len(v.Outcomes)),
		StartedAt:       v.StartedAt,
	}
	if v.Category != nil {
		s.Category = string(*v.Category)
	}
	if v.Difficulty != nil {
		s.Difficulty = string(*v.Difficulty)
	}
	if !v.CompletedAt.IsZero() {
		t := v.CompletedAt
		s.CompletedAt = &t
	}
	for _, o := range v.Outcomes {
		s.Outcomes = append(s.Outcomes, toOutcome(o))
	}

	if r := v.Round; r != nil && v.Status != game.StatusComplete {
		s.Round = &Round{
			Index:       r.Index,
			Kind:        string(r.Kind),
			Category:    string(r.Category),
			Difficulty:  string(r.Difficulty),
			Prompt:      r.Prompt,
			Choices:     r.Choices,
			Hints:       r.Hints,
			HintsTotal:  r.HintsTotal,
			Deadline:    r.Deadline,
			RemainingMS: r.Remaining.Milliseconds(),
			Resolved:    r.Resolved,
			Answer:      r.Answer,
			Explanation: r.Explanation,
		}
		if s.Round.Hints == nil {
			s.Round.Hints = []domain.Hint{}
		}
		if r.Outcome != nil {
			o := toOutcome(*r.Outcome)
			s.Round.Outcome = &o
		}
	}

	return s
}

func toOutcome(o domain.RoundOutcome) Outcome {
	return Outcome{
		Index:         o.Index,
		QuestionID:    o.QuestionID,
		Correct:       o.Correct,
		Answer:        o.Answer,
		TimedOut:      o.TimedOut,
		TimeTakenMS:   o.TimeTaken.Milliseconds(),
		HintsRevealed: o.HintsRevealed,
		Reward:        o.Reward,
	}
}

func toSummary(sum domain.SessionSummary) Summary {
	return Summary{
		SessionID:     sum.SessionID,
		Mode:          string(sum.Mode),
		TotalRounds:   sum.TotalRounds,
		CorrectRounds: sum.CorrectRounds,
		TotalReward:   sum.TotalReward,
		StartedAt:     sum.StartedAt,
		CompletedAt:   sum.CompletedAt,
	}
}
