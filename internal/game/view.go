package game

import (
	"slices"
	"time"

	"github.com/victornm/dramquiz/internal/domain"
)

// View is an immutable snapshot of a session for the presentation layer. The
// correct answer of the current round is only present once it is resolved.
type View struct {
	SessionID       string
	Status          Status
	Mode            domain.Mode
	Category        *domain.Category
	Difficulty      *domain.Difficulty
	RequestedRounds int
	TotalRounds     int
	RoundIndex      int
	CorrectRounds   int
	TotalReward     int
	Round           *RoundView
	Outcomes        []domain.RoundOutcome
	StartedAt       time.Time
	CompletedAt     time.Time
}

type RoundView struct {
	Index       int
	Kind        domain.Kind
	Category    domain.Category
	Difficulty  domain.Difficulty
	Prompt      string
	Choices     []string
	Hints       []domain.Hint
	HintsTotal  int
	Deadline    *time.Time
	Remaining   time.Duration
	Resolved    bool
	Answer      string
	Explanation string
	Outcome     *domain.RoundOutcome
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		SessionID:       s.id,
		Status:          s.status,
		Mode:            s.cfg.Mode,
		Category:        s.cfg.Category,
		Difficulty:      s.cfg.Difficulty,
		RequestedRounds: s.requested,
		TotalRounds:     len(s.rounds),
		RoundIndex:      s.index,
		CorrectRounds:   s.correct,
		TotalReward:     s.reward,
		Outcomes:        slices.Clone(s.outcomes),
		StartedAt:       s.startedAt,
		CompletedAt:     s.completedAt,
	}

	if r := s.current; r != nil {
		rv := &RoundView{
			Index:      r.data.Index,
			Kind:       r.data.Kind,
			Category:   r.data.Category,
			Difficulty: r.data.Difficulty,
			Prompt:     r.data.Prompt,
			Choices:    r.Choices(),
			Hints:      r.DisclosedHints(),
			HintsTotal: r.HintsTotal(),
			Remaining:  r.Remaining(s.clock.Now()),
			Resolved:   r.Resolved(),
		}
		if d, ok := r.Deadline(); ok {
			rv.Deadline = &d
		}
		if o, ok := r.Outcome(); ok {
			rv.Answer = r.data.Answer
			rv.Explanation = r.data.Explanation
			rv.Outcome = &o
		}
		v.Round = rv
	}

	return v
}
