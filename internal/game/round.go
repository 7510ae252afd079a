package game

import (
	"slices"
	"time"

	"github.com/victornm/dramquiz/internal/domain"
)

// Round is the controller of one sampled round. Choice order is fixed at sampling
// time, hints disclose strictly in order and only the first resolution counts.
// A Round is guarded by the mutex of the session that owns it.
type Round struct {
	data      domain.SampledRound
	startedAt time.Time
	deadline  time.Time
	revealed  int
	outcome   *domain.RoundOutcome
	timer     Timer
}

func newRound(data domain.SampledRound, startedAt time.Time, limit time.Duration) *Round {
	r := &Round{data: data, startedAt: startedAt}
	if limit > 0 {
		r.deadline = startedAt.Add(limit)
	}
	return r
}

func (r *Round) Index() int { return r.data.Index }

func (r *Round) Prompt() string { return r.data.Prompt }

// Choices returns the answer choices in their presentation order.
func (r *Round) Choices() []string { return slices.Clone(r.data.Choices) }

// Deadline reports when the round expires. ok is false for untimed rounds.
func (r *Round) Deadline() (deadline time.Time, ok bool) {
	return r.deadline, !r.deadline.IsZero()
}

// Remaining is the time left before expiry, zero once expired or for untimed rounds.
func (r *Round) Remaining(now time.Time) time.Duration {
	if r.deadline.IsZero() {
		return 0
	}
	return max(r.deadline.Sub(now), 0)
}

func (r *Round) expired(now time.Time) bool {
	return !r.deadline.IsZero() && !now.Before(r.deadline)
}

// RevealNextHint discloses the next hint tier. It reports false once every tier
// is disclosed or after the round is resolved.
func (r *Round) RevealNextHint() (domain.Hint, bool) {
	if r.outcome != nil || r.revealed >= len(r.data.Hints) {
		return domain.Hint{}, false
	}
	h := r.data.Hints[r.revealed]
	r.revealed++
	return h, true
}

func (r *Round) HintsRevealed() int { return r.revealed }

func (r *Round) HintsTotal() int { return len(r.data.Hints) }

// DisclosedHints returns the hints revealed so far, in reveal order.
func (r *Round) DisclosedHints() []domain.Hint {
	return slices.Clone(r.data.Hints[:r.revealed])
}

func (r *Round) Resolved() bool { return r.outcome != nil }

// Outcome returns the outcome of a resolved round.
func (r *Round) Outcome() (domain.RoundOutcome, bool) {
	if r.outcome == nil {
		return domain.RoundOutcome{}, false
	}
	return *r.outcome, true
}

// Correct reports whether answer names the correct choice. Comparison ignores case
// and surrounding whitespace.
func (r *Round) Correct(answer string) bool {
	given := normalize(answer)
	return given != "" && given == normalize(r.data.Answer)
}

// resolve closes the round. The first call wins; later calls get ErrDuplicateSubmission.
func (r *Round) resolve(answer string, timedOut bool, now time.Time, rules Rules) (domain.RoundOutcome, error) {
	if r.outcome != nil {
		return domain.RoundOutcome{}, ErrDuplicateSubmission
	}
	r.stopTimer()

	correct := !timedOut && r.Correct(answer)
	limit := time.Duration(0)
	if !r.deadline.IsZero() {
		limit = r.deadline.Sub(r.startedAt)
	}
	taken := now.Sub(r.startedAt)
	if timedOut && limit > 0 {
		taken = limit
	}

	out := domain.RoundOutcome{
		Index:         r.data.Index,
		QuestionID:    r.data.QuestionID,
		Correct:       correct,
		Answer:        answer,
		TimedOut:      timedOut,
		TimeTaken:     taken,
		HintsRevealed: r.revealed,
		Reward: rules.Reward(RewardInput{
			Correct:       correct,
			HintsRevealed: r.revealed,
			Difficulty:    r.data.Difficulty,
			TimeTaken:     taken,
			TimeLimit:     limit,
			BaseOverride:  r.data.BaseReward,
		}),
	}
	r.outcome = &out
	return out, nil
}

func (r *Round) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
}
