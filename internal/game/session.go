package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/question"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusModeSelected  Status = "mode_selected"
	StatusRoundActive   Status = "round_active"
	StatusRoundResolved Status = "round_resolved"
	StatusComplete      Status = "complete"
)

// Hooks are called after the session lock is released. They must not block for long.
type Hooks struct {
	RoundResolved func(sessionID string, o domain.RoundOutcome)
	Completed     func(s domain.SessionSummary)
}

// SessionOptions are the collaborators of a single session.
type SessionOptions struct {
	ID       string
	Identity string
	Source   question.Source
	Modes    map[domain.Mode]ModeRules
	Clock    Clock
	// Sampler is used unless the mode seeds its own (daily).
	Sampler *Sampler
	// Exclude lists ids to keep out of the pool, if the pool stays large enough.
	Exclude []string
	Hooks   Hooks
}

// Session is one play-through. It is a state machine driven by Configure, Start,
// Submit, Expire, RevealHint, Advance and Abandon; every event is serialized on mu,
// and timer expiry competes with submissions on equal terms.
type Session struct {
	mu sync.Mutex

	id       string
	identity string
	source   question.Source
	modes    map[domain.Mode]ModeRules
	clock    Clock
	sampler  *Sampler
	exclude  []string
	hooks    Hooks

	status      Status
	configuring bool
	cfg         domain.SessionConfig
	rules       ModeRules
	requested   int
	rounds      []domain.SampledRound
	shown       []string
	index       int
	current     *Round
	outcomes    []domain.RoundOutcome
	correct     int
	reward      int
	startedAt   time.Time
	completedAt time.Time
}

func NewSession(o SessionOptions) *Session {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Modes == nil {
		o.Modes = DefaultModes()
	}
	return &Session{
		id:       o.ID,
		identity: o.Identity,
		source:   o.Source,
		modes:    o.Modes,
		clock:    o.Clock,
		sampler:  o.Sampler,
		exclude:  o.Exclude,
		hooks:    o.Hooks,
		status:   StatusIdle,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Identity() string { return s.identity }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Configure moves Idle to ModeSelected. It validates cfg, fetches the pool once and
// samples every round up front. No other event is accepted while the fetch runs.
func (s *Session) Configure(ctx context.Context, cfg domain.SessionConfig) error {
	s.mu.Lock()
	if s.status != StatusIdle || s.configuring {
		defer s.mu.Unlock()
		return fmt.Errorf("%w: configure in %s", ErrInvalidTransition, s.status)
	}
	if err := cfg.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	rules, ok := s.modes[cfg.Mode]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: no rules for mode %s", ErrInvalidConfig, cfg.Mode)
	}
	if rules.ForceDifficulty != nil {
		d := *rules.ForceDifficulty
		cfg.Difficulty = &d
	}
	s.configuring = true
	startedAt := s.clock.Now()
	s.mu.Unlock()

	rounds, err := s.prepare(ctx, cfg, rules, startedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configuring = false
	if err != nil {
		return err
	}

	s.requested = cfg.Rounds
	cfg.Rounds = len(rounds)
	s.cfg = cfg
	s.rules = rules
	s.rounds = rounds
	s.startedAt = startedAt
	s.status = StatusModeSelected

	if s.requested != cfg.Rounds {
		slog.InfoContext(ctx, "game: session shortened to pool size",
			"session", s.id, "requested", s.requested, "rounds", cfg.Rounds)
	}
	return nil
}

func (s *Session) prepare(ctx context.Context, cfg domain.SessionConfig, rules ModeRules, now time.Time) ([]domain.SampledRound, error) {
	q := question.PoolQuery{
		Kind:       cfg.Mode.Kind(),
		Category:   cfg.Category,
		Difficulty: cfg.Difficulty,
	}

	sampler := s.sampler
	switch {
	case cfg.Mode == domain.ModeDaily:
		sampler = NewSeededSampler(dailySeed(now))
	case sampler == nil:
		sampler = NewSeededSampler(rand.Uint64())
	}

	// Daily sets are shared by everybody, so they never exclude per-player history.
	exclude := s.exclude
	if cfg.Mode == domain.ModeDaily {
		exclude = nil
	}

	var pool []domain.Question
	if len(exclude) > 0 {
		withExclusions := q
		withExclusions.ExcludeIDs = exclude
		fresh, err := s.source.FetchPool(ctx, withExclusions)
		if err != nil {
			return nil, &PoolFetchError{err: err}
		}
		if len(fresh) >= cfg.Rounds {
			pool = fresh
		}
	}
	if pool == nil {
		all, err := s.source.FetchPool(ctx, q)
		if err != nil {
			return nil, &PoolFetchError{err: err}
		}
		pool = all
	}

	selected, err := sampler.Sample(pool, cfg.Rounds)
	var short *InsufficientPoolError
	if stderrors.As(err, &short) && rules.ShortenOnShortPool && short.Available > 0 {
		selected, err = sampler.Sample(pool, short.Available)
	}
	if err != nil {
		return nil, err
	}

	return sampler.BuildRounds(selected, pool), nil
}

// dailySeed is the same for every session started on the same UTC day.
func dailySeed(now time.Time) uint64 {
	y, m, d := now.UTC().Date()
	return uint64(y*10000 + int(m)*100 + d)
}

// Start moves ModeSelected to RoundActive with the first round current.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusModeSelected {
		return fmt.Errorf("%w: start in %s", ErrInvalidTransition, s.status)
	}
	s.beginRoundLocked()
	return nil
}

func (s *Session) beginRoundLocked() {
	i := s.index
	r := newRound(s.rounds[i], s.clock.Now(), s.cfg.TimeLimit)
	if s.cfg.TimeLimit > 0 {
		r.timer = s.clock.AfterFunc(s.cfg.TimeLimit, func() { s.timeout(i, r) })
	}
	s.current = r
	s.shown = append(s.shown, r.data.QuestionID)
	s.status = StatusRoundActive
}

// Submit resolves round index with answer. Only the first resolution of a round
// counts; later ones return ErrDuplicateSubmission. A submission that arrives at or
// after the deadline is recorded as a timeout and handled like the timer event.
func (s *Session) Submit(index int, answer string) (domain.RoundOutcome, error) {
	s.mu.Lock()
	now := s.clock.Now()
	timedOut := s.current != nil && s.current.expired(now)
	out, err := s.resolveLocked(index, answer, timedOut, now)
	summary, completed := s.autoAdvanceLocked(err == nil && timedOut)
	s.mu.Unlock()

	s.notifyResolution(out, err, summary, completed)
	return out, err
}

// Expire is the timer event of round index. It resolves the round as incorrect unless
// a submission got there first. With AutoAdvance the next round is shown in the same step.
func (s *Session) Expire(index int) (domain.RoundOutcome, error) {
	return s.expire(index, nil)
}

// expire resolves round index as timed out. A non-nil r is the round that armed the
// timer; once it is no longer current (abandon, reconfigure) the event is dropped.
func (s *Session) expire(index int, r *Round) (domain.RoundOutcome, error) {
	s.mu.Lock()
	if r != nil && s.current != r {
		s.mu.Unlock()
		return domain.RoundOutcome{}, fmt.Errorf("%w: timer of a replaced round %d", ErrInvalidTransition, index)
	}
	out, err := s.resolveLocked(index, "", true, s.clock.Now())
	summary, completed := s.autoAdvanceLocked(err == nil)
	s.mu.Unlock()

	s.notifyResolution(out, err, summary, completed)
	return out, err
}

// timeout is the timer callback of round index.
func (s *Session) timeout(index int, r *Round) {
	_, err := s.expire(index, r)
	switch {
	case err == nil, stderrors.Is(err, ErrDuplicateSubmission), stderrors.Is(err, ErrInvalidTransition):
	default:
		slog.Error("game: round expiry failed", "session", s.id, "round", index, "error", err)
	}
}

func (s *Session) autoAdvanceLocked(expired bool) (domain.SessionSummary, bool) {
	if !expired || !s.rules.AutoAdvance {
		return domain.SessionSummary{}, false
	}
	return s.advanceLocked()
}

func (s *Session) notifyResolution(out domain.RoundOutcome, err error, summary domain.SessionSummary, completed bool) {
	if err != nil {
		return
	}
	s.notifyResolved(out)
	if completed {
		s.notifyCompleted(summary)
	}
}

func (s *Session) resolveLocked(index int, answer string, timedOut bool, now time.Time) (domain.RoundOutcome, error) {
	if index >= 0 && index < len(s.outcomes) {
		return domain.RoundOutcome{}, ErrDuplicateSubmission
	}
	if s.status != StatusRoundActive || index != s.index {
		return domain.RoundOutcome{}, fmt.Errorf("%w: resolve round %d in %s at round %d", ErrInvalidTransition, index, s.status, s.index)
	}

	out, err := s.current.resolve(answer, timedOut, now, s.rules.Rules)
	if err != nil {
		return domain.RoundOutcome{}, err
	}

	s.outcomes = append(s.outcomes, out)
	if out.Correct {
		s.correct++
	}
	s.reward += out.Reward
	s.status = StatusRoundResolved
	return out, nil
}

func (s *Session) notifyResolved(o domain.RoundOutcome) {
	if s.hooks.RoundResolved != nil {
		s.hooks.RoundResolved(s.id, o)
	}
}

// RevealHint discloses the next hint of the current round. revealed is false when
// every tier is already disclosed.
func (s *Session) RevealHint() (h domain.Hint, revealed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusIdle {
		return domain.Hint{}, false, fmt.Errorf("%w: reveal hint in %s", ErrInvalidTransition, s.status)
	}
	if !s.cfg.Mode.Hinted() {
		return domain.Hint{}, false, ErrHintsUnavailable
	}
	if s.status != StatusRoundActive {
		return domain.Hint{}, false, fmt.Errorf("%w: reveal hint in %s", ErrInvalidTransition, s.status)
	}

	h, revealed = s.current.RevealNextHint()
	if revealed {
		slog.Debug("game: hint revealed",
			"session", s.id, "round", s.index, "tier", h.Tier, "revealed", s.current.HintsRevealed())
	}
	return h, revealed, nil
}

// Advance moves RoundResolved to the next RoundActive, or to Complete after the last round.
func (s *Session) Advance() (View, error) {
	s.mu.Lock()

	if s.status != StatusRoundResolved {
		defer s.mu.Unlock()
		return View{}, fmt.Errorf("%w: advance in %s", ErrInvalidTransition, s.status)
	}

	summary, completed := s.advanceLocked()
	v := s.viewLocked()
	s.mu.Unlock()

	if completed {
		s.notifyCompleted(summary)
	}
	return v, nil
}

func (s *Session) advanceLocked() (domain.SessionSummary, bool) {
	if s.index+1 < len(s.rounds) {
		s.index++
		s.beginRoundLocked()
		return domain.SessionSummary{}, false
	}

	s.index = len(s.rounds)
	s.current = nil
	s.status = StatusComplete
	s.completedAt = s.clock.Now()
	return s.summaryLocked(), true
}

func (s *Session) notifyCompleted(sum domain.SessionSummary) {
	if s.hooks.Completed != nil {
		s.hooks.Completed(sum)
	}
}

// Abandon returns a non-terminal session to Idle and stops its timer. Abandoning a
// complete session is a no-op.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusComplete {
		return
	}
	if s.current != nil {
		s.current.stopTimer()
	}
	s.status = StatusIdle
	s.current = nil
	s.rounds = nil
	s.shown = nil
	s.outcomes = nil
	s.index, s.correct, s.reward = 0, 0, 0
}

// Summary returns the summary of a complete session.
func (s *Session) Summary() (domain.SessionSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusComplete {
		return domain.SessionSummary{}, false
	}
	return s.summaryLocked(), true
}

// Shown returns the ids of every round shown so far, in order.
func (s *Session) Shown() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.shown)
}

func (s *Session) summaryLocked() domain.SessionSummary {
	samples := make([]domain.RoundSample, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		samples = append(samples, domain.RoundSample{
			Index:         o.Index,
			QuestionID:    o.QuestionID,
			Correct:       o.Correct,
			TimedOut:      o.TimedOut,
			HintsRevealed: o.HintsRevealed,
			Reward:        o.Reward,
			TimeTaken:     o.TimeTaken,
		})
	}
	return domain.SessionSummary{
		SessionID:       s.id,
		Identity:        s.identity,
		Mode:            s.cfg.Mode,
		Category:        s.cfg.Category,
		Difficulty:      s.cfg.Difficulty,
		RequestedRounds: s.requested,
		TotalRounds:     len(s.rounds),
		CorrectRounds:   s.correct,
		TotalReward:     s.reward,
		StartedAt:       s.startedAt,
		CompletedAt:     s.completedAt,
		Rounds:          samples,
	}
}
