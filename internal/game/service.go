package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/event"
	"github.com/victornm/dramquiz/internal/question"
)

// SeenStore remembers what a player was shown, so new sessions can prefer fresh items.
type SeenStore interface {
	Recent(ctx context.Context, identity string) ([]string, error)
	Remember(ctx context.Context, identity string, ids []string, at time.Time) error
}

type Config struct {
	EventBus *event.Bus
	Source   question.Source
	// Seen is optional.
	Seen  SeenStore
	Modes map[domain.Mode]ModeRules
	Clock Clock
	// NewSampler is optional; tests use it to make sampling deterministic.
	NewSampler func() *Sampler
}

// Service owns the live sessions of this process. Every session is an independent
// instance keyed by its id.
type Service struct {
	eb         *event.Bus
	source     question.Source
	seen       SeenStore
	modes      map[domain.Mode]ModeRules
	clock      Clock
	newSampler func() *Sampler

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	session *Session
	touched time.Time
}

func NewService(c Config) *Service {
	if c.Modes == nil {
		c.Modes = DefaultModes()
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	return &Service{
		eb:         c.EventBus,
		source:     c.Source,
		seen:       c.Seen,
		modes:      c.Modes,
		clock:      c.Clock,
		newSampler: c.NewSampler,
		sessions:   make(map[string]*entry),
	}
}

// StartSessionRequest configures a new session. Zero Rounds and TimeLimit take the
// defaults of the mode.
type StartSessionRequest struct {
	// Identity is empty for anonymous play.
	Identity   string
	Mode       domain.Mode
	Category   *domain.Category
	Difficulty *domain.Difficulty
	Rounds     int
	TimeLimit  time.Duration
}

// StartSession creates a session, configures it and shows its first round.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*View, error) {
	rules, ok := s.modes[req.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, req.Mode)
	}

	cfg := domain.SessionConfig{
		Mode:       req.Mode,
		Category:   req.Category,
		Difficulty: req.Difficulty,
		Rounds:     req.Rounds,
		TimeLimit:  req.TimeLimit,
	}
	if cfg.Rounds == 0 {
		cfg.Rounds = rules.Rounds
	}
	if cfg.TimeLimit == 0 && req.Mode.Timed() {
		cfg.TimeLimit = rules.TimeLimit
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	var sampler *Sampler
	if s.newSampler != nil {
		sampler = s.newSampler()
	}

	ss := NewSession(SessionOptions{
		ID:       id.String(),
		Identity: req.Identity,
		Source:   s.source,
		Modes:    s.modes,
		Clock:    s.clock,
		Sampler:  sampler,
		Exclude:  s.recent(ctx, req.Identity),
		Hooks: Hooks{
			RoundResolved: s.onRoundResolved,
			Completed:     s.onCompleted,
		},
	})

	if err := ss.Configure(ctx, cfg); err != nil {
		return nil, err
	}
	if err := ss.Start(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[ss.ID()] = &entry{session: ss, touched: s.clock.Now()}
	s.mu.Unlock()

	v := ss.Snapshot()
	s.publish(ctx, domain.EventSessionStarted{
		SessionID:       v.SessionID,
		Identity:        req.Identity,
		Mode:            v.Mode,
		RequestedRounds: v.RequestedRounds,
		TotalRounds:     v.TotalRounds,
	})

	slog.InfoContext(ctx, "game: session started",
		"session", v.SessionID, "mode", v.Mode, "rounds", v.TotalRounds, "anonymous", req.Identity == "")
	return &v, nil
}

func (s *Service) recent(ctx context.Context, identity string) []string {
	if s.seen == nil || identity == "" {
		return nil
	}
	ids, err := s.seen.Recent(ctx, identity)
	if err != nil {
		// Fresh items are a preference, not a requirement.
		slog.WarnContext(ctx, "game: load seen items failed", "identity", identity, "error", err)
		return nil
	}
	return ids
}

// Session returns the live session id owned by identity.
func (s *Service) Session(id, identity string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || e.session.Identity() != identity {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.touched = s.clock.Now()
	return e.session, nil
}

type SessionRequest struct {
	SessionID string
	Identity  string
}

func (s *Service) GetSession(_ context.Context, req SessionRequest) (*View, error) {
	ss, err := s.Session(req.SessionID, req.Identity)
	if err != nil {
		return nil, err
	}
	v := ss.Snapshot()
	return &v, nil
}

type SubmitAnswerRequest struct {
	SessionID string
	Identity  string
	Round     int
	Answer    string
}

// SubmitAnswer resolves the current round. A round already resolved by the timer or an
// earlier submission yields ErrDuplicateSubmission.
func (s *Service) SubmitAnswer(_ context.Context, req SubmitAnswerRequest) (*domain.RoundOutcome, error) {
	ss, err := s.Session(req.SessionID, req.Identity)
	if err != nil {
		return nil, err
	}
	out, err := ss.Submit(req.Round, req.Answer)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type RevealHintResponse struct {
	Hint     domain.Hint
	Revealed bool
	Total    int
	Count    int
}

func (s *Service) RevealHint(_ context.Context, req SessionRequest) (*RevealHintResponse, error) {
	ss, err := s.Session(req.SessionID, req.Identity)
	if err != nil {
		return nil, err
	}
	h, revealed, err := ss.RevealHint()
	if err != nil {
		return nil, err
	}

	resp := &RevealHintResponse{Hint: h, Revealed: revealed}
	if r := ss.Snapshot().Round; r != nil {
		resp.Total = r.HintsTotal
		resp.Count = len(r.Hints)
	}
	return resp, nil
}

func (s *Service) Advance(_ context.Context, req SessionRequest) (*View, error) {
	ss, err := s.Session(req.SessionID, req.Identity)
	if err != nil {
		return nil, err
	}
	v, err := ss.Advance()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Abandon stops a session and discards it.
func (s *Service) Abandon(ctx context.Context, req SessionRequest) error {
	ss, err := s.Session(req.SessionID, req.Identity)
	if err != nil {
		return err
	}
	ss.Abandon()

	s.mu.Lock()
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()

	slog.InfoContext(ctx, "game: session abandoned", "session", req.SessionID)
	return nil
}

// Evict discards sessions untouched for longer than ttl and returns how many it dropped.
func (s *Service) Evict(ttl time.Duration) int {
	cutoff := s.clock.Now().Add(-ttl)

	s.mu.Lock()
	var stale []*Session
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			stale = append(stale, e.session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, ss := range stale {
		ss.Abandon()
	}
	return len(stale)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval, ttl time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(ttl); n > 0 {
				slog.InfoContext(ctx, "game: evicted idle sessions", "count", n)
			}
		}
	}
}

func (s *Service) onRoundResolved(sessionID string, o domain.RoundOutcome) {
	s.publish(context.Background(), domain.EventRoundResolved{SessionID: sessionID, Outcome: o})
}

func (s *Service) onCompleted(sum domain.SessionSummary) {
	ctx := context.Background()

	if s.seen != nil && !sum.Anonymous() {
		ids := make([]string, 0, len(sum.Rounds))
		for _, r := range sum.Rounds {
			ids = append(ids, r.QuestionID)
		}
		if err := s.seen.Remember(ctx, sum.Identity, ids, sum.CompletedAt); err != nil {
			slog.WarnContext(ctx, "game: remember seen items failed", "session", sum.SessionID, "error", err)
		}
	}

	slog.InfoContext(ctx, "game: session completed",
		"session", sum.SessionID, "correct", sum.CorrectRounds, "rounds", sum.TotalRounds, "reward", sum.TotalReward)
	s.publish(ctx, domain.EventSessionCompleted{Summary: sum})
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
}
