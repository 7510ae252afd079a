package record

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/event"
	"github.com/victornm/dramquiz/internal/ledger"
)

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
)

// Status is the persistence state of a completed session.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSaved    Status = "saved"
	StatusSkipped  Status = "skipped"
	StatusDeferred Status = "deferred"
)

type Config struct {
	EventBus *event.Bus
	Store    Store
	// Ledger is optional. Rewards are credited only when it is set.
	Ledger          ledger.Ledger
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Service records completed sessions in the background. Saving is idempotent by
// session id, so a retry after a partial failure never double-counts.
type Service struct {
	eb          *event.Bus
	store       Store
	ledger      ledger.Ledger
	maxAttempts int
	initial     time.Duration
	maxInterval time.Duration

	mu       sync.Mutex
	status   map[string]Status
	owners   map[string]string
	deferred map[string]domain.SessionSummary
}

func NewService(c Config) *Service {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultMaxInterval
	}

	s := &Service{
		eb:          c.EventBus,
		store:       c.Store,
		ledger:      c.Ledger,
		maxAttempts: c.MaxAttempts,
		initial:     c.InitialInterval,
		maxInterval: c.MaxInterval,
		status:      make(map[string]Status),
		owners:      make(map[string]string),
		deferred:    make(map[string]domain.SessionSummary),
	}

	s.eb.Subscribe(domain.EventNameSessionCompleted, "record", func(ctx context.Context, e event.Event) error {
		err := s.Record(ctx, e.(domain.EventSessionCompleted).Summary)
		if err != nil && !stderrors.Is(err, ErrPersistenceDeferred) {
			return err
		}
		return nil
	})

	return s
}

// Record persists sum and credits its reward. Anonymous sessions are skipped.
// When every attempt fails the summary is kept for Retry and ErrPersistenceDeferred
// is returned.
func (s *Service) Record(ctx context.Context, sum domain.SessionSummary) error {
	if sum.Anonymous() {
		s.setStatus(sum, StatusSkipped)
		slog.InfoContext(ctx, "record: anonymous session skipped", "session", sum.SessionID)
		return nil
	}

	s.setStatus(sum, StatusPending)

	var (
		attempts int
		inserted bool
	)
	op := func() error {
		attempts++

		ok, err := s.store.Save(ctx, sum)
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		inserted = inserted || ok

		return s.credit(ctx, sum)
	}

	notify := func(err error, next time.Duration) {
		slog.WarnContext(ctx, "record: attempt failed", "session", sum.SessionID, "attempt", attempts, "retry_in", next, "error", err)
	}

	if err := backoff.RetryNotify(op, s.backOff(ctx), notify); err != nil {
		s.mu.Lock()
		s.status[sum.SessionID] = StatusDeferred
		s.deferred[sum.SessionID] = sum
		s.mu.Unlock()

		slog.ErrorContext(ctx, "record: persistence deferred", "session", sum.SessionID, "attempts", attempts, "error", err)
		s.eb.Publish(ctx, domain.EventPersistenceDeferred{
			SessionID: sum.SessionID,
			Attempts:  attempts,
			Reason:    err.Error(),
		})
		return fmt.Errorf("%w: %w", ErrPersistenceDeferred, err)
	}

	// A deferred summary may have been stored by an earlier attempt whose credit
	// failed. Its recorded event was never published.
	s.mu.Lock()
	_, wasDeferred := s.deferred[sum.SessionID]
	s.status[sum.SessionID] = StatusSaved
	delete(s.deferred, sum.SessionID)
	s.mu.Unlock()

	if !inserted && !wasDeferred {
		slog.InfoContext(ctx, "record: session already recorded", "session", sum.SessionID)
		return nil
	}

	slog.InfoContext(ctx, "record: session recorded", "session", sum.SessionID, "attempts", attempts, "reward", sum.TotalReward)
	s.eb.Publish(ctx, domain.EventSessionRecorded{Summary: sum})
	return nil
}

func (s *Service) credit(ctx context.Context, sum domain.SessionSummary) error {
	if s.ledger == nil || sum.TotalReward <= 0 {
		return nil
	}

	c, err := s.ledger.CreditReward(ctx, ledger.CreditRequest{
		Identity:        sum.Identity,
		Amount:          decimal.NewFromInt(int64(sum.TotalReward)),
		Reason:          fmt.Sprintf("%s session", sum.Mode),
		SourceSessionID: sum.SessionID,
		CreateTime:      sum.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("credit reward: %w", err)
	}
	if c.Duplicate {
		slog.DebugContext(ctx, "record: reward already credited", "session", sum.SessionID)
	}
	return nil
}

func (s *Service) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	b.MaxInterval = s.maxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)
}

// Retry resubmits a deferred session. Saved sessions succeed without doing anything.
func (s *Service) Retry(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	st, known := s.status[sessionID]
	sum, deferred := s.deferred[sessionID]
	s.mu.Unlock()

	switch {
	case deferred:
		return s.Record(ctx, sum)
	case known && st == StatusPending:
		return fmt.Errorf("%w: session %s is still being recorded", ErrPersistenceDeferred, sessionID)
	case known:
		return nil
	}

	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return err
	}
	return nil
}

// Status reports the persistence state of sessionID. Sessions recorded by another
// process are looked up in the store.
func (s *Service) Status(ctx context.Context, sessionID string) (Status, error) {
	s.mu.Lock()
	st, ok := s.status[sessionID]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return "", err
	}
	return StatusSaved, nil
}

// Get returns the stored summary of sessionID.
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	return s.store.Get(ctx, sessionID)
}

// History returns the newest recorded sessions of identity.
func (s *Service) History(ctx context.Context, identity string, limit int) ([]domain.SessionSummary, error) {
	return s.store.ListByIdentity(ctx, identity, limit)
}

// Authorize returns ErrNotFound unless sessionID was played by identity.
func (s *Service) Authorize(ctx context.Context, sessionID, identity string) error {
	s.mu.Lock()
	owner, ok := s.owners[sessionID]
	s.mu.Unlock()

	if !ok {
		sum, err := s.store.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		owner = sum.Identity
	}

	if owner != identity {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

func (s *Service) setStatus(sum domain.SessionSummary, st Status) {
	s.mu.Lock()
	s.status[sum.SessionID] = st
	s.owners[sum.SessionID] = sum.Identity
	s.mu.Unlock()
}
