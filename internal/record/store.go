package record

import (
	"context"
	"slices"
	"sync"

	"github.com/victornm/dramquiz/internal/domain"
)

// Store persists session summaries keyed by SessionID. Save reports whether the
// summary was newly inserted; saving a known session again is a successful no-op.
type Store interface {
	Save(ctx context.Context, s domain.SessionSummary) (inserted bool, err error)
	Get(ctx context.Context, sessionID string) (*domain.SessionSummary, error)
	ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.SessionSummary, error)
}

// MemoryStore is a Store for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionSummary
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.SessionSummary)}
}

func (m *MemoryStore) Save(_ context.Context, s domain.SessionSummary) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.SessionID]; ok {
		return false, nil
	}
	s.Rounds = slices.Clone(s.Rounds)
	m.sessions[s.SessionID] = s
	m.order = append(m.order, s.SessionID)
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Rounds = slices.Clone(s.Rounds)
	return &s, nil
}

// ListByIdentity returns the newest summaries of identity first.
func (m *MemoryStore) ListByIdentity(_ context.Context, identity string, limit int) ([]domain.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.SessionSummary
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.sessions[m.order[i]]
		if s.Identity != identity {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
