package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger credits rewards to a player. Crediting the same source session twice
// is not an error: the first credit is returned with Duplicate set.
type Ledger interface {
	CreditReward(ctx context.Context, req CreditRequest) (*Credit, error)
	Balance(ctx context.Context, identity string) (decimal.Decimal, error)
}

type CreditRequest struct {
	Identity        string
	Amount          decimal.Decimal
	Reason          string
	SourceSessionID string
	CreateTime      time.Time
}

func (r CreditRequest) validate() error {
	switch {
	case r.Identity == "":
		return fmt.Errorf("ledger: missing identity")
	case r.SourceSessionID == "":
		return fmt.Errorf("ledger: missing source session")
	case r.Amount.IsNegative():
		return fmt.Errorf("ledger: negative amount %s", r.Amount)
	}
	return nil
}

type Credit struct {
	CreditID        string
	Identity        string
	Amount          decimal.Decimal
	Reason          string
	SourceSessionID string
	CreateTime      time.Time
	// Balance is the total credited to Identity, this credit included.
	Balance decimal.Decimal
	// Duplicate is set when the source session had already been credited.
	Duplicate bool
}

// Memory is a Ledger for tests and single-process deployments.
type Memory struct {
	mu      sync.Mutex
	credits map[string]Credit
	balance map[string]decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{
		credits: make(map[string]Credit),
		balance: make(map[string]decimal.Decimal),
	}
}

func (m *Memory) CreditReward(_ context.Context, req CreditRequest) (*Credit, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := req.Identity + "\x00" + req.SourceSessionID
	if c, ok := m.credits[key]; ok {
		c.Balance = m.balance[req.Identity]
		c.Duplicate = true
		return &c, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate credit ID: %w", err)
	}

	total := m.balance[req.Identity].Add(req.Amount)
	m.balance[req.Identity] = total

	c := Credit{
		CreditID:        id.String(),
		Identity:        req.Identity,
		Amount:          req.Amount,
		Reason:          req.Reason,
		SourceSessionID: req.SourceSessionID,
		CreateTime:      req.CreateTime,
	}
	m.credits[key] = c

	c.Balance = total
	return &c, nil
}

func (m *Memory) Balance(_ context.Context, identity string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance[identity], nil
}
