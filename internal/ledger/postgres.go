package ledger

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// CreditReward inserts the credit and returns the new balance in one round trip.
// The unique key (identity, source_session_id) turns a replay into a duplicate.
func (p *Postgres) CreditReward(ctx context.Context, req CreditRequest) (*Credit, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate credit ID: %w", err)
	}

	const stmt = `
WITH inserted AS (
	INSERT INTO reward_ledger (credit_id, identity, amount, reason, source_session_id, create_time)
	VALUES ($1, $2, $3, $4, $5, $6)
)
SELECT COALESCE(SUM(amount), 0) AS balance FROM reward_ledger WHERE identity = $2;`

	var total decimal.Decimal
	err = p.db.QueryRow(ctx, stmt, id, req.Identity, req.Amount, req.Reason, req.SourceSessionID, req.CreateTime).Scan(&total)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return p.existing(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("insert credit: %w", err)
	}

	return &Credit{
		CreditID:        id.String(),
		Identity:        req.Identity,
		Amount:          req.Amount,
		Reason:          req.Reason,
		SourceSessionID: req.SourceSessionID,
		CreateTime:      req.CreateTime,
		Balance:         total.Add(req.Amount),
	}, nil
}

func (p *Postgres) existing(ctx context.Context, req CreditRequest) (*Credit, error) {
	const stmt = `
SELECT credit_id, amount, reason, create_time,
       (SELECT COALESCE(SUM(amount), 0) FROM reward_ledger WHERE identity = $1) AS balance
FROM reward_ledger
WHERE identity = $1 AND source_session_id = $2;`

	c := Credit{Identity: req.Identity, SourceSessionID: req.SourceSessionID, Duplicate: true}
	var id uuid.UUID
	err := p.db.QueryRow(ctx, stmt, req.Identity, req.SourceSessionID).Scan(&id, &c.Amount, &c.Reason, &c.CreateTime, &c.Balance)
	if err != nil {
		return nil, fmt.Errorf("select existing credit: %w", err)
	}
	c.CreditID = id.String()
	return &c, nil
}

func (p *Postgres) Balance(ctx context.Context, identity string) (decimal.Decimal, error) {
	const stmt = `SELECT COALESCE(SUM(amount), 0) FROM reward_ledger WHERE identity = $1;`

	var total decimal.Decimal
	if err := p.db.QueryRow(ctx, stmt, identity).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("select balance: %w", err)
	}
	return total, nil
}
