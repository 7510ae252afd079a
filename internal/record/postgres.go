package record

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/dramquiz/internal/domain"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Save(ctx context.Context, s domain.SessionSummary) (inserted bool, err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		insSessionStmt = `
INSERT INTO game_sessions (session_id, identity, mode, category, difficulty, requested_rounds,
                           total_rounds, correct_rounds, total_reward, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (session_id) DO NOTHING;`
		insRoundStmt = `
INSERT INTO game_session_rounds (session_id, round_index, question_id, correct, timed_out,
                                 hints_revealed, reward, time_taken_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	)

	tag, err := tx.Exec(ctx, insSessionStmt,
		s.SessionID, s.Identity, string(s.Mode), categoryArg(s.Category), difficultyArg(s.Difficulty), s.RequestedRounds,
		s.TotalRounds, s.CorrectRounds, s.TotalReward, s.StartedAt, s.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	b := &pgx.Batch{}
	for _, r := range s.Rounds {
		b.Queue(insRoundStmt, s.SessionID, r.Index, r.QuestionID, r.Correct, r.TimedOut,
			r.HintsRevealed, r.Reward, r.TimeTaken.Milliseconds())
	}
	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		return false, fmt.Errorf("insert rounds: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (p *PostgresStore) Get(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	const stmt = `
SELECT session_id, identity, mode, category, difficulty, requested_rounds,
       total_rounds, correct_rounds, total_reward, started_at, completed_at
FROM game_sessions
WHERE session_id = $1;`

	rows, err := p.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSummary)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	if s.Rounds, err = p.rounds(ctx, sessionID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	const stmt = `
SELECT session_id, identity, mode, category, difficulty, requested_rounds,
       total_rounds, correct_rounds, total_reward, started_at, completed_at
FROM game_sessions
WHERE identity = $1
ORDER BY completed_at DESC
LIMIT $2;`

	rows, err := p.db.Query(ctx, stmt, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return pgx.CollectRows(rows, scanSummary)
}

func (p *PostgresStore) rounds(ctx context.Context, sessionID string) ([]domain.RoundSample, error) {
	const stmt = `
SELECT round_index, question_id, correct, timed_out, hints_revealed, reward, time_taken_ms
FROM game_session_rounds
WHERE session_id = $1
ORDER BY round_index;`

	rows, err := p.db.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select rounds: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.RoundSample, error) {
		var (
			rs domain.RoundSample
			ms int64
		)
		err := r.Scan(&rs.Index, &rs.QuestionID, &rs.Correct, &rs.TimedOut, &rs.HintsRevealed, &rs.Reward, &ms)
		rs.TimeTaken = time.Duration(ms) * time.Millisecond
		return rs, err
	})
}

func scanSummary(r pgx.CollectableRow) (domain.SessionSummary, error) {
	var (
		s                    domain.SessionSummary
		mode                 string
		category, difficulty *string
	)
	err := r.Scan(&s.SessionID, &s.Identity, &mode, &category, &difficulty, &s.RequestedRounds,
		&s.TotalRounds, &s.CorrectRounds, &s.TotalReward, &s.StartedAt, &s.CompletedAt)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	s.Mode = domain.Mode(mode)
	s.StartedAt, s.CompletedAt = s.StartedAt.UTC(), s.CompletedAt.UTC()
	if category != nil {
		c := domain.Category(*category)
		s.Category = &c
	}
	if difficulty != nil {
		d := domain.Difficulty(*difficulty)
		s.Difficulty = &d
	}
	return s, nil
}

func categoryArg(c *domain.Category) *string {
	if c == nil {
		return nil
	}
	v := string(*c)
	return &v
}

func difficultyArg(d *domain.Difficulty) *string {
	if d == nil {
		return nil
	}
	v := string(*d)
	return &v
}
