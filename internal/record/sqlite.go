package record

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/victornm/dramquiz/internal/domain"
)

// SQLiteStore keeps records in a local SQLite file, for single-node and offline
// deployments without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and makes sure the tables exist.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, stderrors.Join(fmt.Errorf("ping sqlite: %w", err), db.Close())
	}
	if err := createTables(db); err != nil {
		return nil, stderrors.Join(err, db.Close())
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS game_sessions (
			session_id       TEXT PRIMARY KEY,
			identity         TEXT NOT NULL,
			mode             TEXT NOT NULL,
			category         TEXT,
			difficulty       TEXT,
			requested_rounds INTEGER NOT NULL,
			total_rounds     INTEGER NOT NULL,
			correct_rounds   INTEGER NOT NULL,
			total_reward     INTEGER NOT NULL,
			started_at       INTEGER NOT NULL,
			completed_at     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS game_sessions_identity_idx ON game_sessions (identity, completed_at);
		CREATE TABLE IF NOT EXISTS game_session_rounds (
			session_id     TEXT NOT NULL REFERENCES game_sessions (session_id),
			round_index    INTEGER NOT NULL,
			question_id    TEXT NOT NULL,
			correct        BOOLEAN NOT NULL,
			timed_out      BOOLEAN NOT NULL,
			hints_revealed INTEGER NOT NULL,
			reward         INTEGER NOT NULL,
			time_taken_ms  INTEGER NOT NULL,
			PRIMARY KEY (session_id, round_index)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, sum domain.SessionSummary) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback())
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO game_sessions (session_id, identity, mode, category, difficulty, requested_rounds,
		                                     total_rounds, correct_rounds, total_reward, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID, sum.Identity, string(sum.Mode), categoryArg(sum.Category), difficultyArg(sum.Difficulty), sum.RequestedRounds,
		sum.TotalRounds, sum.CorrectRounds, sum.TotalReward, sum.StartedAt.UnixMilli(), sum.CompletedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	if n == 0 {
		return false, tx.Commit()
	}

	for _, r := range sum.Rounds {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO game_session_rounds (session_id, round_index, question_id, correct, timed_out,
			                                 hints_revealed, reward, time_taken_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.SessionID, r.Index, r.QuestionID, r.Correct, r.TimedOut, r.HintsRevealed, r.Reward, r.TimeTaken.Milliseconds())
		if err != nil {
			return false, fmt.Errorf("insert round: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

const selectSummary = `
	SELECT session_id, identity, mode, category, difficulty, requested_rounds,
	       total_rounds, correct_rounds, total_reward, started_at, completed_at
	FROM game_sessions`

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	sum, err := scanSQLiteSummary(s.db.QueryRowContext(ctx, selectSummary+` WHERE session_id = ?`, sessionID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT round_index, question_id, correct, timed_out, hints_revealed, reward, time_taken_ms
		FROM game_session_rounds
		WHERE session_id = ?
		ORDER BY round_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select rounds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r  domain.RoundSample
			ms int64
		)
		if err := rows.Scan(&r.Index, &r.QuestionID, &r.Correct, &r.TimedOut, &r.HintsRevealed, &r.Reward, &ms); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.TimeTaken = time.Duration(ms) * time.Millisecond
		sum.Rounds = append(sum.Rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select rounds: %w", err)
	}
	return &sum, nil
}

func (s *SQLiteStore) ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, selectSummary+` WHERE identity = ? ORDER BY completed_at DESC LIMIT ?`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		sum, err := scanSQLiteSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSummary(row rowScanner) (domain.SessionSummary, error) {
	var (
		s                    domain.SessionSummary
		mode                 string
		category, difficulty sql.NullString
		started, completed   int64
	)
	err := row.Scan(&s.SessionID, &s.Identity, &mode, &category, &difficulty, &s.RequestedRounds,
		&s.TotalRounds, &s.CorrectRounds, &s.TotalReward, &started, &completed)
	if err != nil {
		return domain.SessionSummary{}, err
	}

	s.Mode = domain.Mode(mode)
	if category.Valid {
		c := domain.Category(category.String)
		s.Category = &c
	}
	if difficulty.Valid {
		d := domain.Difficulty(difficulty.String)
		s.Difficulty = &d
	}
	s.StartedAt = time.UnixMilli(started).UTC()
	s.CompletedAt = time.UnixMilli(completed).UTC()
	return s, nil
}
