package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/dramquiz/internal/domain"
)

// Postgres reads the catalog from the questions table.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) FetchPool(ctx context.Context, q PoolQuery) ([]domain.Question, error) {
	stmt, args := buildPoolQuery(q)

	rows, err := p.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("question: query pool: %w", err)
	}

	pool, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			item  domain.Question
			hints []byte
		)
		if err := r.Scan(
			&item.ID, &item.Kind, &item.Category, &item.Difficulty,
			&item.Prompt, &item.Answer, &item.WrongAnswers, &item.Explanation,
			&item.BaseReward, &hints,
		); err != nil {
			return domain.Question{}, err
		}
		if len(hints) > 0 {
			if err := json.Unmarshal(hints, &item.Hints); err != nil {
				return domain.Question{}, fmt.Errorf("decode hints of %s: %w", item.ID, err)
			}
		}
		return item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("question: collect pool: %w", err)
	}

	return pool, nil
}

func buildPoolQuery(q PoolQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.Kind != "" {
		add("kind = $%d", string(q.Kind))
	}
	if q.Category != nil {
		add("category = $%d", string(*q.Category))
	}
	if q.Difficulty != nil {
		add("difficulty = $%d", string(*q.Difficulty))
	}
	if len(q.ExcludeIDs) > 0 {
		add("id <> ALL($%d)", q.ExcludeIDs)
	}

	stmt := `
SELECT id, kind, category, difficulty, prompt, answer,
       COALESCE(wrong_answers, '{}'), COALESCE(explanation, ''), base_reward, hints
FROM questions`
	if len(where) > 0 {
		stmt += "\nWHERE " + strings.Join(where, " AND ")
	}
	stmt += "\nORDER BY id;"

	return stmt, args
}
