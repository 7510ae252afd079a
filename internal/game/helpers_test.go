package game_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/game"
	"github.com/victornm/dramquiz/internal/question"
)

var epoch = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// fakeClock only moves when told to. Due timers fire synchronously inside Add.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) game.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Add moves the clock forward by d and fires every timer that became due, in
// deadline order.
func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Skip moves the clock forward by d without firing timers.
func (c *fakeClock) Skip(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Pending returns how many armed timers have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type failingSource struct{ err error }

func (s failingSource) FetchPool(context.Context, question.PoolQuery) ([]domain.Question, error) {
	return nil, s.err
}

var errSourceDown = errors.New("source down")

// countingSource records every query it serves.
type countingSource struct {
	next question.Source

	mu      sync.Mutex
	queries []question.PoolQuery
}

func (s *countingSource) FetchPool(ctx context.Context, q question.PoolQuery) ([]domain.Question, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	return s.next.FetchPool(ctx, q)
}

func trivia(n int, category domain.Category, difficulty domain.Difficulty) []domain.Question {
	items := make([]domain.Question, 0, n)
	for i := range n {
		items = append(items, domain.Question{
			ID:           fmt.Sprintf("%s-%s-%02d", category, difficulty, i),
			Kind:         domain.KindTrivia,
			Category:     category,
			Difficulty:   difficulty,
			Prompt:       fmt.Sprintf("Question %d about %s?", i, category),
			Answer:       fmt.Sprintf("%s answer %d", category, i),
			WrongAnswers: []string{"wrong a", "wrong b", "wrong c"},
			Explanation:  "because",
		})
	}
	return items
}

func tasting(n int, difficulty domain.Difficulty) []domain.Question {
	items := make([]domain.Question, 0, n)
	for i := range n {
		items = append(items, domain.Question{
			ID:         fmt.Sprintf("dram-%02d", i),
			Kind:       domain.KindTasting,
			Category:   domain.CategoryScotch,
			Difficulty: difficulty,
			Prompt:     "Name this dram.",
			Answer:     fmt.Sprintf("Distillery %d", i),
			Hints: map[domain.HintTier]string{
				domain.HintFinish: fmt.Sprintf("finish %d", i),
				domain.HintColor:  fmt.Sprintf("color %d", i),
				domain.HintPalate: fmt.Sprintf("palate %d", i),
				domain.HintNose:   fmt.Sprintf("nose %d", i),
			},
		})
	}
	return items
}

func ptr[T any](v T) *T { return &v }

// answerOf looks up the correct answer of the current round in the catalog.
func answerOf(items []domain.Question, id string) string {
	for _, it := range items {
		if it.ID == id {
			return it.Answer
		}
	}
	return ""
}
