package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/dramquiz/internal/api"
	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/errors"
	"github.com/victornm/dramquiz/internal/event"
	"github.com/victornm/dramquiz/internal/game"
	"github.com/victornm/dramquiz/internal/leaderboard"
	"github.com/victornm/dramquiz/internal/ledger"
	"github.com/victornm/dramquiz/internal/question"
	"github.com/victornm/dramquiz/internal/record"
)

func TestAPI_PlayQuickSession(t *testing.T) {
	f := newFixture(t)

	var s api.Session
	resp := f.do(t, http.MethodPost, "/v1/sessions", "u1", api.StartSessionRequest{Mode: "quick", Rounds: 2})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	decode(t, resp, &s)
	require.Equal(t, "round_active", s.Status)
	require.Equal(t, 2, s.TotalRounds)
	require.Len(t, s.Round.Choices, 4)
	require.Empty(t, s.Round.Answer, "the answer stays hidden until the round is resolved")

	for i := range 2 {
		var o api.Outcome
		resp = f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/answers", "u1", api.SubmitAnswerRequest{
			Round:  &i,
			Answer: f.answers[s.Round.Prompt],
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		decode(t, resp, &o)
		require.True(t, o.Correct)
		require.Equal(t, 100, o.Reward)

		resp = f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/advance", "u1", nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		s = api.Session{}
		decode(t, resp, &s)
	}

	require.Equal(t, "complete", s.Status)
	require.Equal(t, 200, s.TotalReward)
	require.Len(t, s.Outcomes, 2)
	require.NotNil(t, s.CompletedAt)
	require.Nil(t, s.Round)

	require.Eventually(t, func() bool {
		resp := f.do(t, http.MethodGet, "/v1/sessions/"+s.SessionID+"/record", "u1", nil)
		var st api.RecordStatus
		return json.Unmarshal(resp.Body.Bytes(), &st) == nil && st.Status == string(record.StatusSaved)
	}, 2*time.Second, 10*time.Millisecond, "the completed session should be recorded")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp = f.do(t, method, "/v1/sessions/"+s.SessionID+"/record", "u2", nil)
		require.Equal(t, http.StatusNotFound, resp.Code, "%s record of another player: %s", method, resp.Body.String())
		resp = f.do(t, method, "/v1/sessions/"+s.SessionID+"/record", "", nil)
		require.Equal(t, http.StatusNotFound, resp.Code, "%s record without identity: %s", method, resp.Body.String())
	}
	var st api.RecordStatus
	resp = f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/record", "u1", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decode(t, resp, &st)
	require.Equal(t, string(record.StatusSaved), st.Status)

	require.Eventually(t, func() bool {
		resp := f.do(t, http.MethodGet, "/v1/leaderboards/quick", "", nil)
		return resp.Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	var l domain.Leaderboard
	decode(t, f.do(t, http.MethodGet, "/v1/leaderboards/quick", "", nil), &l)
	require.Equal(t, []domain.LeaderboardEntry{{Identity: "u1", Reward: 200}}, l.Entries)

	var balance struct {
		Identity string `json:"identity"`
		Balance  string `json:"balance"`
	}
	decode(t, f.do(t, http.MethodGet, "/v1/me/balance", "u1", nil), &balance)
	require.Equal(t, "200", balance.Balance)

	var history struct {
		Sessions []api.Summary `json:"sessions"`
	}
	decode(t, f.do(t, http.MethodGet, "/v1/me/sessions", "u1", nil), &history)
	require.Len(t, history.Sessions, 1)
	require.Equal(t, s.SessionID, history.Sessions[0].SessionID)
}

func TestAPI_BlindTastingHints(t *testing.T) {
	f := newFixture(t)

	var s api.Session
	decode(t, f.do(t, http.MethodPost, "/v1/sessions", "u1", api.StartSessionRequest{Mode: "blind_tasting", Rounds: 1}), &s)
	require.Equal(t, "tasting", s.Round.Kind)
	require.Equal(t, 4, s.Round.HintsTotal)
	require.Empty(t, s.Round.Hints)

	for i := range 5 {
		var h api.HintResponse
		resp := f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/hints", "u1", nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		decode(t, resp, &h)

		if i < 4 {
			require.True(t, h.Revealed)
			require.Equal(t, domain.HintOrder[i], h.Hint.Tier)
			require.Equal(t, i+1, h.Count)
			continue
		}
		require.False(t, h.Revealed, "revealing past the last hint changes nothing")
		require.Nil(t, h.Hint)
		require.Equal(t, 4, h.Count)
	}

	round := 0
	var o api.Outcome
	decode(t, f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/answers", "u1", api.SubmitAnswerRequest{
		Round:  &round,
		Answer: f.answers[s.Round.Prompt],
	}), &o)
	require.True(t, o.Correct)
	require.Equal(t, 4, o.HintsRevealed)
	require.Equal(t, 65, o.Reward, "125 for a medium dram minus four hints of 15")
}

func TestAPI_Errors(t *testing.T) {
	f := newFixture(t)

	var active api.Session
	decode(t, f.do(t, http.MethodPost, "/v1/sessions", "u1", api.StartSessionRequest{Mode: "quick", Rounds: 2}), &active)
	zero, one := 0, 1
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/sessions/"+active.SessionID+"/answers", "u1",
		api.SubmitAnswerRequest{Round: &zero, Answer: "nope"}).Code)

	tests := map[string]struct {
		method, path, identity string
		body                   any
		wantStatus             int
		wantCode               errors.Code
	}{
		"unknown mode": {
			method: http.MethodPost, path: "/v1/sessions", identity: "u1",
			body:       api.StartSessionRequest{Mode: "marathon"},
			wantStatus: http.StatusBadRequest, wantCode: errors.CodeInvalidArgument,
		},
		"missing mode": {
			method: http.MethodPost, path: "/v1/sessions", identity: "u1",
			body:       map[string]any{"rounds": 3},
			wantStatus: http.StatusBadRequest, wantCode: errors.CodeInvalidArgument,
		},
		"unknown category": {
			method: http.MethodPost, path: "/v1/sessions", identity: "u1",
			body:       api.StartSessionRequest{Mode: "quick", Category: "vodka"},
			wantStatus: http.StatusBadRequest, wantCode: errors.CodeInvalidArgument,
		},
		"not enough questions": {
			method: http.MethodPost, path: "/v1/sessions", identity: "u1",
			body:       api.StartSessionRequest{Mode: "quick", Category: "tequila"},
			wantStatus: http.StatusUnprocessableEntity, wantCode: errors.CodeFailedPrecondition,
		},
		"session of another player": {
			method: http.MethodGet, path: "/v1/sessions/" + active.SessionID, identity: "u2",
			wantStatus: http.StatusNotFound, wantCode: errors.CodeNotFound,
		},
		"second answer to a resolved round": {
			method: http.MethodPost, path: "/v1/sessions/" + active.SessionID + "/answers", identity: "u1",
			body:       api.SubmitAnswerRequest{Round: &zero, Answer: "again"},
			wantStatus: http.StatusConflict, wantCode: errors.CodeAlreadyExists,
		},
		"answer to a round that is not shown": {
			method: http.MethodPost, path: "/v1/sessions/" + active.SessionID + "/answers", identity: "u1",
			body:       api.SubmitAnswerRequest{Round: &one, Answer: "early"},
			wantStatus: http.StatusConflict, wantCode: errors.CodeAborted,
		},
		"answer without a round": {
			method: http.MethodPost, path: "/v1/sessions/" + active.SessionID + "/answers", identity: "u1",
			body:       map[string]any{"answer": "x"},
			wantStatus: http.StatusBadRequest, wantCode: errors.CodeInvalidArgument,
		},
		"hints outside blind tasting": {
			method: http.MethodPost, path: "/v1/sessions/" + active.SessionID + "/hints", identity: "u1",
			wantStatus: http.StatusConflict, wantCode: errors.CodeAborted,
		},
		"record of an unknown session": {
			method: http.MethodGet, path: "/v1/sessions/0190f7a0-0000-7000-8000-000000000000/record", identity: "u1",
			wantStatus: http.StatusNotFound, wantCode: errors.CodeNotFound,
		},
		"unknown leaderboard": {
			method: http.MethodGet, path: "/v1/leaderboards/marathon",
			wantStatus: http.StatusBadRequest, wantCode: errors.CodeInvalidArgument,
		},
		"bad leaderboard limit": {
			method: http.MethodGet, path: "/v1/leaderboards/quick?limit=-1",
			wantStatus: http.StatusBadRequest, wantCode: errors.CodeInvalidArgument,
		},
		"history without identity": {
			method: http.MethodGet, path: "/v1/me/sessions",
			wantStatus: http.StatusUnauthorized, wantCode: errors.CodeUnauthenticated,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, tt.method, tt.path, tt.identity, tt.body)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())

			var body struct {
				Error errors.Error `json:"error"`
			}
			decode(t, resp, &body)
			require.Equal(t, tt.wantCode, body.Error.Code)
			require.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestAPI_AbandonSession(t *testing.T) {
	f := newFixture(t)

	var s api.Session
	decode(t, f.do(t, http.MethodPost, "/v1/sessions", "", api.StartSessionRequest{Mode: "quick", Rounds: 1}), &s)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/v1/sessions/"+s.SessionID, "", nil).Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sessions/"+s.SessionID, "", nil).Code)
}

type fixture struct {
	engine  *gin.Engine
	redis   redis.UniversalClient
	answers map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{rs.Addr()},
		Protocol: 2,
	})
	require.NoError(t, rc.Ping(context.Background()).Err(), "should be able to ping redis")

	items, answers := catalog()
	lg := ledger.NewMemory()
	eb := newBus(t)

	e := gin.New()
	api.New(api.Config{
		Router:   e,
		EventBus: eb,
		Game: game.NewService(game.Config{
			EventBus: eb,
			Source:   question.NewStatic(items),
		}),
		Record: record.NewService(record.Config{
			EventBus: eb,
			Store:    record.NewMemoryStore(),
			Ledger:   lg,
		}),
		Leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: eb,
			Redis:    rc,
			Prefix:   "test",
		}),
		Ledger:       lg,
		Redis:        rc,
		PubsubPrefix: "test",
	})

	return &fixture{engine: e, redis: rc, answers: answers}
}

// catalog returns easy bourbon trivia and medium scotch drams, keyed by prompt to
// their answers.
func catalog() ([]domain.Question, map[string]string) {
	var items []domain.Question
	answers := make(map[string]string)

	for i := range 12 {
		q := domain.Question{
			ID:           fmt.Sprintf("bourbon-%02d", i),
			Kind:         domain.KindTrivia,
			Category:     domain.CategoryBourbon,
			Difficulty:   domain.DifficultyEasy,
			Prompt:       fmt.Sprintf("Which distillery made bourbon %d?", i),
			Answer:       fmt.Sprintf("Distillery %d", i),
			WrongAnswers: []string{"Nobody", "Somebody", "Everybody"},
		}
		items = append(items, q)
		answers[q.Prompt] = q.Answer
	}

	for i := range 5 {
		q := domain.Question{
			ID:         fmt.Sprintf("dram-%02d", i),
			Kind:       domain.KindTasting,
			Category:   domain.CategoryScotch,
			Difficulty: domain.DifficultyMedium,
			Prompt:     fmt.Sprintf("Name dram %d.", i),
			Answer:     fmt.Sprintf("Islay %d", i),
			Hints: map[domain.HintTier]string{
				domain.HintColor:  "amber",
				domain.HintNose:   "peat",
				domain.HintPalate: "smoke",
				domain.HintFinish: "long",
			},
		}
		items = append(items, q)
		answers[q.Prompt] = q.Answer
	}

	return items, answers
}

func newBus(t *testing.T) *event.Bus {
	eb := event.NewBus()
	t.Cleanup(eb.Stop)
	return eb
}

func (f *fixture) do(t *testing.T, method, path, identity string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set(api.IdentityHeader, identity)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), resp.Body.String())
}
