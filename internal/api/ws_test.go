package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/victornm/dramquiz/internal/api"
	"github.com/victornm/dramquiz/internal/domain"
)

type notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func TestAPI_Watch(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(f.engine)
	defer server.Close()

	var s api.Session
	decode(t, f.do(t, http.MethodPost, "/v1/sessions", "u1", api.StartSessionRequest{Mode: "quick", Rounds: 1}), &s)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/sessions/" + s.SessionID + "/ws?identity=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	n := readNext(t, conn)
	require.Equal(t, api.EventSnapshot, n.Event)
	var snapshot api.Session
	require.NoError(t, json.Unmarshal(n.Data, &snapshot))
	require.Equal(t, s.SessionID, snapshot.SessionID)

	round := 0
	resp := f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/answers", "u1", api.SubmitAnswerRequest{
		Round:  &round,
		Answer: f.answers[s.Round.Prompt],
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	n = readNext(t, conn)
	require.Equal(t, domain.EventNameRoundResolved, n.Event)
	var o api.Outcome
	require.NoError(t, json.Unmarshal(n.Data, &o))
	require.True(t, o.Correct)
	require.Equal(t, 100, o.Reward)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/sessions/"+s.SessionID+"/advance", "u1", nil).Code)

	// Completion, recording and the leaderboard arrive from different subscribers.
	seen := make(map[string]bool)
	for range 3 {
		seen[readNext(t, conn).Event] = true
	}
	require.Equal(t, map[string]bool{
		domain.EventNameSessionCompleted:   true,
		domain.EventNameSessionRecorded:    true,
		domain.EventNameLeaderboardUpdated: true,
	}, seen)
}

func TestAPI_WatchRejectsOtherPlayers(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(f.engine)
	defer server.Close()

	var s api.Session
	decode(t, f.do(t, http.MethodPost, "/v1/sessions", "u1", api.StartSessionRequest{Mode: "quick", Rounds: 1}), &s)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/sessions/" + s.SessionID + "/ws?identity=u2"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_PublishLeaderboardUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := api.New(api.Config{
		Router:       f.engine.Group("/other"),
		EventBus:     newBus(t),
		Redis:        f.redis,
		PubsubPrefix: "test",
	})

	sub := f.redis.Subscribe(ctx, "test:user:u1", "test:user:u2")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, a.PublishLeaderboardUpdated(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{
			Mode: domain.ModeQuick,
			Entries: []domain.LeaderboardEntry{
				{Identity: "u1", Reward: 300},
				{Identity: "u2", Reward: 100},
			},
		},
	}))

	got := make(map[string]domain.Leaderboard)
	for range 2 {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		m, err := sub.ReceiveMessage(ctx)
		cancel()
		require.NoError(t, err)

		var n notification
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &n))
		require.Equal(t, domain.EventNameLeaderboardUpdated, n.Event)

		var l domain.Leaderboard
		require.NoError(t, json.Unmarshal(n.Data, &l))
		got[m.Channel] = l
	}

	require.Len(t, got, 2, "every player on the board is notified")
	require.Equal(t, got["test:user:u1"], got["test:user:u2"])
	require.Equal(t, int64(300), got["test:user:u1"].Entries[0].Reward)
}

func readNext(t *testing.T, conn *websocket.Conn) notification {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var n notification
	require.NoError(t, conn.ReadJSON(&n))
	return n
}
