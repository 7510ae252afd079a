//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/dramquiz/internal/api"
	"github.com/victornm/dramquiz/internal/domain"
)

const (
	addr   = "http://localhost:8080"
	prefix = "dramquiz"
)

// TestQuickSessions plays a quick session per user against a running server and
// logs the leaderboards pushed to u1.
func TestQuickSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		wg    = new(sync.WaitGroup)
		users = []string{"u1", "u2", "u3"}
	)

	// Prepare Redis subscriber
	subscribeAsUser(ctx, t, makeRedis(t), wg, "u1")

	var eg errgroup.Group
	for _, u := range users {
		eg.Go(func() error {
			sum, err := play(ctx, u, 3)
			if err != nil {
				return fmt.Errorf("user %q: %w", u, err)
			}

			t.Logf("User %q finished: correct=%d/%d, reward=%d", u, sum.CorrectRounds, sum.TotalRounds, sum.TotalReward)
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	time.Sleep(2 * time.Second)
	cancel()
	wg.Wait()
}

// play always picks the first choice, so rewards vary between users.
func play(ctx context.Context, user string, rounds int) (*api.Session, error) {
	var s api.Session
	if err := call(ctx, http.MethodPost, "/v1/sessions", user, api.StartSessionRequest{Mode: "quick", Rounds: rounds}, &s); err != nil {
		return nil, err
	}

	for s.Status != "complete" {
		i := s.RoundIndex
		var o api.Outcome
		if err := call(ctx, http.MethodPost, "/v1/sessions/"+s.SessionID+"/answers", user, api.SubmitAnswerRequest{
			Round:  &i,
			Answer: s.Round.Choices[0],
		}, &o); err != nil {
			return nil, err
		}

		if err := call(ctx, http.MethodPost, "/v1/sessions/"+s.SessionID+"/advance", user, nil, &s); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

func call(ctx context.Context, method, path, user string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, addr+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.IdentityHeader, user)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error json.RawMessage `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func subscribeAsUser(ctx context.Context, t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, u string) {
	wg.Add(1)
	sub := subscribeRedis(ctx, t, rc, fmt.Sprintf("%s:user:%s", prefix, u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n api.Notification
			var data json.RawMessage
			n.Data = &data
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameLeaderboardUpdated:
				var l domain.Leaderboard
				if err := json.Unmarshal(data, &l); err != nil {
					t.Logf("unmarshal leaderboard: %v", err)
					continue
				}

				t.Logf("%s leaderboard:\n%s", u, formatLeaderboard(l))
			}
		}
	}()
}

func subscribeRedis(ctx context.Context, t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatLeaderboard(l domain.Leaderboard) string {
	var s string
	for _, e := range l.Entries {
		s += fmt.Sprintf("%s: %d\n", e.Identity, e.Reward)
	}
	return s
}
