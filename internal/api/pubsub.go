package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/dramquiz/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	RecordNotification struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		Attempts  int    `json:"attempts,omitempty"`
		Reason    string `json:"reason,omitempty"`
	}
)

func (a *API) PublishRoundResolved(ctx context.Context, e domain.EventRoundResolved) error {
	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), toOutcome(e.Outcome))
}

func (a *API) PublishSessionCompleted(ctx context.Context, e domain.EventSessionCompleted) error {
	return a.publishNotification(ctx, a.sessionChannel(e.Summary.SessionID), e.Name(), toSummary(e.Summary))
}

func (a *API) PublishSessionRecorded(ctx context.Context, e domain.EventSessionRecorded) error {
	return a.publishNotification(ctx, a.sessionChannel(e.Summary.SessionID), e.Name(), RecordNotification{
		SessionID: e.Summary.SessionID,
		Status:    "saved",
	})
}

func (a *API) PublishPersistenceDeferred(ctx context.Context, e domain.EventPersistenceDeferred) error {
	return a.publishNotification(ctx, a.sessionChannel(e.SessionID), e.Name(), RecordNotification{
		SessionID: e.SessionID,
		Status:    "deferred",
		Attempts:  e.Attempts,
		Reason:    e.Reason,
	})
}

// PublishLeaderboardUpdated notifies every player on the board.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range l.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.Identity), e.Name(), l)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) sessionChannel(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", a.prefix, sessionID)
}

func (a *API) userChannel(identity string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, identity)
}
