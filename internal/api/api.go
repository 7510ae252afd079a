package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/event"
	"github.com/victornm/dramquiz/internal/game"
	"github.com/victornm/dramquiz/internal/leaderboard"
	"github.com/victornm/dramquiz/internal/ledger"
	"github.com/victornm/dramquiz/internal/record"
)

// IdentityHeader carries the player identity. Requests without it play anonymously.
const IdentityHeader = "X-User-ID"

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Game        *game.Service
	Record      *record.Service
	Leaderboard *leaderboard.Service
	// Ledger is optional. The balance endpoint answers 404 without it.
	Ledger       ledger.Ledger
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type API struct {
	gs *game.Service
	rs *record.Service
	ls *leaderboard.Service
	lg ledger.Ledger

	redis    Redis
	prefix   string
	upgrader websocket.Upgrader
}

func New(c Config) *API {
	a := &API{
		gs:     c.Game,
		rs:     c.Record,
		ls:     c.Leaderboard,
		lg:     c.Ledger,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	// HTTP APIs
	v1 := c.Router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		sessions.POST("", a.StartSession)
		sessions.GET("/:id", a.GetSession)
		sessions.DELETE("/:id", a.AbandonSession)
		sessions.POST("/:id/answers", a.SubmitAnswer)
		sessions.POST("/:id/hints", a.RevealHint)
		sessions.POST("/:id/advance", a.Advance)
		sessions.GET("/:id/record", a.GetRecordStatus)
		sessions.POST("/:id/record", a.RetryRecord)
		sessions.GET("/:id/ws", a.Watch)

		v1.GET("/leaderboards/:mode", a.GetLeaderboard)
		v1.GET("/me/sessions", a.History)
		v1.GET("/me/balance", a.Balance)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameRoundResolved, "pubsub", func(ctx context.Context, e event.Event) error {
		return a.PublishRoundResolved(ctx, e.(domain.EventRoundResolved))
	})
	c.EventBus.Subscribe(domain.EventNameSessionCompleted, "pubsub", func(ctx context.Context, e event.Event) error {
		return a.PublishSessionCompleted(ctx, e.(domain.EventSessionCompleted))
	})
	c.EventBus.Subscribe(domain.EventNameSessionRecorded, "pubsub", func(ctx context.Context, e event.Event) error {
		return a.PublishSessionRecorded(ctx, e.(domain.EventSessionRecorded))
	})
	c.EventBus.Subscribe(domain.EventNamePersistenceDeferred, "pubsub", func(ctx context.Context, e event.Event) error {
		return a.PublishPersistenceDeferred(ctx, e.(domain.EventPersistenceDeferred))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, "pubsub", func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}
