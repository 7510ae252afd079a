package api

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// EventSnapshot is the first message of every watch stream.
const EventSnapshot = "session.snapshot"

// Watch streams the notifications of a session and its player over a websocket.
// Browsers cannot set headers on the handshake, so the identity may also come
// from the query.
func (a *API) Watch(c *gin.Context) {
	ctx := c.Request.Context()

	req := sessionRequest(c)
	if req.Identity == "" {
		req.Identity = c.Query("identity")
	}

	if _, err := a.gs.Session(req.SessionID, req.Identity); err != nil {
		writeError(c, err)
		return
	}

	channels := []string{a.sessionChannel(req.SessionID)}
	if req.Identity != "" {
		channels = append(channels, a.userChannel(req.Identity))
	}
	sub := a.redis.Subscribe(ctx, channels...)
	defer sub.Close()

	// The snapshot is taken after the subscription is confirmed, so nothing
	// published in between is lost.
	if _, err := sub.Receive(ctx); err != nil {
		writeError(c, fmt.Errorf("pubsub: subscribe: %w", err))
		return
	}
	v, err := a.gs.GetSession(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "api: websocket upgrade failed", "session", req.SessionID, "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(Notification{Event: EventSnapshot, Data: toSession(v)}); err != nil {
		return
	}

	msgs := sub.Channel()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m.Payload)); err != nil {
				slog.DebugContext(ctx, "api: websocket write failed", "session", req.SessionID, "error", err)
				return
			}
		}
	}
}
