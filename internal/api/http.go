package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/errors"
	"github.com/victornm/dramquiz/internal/game"
	"github.com/victornm/dramquiz/internal/leaderboard"
)

const defaultHistoryLimit = 20

func (a *API) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidArgument("invalid request body: %v", err))
		return
	}

	gr := game.StartSessionRequest{
		Identity:  identity(c),
		Mode:      domain.Mode(req.Mode),
		Rounds:    req.Rounds,
		TimeLimit: time.Duration(req.TimeLimitMS) * time.Millisecond,
	}
	if req.Category != "" {
		cat := domain.Category(req.Category)
		gr.Category = &cat
	}
	if req.Difficulty != "" {
		d := domain.Difficulty(req.Difficulty)
		gr.Difficulty = &d
	}

	v, err := a.gs.StartSession(c.Request.Context(), gr)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSession(v))
}

func (a *API) GetSession(c *gin.Context) {
	v, err := a.gs.GetSession(c.Request.Context(), sessionRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSession(v))
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidArgument("invalid request body: %v", err))
		return
	}

	o, err := a.gs.SubmitAnswer(c.Request.Context(), game.SubmitAnswerRequest{
		SessionID: c.Param("id"),
		Identity:  identity(c),
		Round:     *req.Round,
		Answer:    req.Answer,
	})
	if err != nil {
		if e := errors.Convert(err); e.Code == errors.CodeAlreadyExists {
			err = errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("round %d is already resolved: session=%s", *req.Round, c.Param("id")),
				errors.WithCause(e.Unwrap()),
			)
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOutcome(*o))
}

func (a *API) RevealHint(c *gin.Context) {
	resp, err := a.gs.RevealHint(c.Request.Context(), sessionRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := HintResponse{
		Revealed: resp.Revealed,
		Count:    resp.Count,
		Total:    resp.Total,
	}
	if resp.Revealed {
		h := resp.Hint
		out.Hint = &h
	}

	c.JSON(http.StatusOK, out)
}

func (a *API) Advance(c *gin.Context) {
	v, err := a.gs.Advance(c.Request.Context(), sessionRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSession(v))
}

func (a *API) AbandonSession(c *gin.Context) {
	if err := a.gs.Abandon(c.Request.Context(), sessionRequest(c)); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) GetRecordStatus(c *gin.Context) {
	id := c.Param("id")
	if err := a.rs.Authorize(c.Request.Context(), id, identity(c)); err != nil {
		writeError(c, err)
		return
	}

	st, err := a.rs.Status(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RecordStatus{SessionID: id, Status: string(st)})
}

// RetryRecord resubmits a session whose persistence was deferred.
func (a *API) RetryRecord(c *gin.Context) {
	id := c.Param("id")
	if err := a.rs.Authorize(c.Request.Context(), id, identity(c)); err != nil {
		writeError(c, err)
		return
	}

	if err := a.rs.Retry(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	st, err := a.rs.Status(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RecordStatus{SessionID: id, Status: string(st)})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		writeError(c, err)
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		Mode:  domain.Mode(c.Param("mode")),
		Limit: limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

// History lists the recorded sessions of the calling player, newest first.
func (a *API) History(c *gin.Context) {
	id := identity(c)
	if id == "" {
		writeError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing %s header", IdentityHeader)))
		return
	}
	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(c, err)
		return
	}

	sums, err := a.rs.History(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]Summary, 0, len(sums))
	for _, s := range sums {
		resp = append(resp, toSummary(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (a *API) Balance(c *gin.Context) {
	id := identity(c)
	if id == "" {
		writeError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing %s header", IdentityHeader)))
		return
	}
	if a.lg == nil {
		writeError(c, errors.New(errors.CodeNotFound, errors.WithMessagef("rewards are not credited on this server")))
		return
	}

	b, err := a.lg.Balance(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"identity": id, "balance": b})
}

func identity(c *gin.Context) string {
	return c.GetHeader(IdentityHeader)
}

func sessionRequest(c *gin.Context) game.SessionRequest {
	return game.SessionRequest{SessionID: c.Param("id"), Identity: identity(c)}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, invalidArgument("%s must be a non-negative integer, got %q", key, s)
	}
	return n, nil
}

func invalidArgument(format string, args ...any) *errors.Error {
	return errors.New(errors.CodeInvalidArgument, errors.WithMessagef(format, args...))
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}
