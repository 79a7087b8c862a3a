package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gamer08YT/ByteWaterlevel/internal/control"
	"github.com/Gamer08YT/ByteWaterlevel/internal/journal"
	"github.com/Gamer08YT/ByteWaterlevel/internal/relay"
	"github.com/Gamer08YT/ByteWaterlevel/internal/status"
)

const commandTimeout = 5 * time.Second

// relayRequest is the body of POST /api/relay/:id.
type relayRequest struct {
	State      *bool `json:"state" binding:"required"`
	DurationMs int64 `json:"duration_ms"`
}

// relayResponse describes one channel.
type relayResponse struct {
	Channel     int   `json:"channel"`
	State       bool  `json:"state"`
	RemainingMs int64 `json:"remaining_ms"`
}

func (s *Server) jsonError(c *gin.Context, code int, msg string, err error) {
	if err != nil && code >= http.StatusInternalServerError {
		s.log.Errorw("http_error", "path", c.FullPath(), "status", code, "err", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.deps.Tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := renderHTML(c.Writer, snap); err != nil {
		s.log.Errorw("render_index_failed", "err", err)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.deps.Tracker.Snapshot()
	c.Data(http.StatusOK, "application/json", status.FormatJSON(snap))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseChannel(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < relay.ChannelFill || id > relay.ChannelPump {
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetRelay(c *gin.Context) {
	id, ok := parseChannel(c)
	if !ok {
		s.jsonError(c, http.StatusBadRequest, "invalid channel", nil)
		return
	}
	r := s.deps.Tracker.Snapshot().Relays[id-1]
	c.JSON(http.StatusOK, relayResponse{Channel: id, State: r.On, RemainingMs: r.Remaining.Milliseconds()})
}

func (s *Server) handleSetRelay(c *gin.Context) {
	id, ok := parseChannel(c)
	if !ok {
		s.jsonError(c, http.StatusBadRequest, "invalid channel", nil)
		return
	}
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.jsonError(c, http.StatusBadRequest, "invalid body", err)
		return
	}
	if req.DurationMs < 0 {
		s.jsonError(c, http.StatusBadRequest, "duration_ms must not be negative", nil)
		return
	}
	d := time.Duration(req.DurationMs) * time.Millisecond
	if !*req.State {
		d = 0
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()
	err := s.deps.Relays.SetRelay(ctx, id, *req.State, d)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrInvalidChannel):
		s.jsonError(c, http.StatusBadRequest, "invalid channel", err)
		return
	case errors.Is(err, control.ErrStopped):
		s.jsonError(c, http.StatusServiceUnavailable, "controller stopped", err)
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.jsonError(c, http.StatusGatewayTimeout, "controller busy", err)
		return
	default:
		s.jsonError(c, http.StatusInternalServerError, "relay command failed", err)
		return
	}

	c.JSON(http.StatusOK, relayResponse{Channel: id, State: *req.State, RemainingMs: d.Milliseconds()})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.deps.Events == nil {
		s.jsonError(c, http.StatusNotFound, "journal disabled", nil)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := s.deps.Events.List(c.Request.Context(), journal.Filter{Type: c.Query("type"), Limit: limit})
	if err != nil {
		s.jsonError(c, http.StatusInternalServerError, "failed to read journal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

func (s *Server) handleUpdate(c *gin.Context) {
	if s.deps.Updates == nil {
		s.jsonError(c, http.StatusNotFound, "update check disabled", nil)
		return
	}
	c.JSON(http.StatusOK, s.deps.Updates.Last())
}
