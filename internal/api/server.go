package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cupgame/telemetry/internal/metrics"
	"github.com/cupgame/telemetry/internal/model"
	"github.com/cupgame/telemetry/internal/service"
)

const apiKeyHeader = "X-API-KEY"

// Server owns the HTTP surface: the two write endpoints the gateway admits
// events through and the read endpoints over the projections.
type Server struct {
	ingest   *service.IngestService
	query    *service.QueryService
	counters *metrics.Counters
	engine   *gin.Engine
}

func NewServer(ingest *service.IngestService, query *service.QueryService, counters *metrics.Counters) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ingest:   ingest,
		query:    query,
		counters: counters,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())

	events := s.engine.Group("/api/events")
	events.POST("/heartbeat", s.handleEvent(model.ActionHeartbeat))
	events.POST("/drink", s.handleEvent(model.ActionDrink))

	s.engine.GET("/api/leaderboard", s.handleLeaderboard)
	s.engine.GET("/api/presence/onlineCount", s.handleOnlineCount)
	s.engine.GET("/api/uniques", s.handleUniques)
	s.engine.GET("/api/health", s.handleHealth)
	s.engine.GET("/metrics", s.handleMetrics)

	return s
}

// handleEvent admits one telemetry event. Failure modes get distinct status
// families: 400 malformed body, 401 bad credential, 429 rate limited. Success
// is 202 with no payload beyond the status — the response does not wait for
// the log append to be acknowledged.
func (s *Server) handleEvent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event model.GameAction
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "malformed event body"})
			return
		}

		err := s.ingest.Admit(c.GetHeader(apiKeyHeader), kind, &event)
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid API key"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, model.ErrorResponse{Error: "Rate limit exceeded"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "admission failed"})
		default:
			c.JSON(http.StatusAccepted, model.AcceptedResponse{Status: "accepted"})
		}
	}
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	matchID := c.Query("matchId")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "limit must be an integer"})
			return
		}
		limit = parsed
	}

	resp, err := s.query.GetTopPlayers(matchID, limit)
	if err != nil {
		zap.L().Error("Leaderboard query failed", zap.String("match_id", matchID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "leaderboard unavailable"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOnlineCount(c *gin.Context) {
	resp, err := s.query.GetOnlineCount()
	if err != nil {
		zap.L().Error("Online count query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "online count unavailable"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUniques(c *gin.Context) {
	resp, err := s.query.GetUniqueCount(c.Query("minute"))
	if err != nil {
		zap.L().Error("Uniques query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "uniques unavailable"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "UP",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.counters.Snapshot())
}

// Handler exposes the router, used by the tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server on the given port, blocking until it exits.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	zap.L().Info("HTTP server listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}
