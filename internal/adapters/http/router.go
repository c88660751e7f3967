// Package http wires the process's HTTP surface: the websocket signaling
// endpoint, the teacher-only admin API, health and metrics.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/kaizenverse/liveclass/internal/adapters/signal"
	"github.com/kaizenverse/liveclass/internal/app"
	"github.com/kaizenverse/liveclass/internal/config"
	"github.com/kaizenverse/liveclass/internal/core"
	"github.com/kaizenverse/liveclass/internal/domain"
	"github.com/kaizenverse/liveclass/internal/metrics"
	"github.com/kaizenverse/liveclass/internal/store"
)

func SetupRouter(ctx context.Context, cfg *config.Config, co *app.Coordinator, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	started := time.Now()
	r.GET("/healthz", func(c *gin.Context) {
		sessions, participants := co.Reg.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"uptime":       time.Since(started).String(),
			"sessions":     sessions,
			"participants": participants,
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/ws/signal", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	api := r.Group("/api", AuthRequired([]byte(cfg.Secret)))

	// Client-side peer connection bootstrap; STUN servers only, no
	// credentials to expose.
	api.GET("/rtc/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"iceServers": lo.Map(cfg.StunServers, func(url string, _ int) gin.H {
				return gin.H{"urls": url}
			}),
			"iceCandidatePoolSize": 10,
			"sdpSemantics":         "unified-plan",
		})
	})

	api.GET("/sessions/:id/stats", func(c *gin.Context) {
		sid := domain.SessionID(c.Param("id"))
		stats, err := co.Stats(c.Request.Context(), sid, domain.UserID(CallerID(c)))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	api.POST("/sessions/:id/kick/:userId", func(c *gin.Context) {
		sid := domain.SessionID(c.Param("id"))
		target := domain.UserID(c.Param("userId"))
		if err := co.Kick(c.Request.Context(), sid, domain.UserID(CallerID(c)), target); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "participant kicked"})
	})

	return r
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, core.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "teacher only"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
