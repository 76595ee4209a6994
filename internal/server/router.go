// Package server assembles the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aiostreams/internal/apierror"
	"aiostreams/internal/engine"
	"aiostreams/internal/manifest"
	"aiostreams/internal/metrics"
	"aiostreams/internal/ratelimit"
	"aiostreams/internal/users"
	"aiostreams/pkg/database"
	"aiostreams/pkg/utils"
)

type Deps struct {
	Settings *utils.Settings
	Store    *database.Handle
	Tokens   users.TokenService
	Engine   engine.Engine
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Logger), apierror.Middleware(d.Logger))
	_ = router.SetTrustedProxies(nil)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.Store.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "db": "ok"})
	})

	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	repo := users.NewRepo(d.Store)

	svc := manifest.NewService(d.Settings, d.Engine)
	manifestHandler := manifest.NewHandler(svc, d.Logger.Named("manifest"), d.Metrics)
	manifestHandler.RegisterRoutes(router.Group("/stremio"), repo, d.Limiter.Middleware())

	users.NewHandler(repo, d.Tokens).RegisterRoutes(router.Group("/api/v1"))

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// paths can carry inline configs and passwords
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
