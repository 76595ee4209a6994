package manifest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aiostreams/internal/apierror"
	"aiostreams/internal/engine"
	"aiostreams/internal/metrics"
	"aiostreams/internal/userconfig"
	"aiostreams/pkg/models"
	"aiostreams/pkg/utils"
)

// Service runs the engine when needed and synthesizes the result.
type Service struct {
	Settings *utils.Settings
	Engine   engine.Engine
}

func NewService(settings *utils.Settings, eng engine.Engine) *Service {
	return &Service{Settings: settings, Engine: eng}
}

// Build returns the manifest for cfg, or an error if the engine failed.
// There is no partial manifest.
func (s *Service) Build(ctx context.Context, cfg userconfig.Config) (models.Manifest, error) {
	var snap *engine.Snapshot
	if c, ok := cfg.(userconfig.Configured); ok {
		var err error
		snap, err = s.Engine.Build(ctx, c.Data)
		if err != nil {
			return models.Manifest{}, fmt.Errorf("build manifest: %w", err)
		}
	}
	return Synthesize(s.Settings, cfg, snap), nil
}

type Handler struct {
	Service *Service
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func NewHandler(svc *Service, logger *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{Service: svc, Logger: logger, Metrics: m}
}

// RegisterRoutes mounts the manifest on rg. mw runs before configuration
// is resolved, so rate limiting belongs there.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, store userconfig.Authenticator, mw ...gin.HandlerFunc) {
	chain := append(append([]gin.HandlerFunc{}, mw...), userconfig.Resolve(store), h.get)

	rg.GET("/manifest.json", chain...)
	rg.GET("/:"+userconfig.ParamID+"/manifest.json", chain...)
	rg.GET("/:"+userconfig.ParamID+"/:"+userconfig.ParamPassword+"/manifest.json", chain...)
}

func (h *Handler) get(c *gin.Context) {
	cfg := userconfig.FromContext(c)
	h.Logger.Debug("manifest request received", zap.String("config", fmt.Sprintf("%T", cfg)))

	m, err := h.Service.Build(c.Request.Context(), cfg)
	if err != nil {
		h.Logger.Error("failed to generate manifest", zap.Error(err))
		h.Metrics.ManifestRequests.WithLabelValues("error").Inc()
		apierror.Abort(c, apierror.Internal(err))
		return
	}

	outcome := "anonymous"
	if _, ok := cfg.(userconfig.Configured); ok {
		outcome = "configured"
	}
	h.Metrics.ManifestRequests.WithLabelValues(outcome).Inc()

	c.JSON(http.StatusOK, m)
}
