package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/services/health"
	"code-analysis-api/internal/shared/config"
	"code-analysis-api/internal/shared/metrics"
	"code-analysis-api/internal/shared/server/middleware"
	"code-analysis-api/internal/shared/server/respond"
)

const (
	analysesPath     = "/api/v1/code-analysis"
	defaultRateGroup = "DEFAULT"
	unlimitedGroup   = "UNLIMITED"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *codeanalysis.Handler
	Health          *health.Service
	// RateLimiter is shared across requests; nil builds a fresh one.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		otelgin.Middleware(serviceName(cfg)),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig(cfg, deps.RateLimiter)),
	)

	r.GET("/", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status(c.Request.Context()))
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitConfig(cfg config.Config, limiter *middleware.RateLimiter) middleware.RateLimitConfig {
	rules := map[string]middleware.RateLimitRule{
		middleware.PollingRateLimitGroup: {Rate: cfg.PollRateLimitRPS, Burst: cfg.PollRateLimitBurst},
	}
	if cfg.RateLimitRPS > 0 {
		rules[defaultRateGroup] = middleware.RateLimitRule{Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}
	}
	return middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: defaultRateGroup,
		GroupFor:     groupFor,
		Limiter:      limiter,
	}
}

// groupFor puts status polling in its own bucket; /, /metrics and anything
// outside the analyses API are not limited.
func groupFor(c *gin.Context) string {
	path := c.Request.URL.Path
	if !strings.HasPrefix(path, analysesPath) {
		return unlimitedGroup
	}
	if c.Request.Method == http.MethodGet {
		return middleware.PollingRateLimitGroup
	}
	return ""
}

func serviceName(cfg config.Config) string {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		return "code-analysis-api"
	}
	return cfg.ServiceName
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
