package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/admin"
	"chartlens-backend/internal/analyses"
	googleauth "chartlens-backend/internal/auth"
	"chartlens-backend/internal/history"
	"chartlens-backend/internal/payments"
	"chartlens-backend/internal/services/health"
	"chartlens-backend/internal/shared/config"
	"chartlens-backend/internal/shared/metrics"
	"chartlens-backend/internal/shared/server/middleware"
	"chartlens-backend/internal/shared/server/respond"
	"chartlens-backend/internal/usage"
	"chartlens-backend/internal/waitlist"
)

// Deps carries the wired handlers the router mounts.
type Deps struct {
	Cfg      config.Config
	Limiter  *middleware.WindowLimiter
	Health   *health.Service
	Analyses *analyses.Handler
	Usage    *usage.Handler
	History  *history.Handler
	Payments *payments.Handler
	Waitlist *waitlist.Handler
	Admin    *admin.Handler
	Google   *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Cfg.CORSAllowOrigin),
		middleware.RateLimit(deps.Limiter),
		middleware.Auth(deps.Cfg.Env),
	)

	healthHandler := func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	}
	r.GET("/health", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)
	deps.Google.RegisterRoutes(api)
	deps.Analyses.RegisterRoutes(api)
	deps.Usage.RegisterRoutes(api)
	deps.History.RegisterRoutes(api)
	deps.Payments.RegisterRoutes(api)
	deps.Waitlist.RegisterRoutes(api)
	deps.Admin.RegisterRoutes(api)

	return r
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
