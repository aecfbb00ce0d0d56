package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parley-server/internal/application/audit"
	"parley-server/internal/config"
	"parley-server/internal/guard/dedup"
	"parley-server/internal/guard/ratelimit"
	"parley-server/internal/guard/session"
	middleware "parley-server/internal/interfaces/httpserver/middlewares"
	v1 "parley-server/internal/interfaces/httpserver/routes/v1"
)

type HTTPServer struct {
	engine        *gin.Engine
	v1Route       *v1.V1Route
	config        *config.Config
	sessionGuard  *session.Guard
	globalLimiter *ratelimit.Limiter
	dedupDetector *dedup.Detector
	auditLogger   *audit.Logger
}

func NewHttpServer(
	v1Route *v1.V1Route,
	cfg *config.Config,
	logger zerolog.Logger,
	sessionGuard *session.Guard,
	globalLimiter *ratelimit.Limiter,
	dedupDetector *dedup.Detector,
	auditLogger *audit.Logger,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HTTPServer{
		engine:        gin.New(),
		v1Route:       v1Route,
		config:        cfg,
		sessionGuard:  sessionGuard,
		globalLimiter: globalLimiter,
		dedupDetector: dedupDetector,
		auditLogger:   auditLogger,
	}
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.LoggingMiddleware(logger))
	server.engine.Use(middleware.CORSMiddleware())
	server.engine.Use(middleware.MetricsMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server.engine.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	return server
}

// Handler wires the middleware chain and returns the root handler. Everything
// under /v1 requires a valid token, then passes the session guard, the global
// rate limiter and the duplicate detector, in that order. The audit recorder
// sits directly after auth so rejected requests are recorded too.
func (s *HTTPServer) Handler() http.Handler {
	excluded := make(map[string]struct{}, len(s.config.AuditExcludePaths))
	for _, path := range s.config.AuditExcludePaths {
		excluded[path] = struct{}{}
	}

	protected := s.engine.Group("/")
	protected.Use(
		middleware.AuthMiddleware([]byte(s.config.JWTSecret), s.config.Issuer),
		middleware.AuditMiddleware(s.auditLogger, excluded),
		middleware.SessionGuardMiddleware(s.sessionGuard),
		middleware.RateLimitMiddleware(s.globalLimiter),
		middleware.DedupMiddleware(s.dedupDetector),
	)

	s.v1Route.RegisterRouter(protected)
	return s.engine
}

// Addr returns the listen address for the API server.
func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.config.HTTPPort)
}
