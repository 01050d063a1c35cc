// Package http exposes the report API, health probes, metrics and the stats
// stream over a gin router.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
	"github.com/0xbhavyaalag/EcoSphere/internal/geo"
	"github.com/0xbhavyaalag/EcoSphere/internal/locator"
)

// Reports is the report workflow served under /api/reports.
type Reports interface {
	Submit(ctx context.Context, draft domain.Draft) (domain.Report, domain.Stats, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Report, error)
	Delete(ctx context.Context, id string) error
	Get(id string) (domain.Report, error)
	Filter(status string) ([]domain.Report, error)
	Stats() domain.Stats
	Route(dest domain.Coordinate, user *domain.Coordinate) (string, error)
	RouteToNearestOffice(ctx context.Context, from domain.Coordinate, user *domain.Coordinate) (string, *domain.MunicipalOffice, error)
}

// OfficeLocator finds the nearest municipal office.
type OfficeLocator interface {
	LocateNearestOffice(ctx context.Context, point domain.Coordinate) (locator.Result, error)
}

// LocationResolver resolves the caller position.
type LocationResolver interface {
	Resolve(ctx context.Context, req geo.Request) (domain.Coordinate, error)
}

// Deps are the services behind the API. Nil Locator, Resolver or Stats
// disables the matching routes.
type Deps struct {
	Reports  Reports
	Locator  OfficeLocator
	Resolver LocationResolver
	Stats    http.Handler
}

// Server is the HTTP front of the service.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API routes plus /healthz, /readyz and /metrics.
func NewServer(addr string, deps Deps, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // office lookups pace their geocoder calls
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	r.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	r.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/reports", s.listReports)
	api.POST("/reports", s.submitReport)
	api.GET("/reports/:id", s.getReport)
	api.PATCH("/reports/:id/status", s.updateStatus)
	api.DELETE("/reports/:id", s.deleteReport)
	api.GET("/reports/:id/route-to-office", s.routeToOffice)
	api.GET("/stats", s.stats)
	api.GET("/hotspots", s.hotspots)
	api.GET("/route", s.route)
	if deps.Locator != nil {
		api.GET("/offices/nearest", s.nearestOffice)
	}
	if deps.Resolver != nil {
		api.POST("/location", s.resolveLocation)
	}
	if deps.Stats != nil {
		r.GET("/ws/stats", gin.WrapH(deps.Stats))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
