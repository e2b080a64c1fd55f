// Package server assembles the HTTP API router and the gRPC health server.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"movie-auth/backend/internal/audit"
	healthhandler "movie-auth/backend/internal/health/handler"
	identityhandler "movie-auth/backend/internal/identity/handler"
	"movie-auth/backend/internal/server/middleware"
	"movie-auth/backend/internal/telemetry"
	userhandler "movie-auth/backend/internal/user/handler"
)

// Deps holds the collaborators of the HTTP API. Auth, Profiles, Authenticator and Health are required.
type Deps struct {
	Auth          identityhandler.AuthService
	Profiles      userhandler.ProfileService
	Authenticator *middleware.Authenticator
	Health        *healthhandler.Server
	// Gatherer backs GET /metrics. If nil, the default Prometheus registry is used.
	Gatherer prometheus.Gatherer
	// Telemetry receives one event per request. If nil, no events are emitted.
	Telemetry telemetry.EventEmitter
	// Audit records authenticated requests. If nil, requests are not audited.
	Audit audit.AuditLogger
	// Logger is the request logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewRouter returns the API routes with their middleware stack, without tracing.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.Telemetry(deps.Telemetry, "/healthz", "/metrics"))
	r.Use(middleware.Audit(deps.Audit))

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/healthz", deps.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	auth := identityhandler.NewAuthHandler(deps.Auth)
	profiles := userhandler.NewProfileHandler(deps.Profiles)
	r.Route("/user", func(r chi.Router) {
		auth.Routes(r)
		r.With(deps.Authenticator.OptionalBearer).Get("/{email}/profile", profiles.Get)
		r.With(deps.Authenticator.RequireBearer).Put("/{email}/profile", profiles.Put)
	})
	return r
}

// NewHTTPHandler wraps NewRouter with OpenTelemetry server spans.
func NewHTTPHandler(deps Deps) http.Handler {
	return otelhttp.NewHandler(NewRouter(deps), "movie-auth.http")
}
