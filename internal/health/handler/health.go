// Package handler reports readiness over the standard gRPC health API and GET /healthz.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"movie-auth/backend/internal/platform/httpjson"
)

// ServiceName is the service name accepted by Check besides the empty (whole server) name.
const ServiceName = "movieauth.v1.Auth"

const checkTimeout = 2 * time.Second

// Pinger is used for readiness (e.g. *sql.DB or the Redis store).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health and an HTTP readiness handler over the same checks.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger        Pinger
	policyChecker PolicyChecker
}

// NewServer returns a health server. pinger and policyChecker may be nil; nil checks are skipped.
func NewServer(pinger Pinger, policyChecker PolicyChecker) *Server {
	return &Server{pinger: pinger, policyChecker: policyChecker}
}

// Ready runs every configured check. A failing check never surfaces as a transport error.
func (s *Server) Ready(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			slog.WarnContext(ctx, "health: store ping failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if s.policyChecker != nil {
		if err := s.policyChecker.HealthCheck(ctx); err != nil {
			slog.WarnContext(ctx, "health: policy check failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Check answers for the whole server ("") and for ServiceName; other names are NotFound.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	return &healthpb.HealthCheckResponse{Status: s.Ready(ctx)}, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// ServeHTTP writes 200 {"status":"SERVING"} or 503 {"status":"NOT_SERVING"}.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := s.Ready(r.Context())
	code := http.StatusOK
	if st != healthpb.HealthCheckResponse_SERVING {
		code = http.StatusServiceUnavailable
	}
	httpjson.WriteJSON(w, code, healthResponse{Status: st.String()})
}
