package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "movie-auth/backend/internal/health/handler"
)

// NewGRPCServer returns a gRPC server exposing grpc.health.v1.Health backed by health,
// traced with otelgrpc and discoverable through server reflection.
func NewGRPCServer(health *healthhandler.Server) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterServices(s, health)
	reflection.Register(s)
	return s
}

// RegisterServices registers every gRPC service with s.
func RegisterServices(s grpc.ServiceRegistrar, health *healthhandler.Server) {
	healthpb.RegisterHealthServer(s, health)
}
