// Package grpc runs the gRPC side port used by orchestrators for health
// probes. It carries no business RPCs.
package grpc

import (
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name health checks may ask for besides the empty
// overall name.
const ServiceName = "orderbuddy.API"

type HealthServer struct {
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewHealthServer starts in NOT_SERVING; call SetServing(true) once the store
// is migrated.
func NewHealthServer(log *slog.Logger) *HealthServer {
	server := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(server)

	s := &HealthServer{server: server, health: hs, log: log.With("component", "grpc_health")}
	s.SetServing(false)
	return s
}

func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.log.Info("health status changed", "status", status.String())
}

func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// GracefulStop flips every service to NOT_SERVING before draining.
func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
