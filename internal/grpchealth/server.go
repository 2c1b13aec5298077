// Package grpchealth serves the standard gRPC health checking protocol
// next to the HTTP API, for orchestrators that probe over gRPC.
package grpchealth

import (
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service names reported besides the overall ("") status.
const (
	ServiceGate      = "lifetag.AccessGate"
	ServiceRetention = "lifetag.RetentionManager"
)

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New returns a health server with every service NOT_SERVING until
// SetServing is called.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	for _, svc := range []string{"", ServiceGate, ServiceRetention} {
		s.health.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// SetServing flips one service, or the whole server for "".
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", slog.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown reports NOT_SERVING for everything, then stops gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
