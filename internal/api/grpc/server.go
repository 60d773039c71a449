// Package grpc serves the standard gRPC health protocol next to the HTTP
// API so orchestrators can probe the process.
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"bizops-backend/internal/api/grpc/interceptor"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/security"
)

// ServiceName is the health service name reported for the API.
const ServiceName = "bizops.v1.API"

// Pinger reports whether the backing store is reachable.
type Pinger func(ctx context.Context) error

type Server struct {
	*grpc.Server
	health *health.Server
	ping   Pinger
}

func NewServer(tm security.TokenManager, ping Pinger) *Server {
	auth := interceptor.NewAuthInterceptor(tm)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptor.Logging(), auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Register reflection service for grpcurl
	reflection.Register(s)
	return &Server{Server: s, health: hs, ping: ping}
}

// Probe updates the served status from one store ping.
func (s *Server) Probe(ctx context.Context) {
	if s.ping == nil {
		return
	}
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.ping(ctx); err != nil {
		logger.Warn("Store health probe failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Watch probes the store every interval until ctx ends.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}
