package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"relief.org/internal/obs"
)

// GRPCServer exposes the standard gRPC health service. Check for the overall
// server ("") and for serviceName evaluates readiness on every call.
type GRPCServer struct {
	*health.Server
	readiness readinessChecker
}

func NewGRPCServer(r readinessChecker) *GRPCServer {
	if r == nil {
		r = ReadyCheck{}
	}
	return &GRPCServer{Server: health.NewServer(), readiness: r}
}

// Register attaches the health service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s)
}

func (s *GRPCServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", serviceName:
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.readiness.Check(ctx); err != nil {
		obs.Logger().Warn("grpc readiness check failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.SetServingStatus(req.GetService(), st)
	return &healthpb.HealthCheckResponse{Status: st}, nil
}
