package server

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/gridpath/internal/monitoring"
)

// ServiceName is the name reported by the health service alongside the
// overall "" entry.
const ServiceName = "gridpath.Grid"

// HealthServer runs the standard gRPC health service so orchestrators can
// probe the grid listener.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewHealthServer returns a health server reporting NOT_SERVING until
// SetServing is called.
func NewHealthServer() *HealthServer {
	h := &HealthServer{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.SetServing(false)
	return h
}

// SetServing flips both the overall and the grid service status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Serve answers health checks on lis until ctx is cancelled. Watchers are
// told NOT_SERVING before the server stops.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		h.health.Shutdown()
		h.grpc.GracefulStop()
	})
	defer stop()

	monitoring.Logf("gRPC health service listening on %s", lis.Addr())
	err := h.grpc.Serve(lis)
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
