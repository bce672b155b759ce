package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/trace"
)

// Health reports target acquisition through the standard gRPC health
// service: SERVING while the target window is found.
type Health struct {
	hs          *health.Server
	srv         *grpc.Server
	stopTimeout time.Duration
}

// NewHealth creates the health service in NOT_SERVING state.
func NewHealth() *Health {
	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	)
	healthpb.RegisterHealthServer(srv, hs)
	return &Health{hs: hs, srv: srv, stopTimeout: ShutdownTimeout}
}

// SetAcquired implements the manager's acquire hook.
func (h *Health) SetAcquired(acquired bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if acquired {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.hs.SetServingStatus(HealthService, st)
}

// Check returns the current status of the limiter service.
func (h *Health) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.hs.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve accepts gRPC connections on addr until ctx is done.
func (h *Health) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "listen for grpc").WithMetadata("addr", addr)
	}
	return h.serve(ctx, lis)
}

func (h *Health) serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.srv.Serve(lis) }()
	slog.Info("grpc health listening", "addr", lis.Addr().String(), "service", HealthService)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	h.hs.Shutdown()
	h.stop()
	return nil
}

// stop drains unary calls gracefully. Watch streams never end on their own,
// so after stopTimeout the remaining connections are closed.
func (h *Health) stop() {
	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(h.stopTimeout):
		slog.Warn("grpc graceful stop timed out, closing connections", "timeout", h.stopTimeout)
		h.srv.Stop()
		<-done
	}
}
