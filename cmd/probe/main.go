// Probe asks a running limiter whether it has found its target window. It
// exits 0 when the health service reports SERVING, 1 otherwise.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/dynamic-fps/internal/config"
	"github.com/GriffinCanCode/dynamic-fps/internal/grpcclient"
	"github.com/GriffinCanCode/dynamic-fps/internal/server"
	"github.com/GriffinCanCode/dynamic-fps/internal/trace"
)

func main() {
	watch := flag.Bool("watch", false, "stream status changes until interrupted")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if cfg.GRPCAddr == "" {
		slog.Error("GRPC_ADDR is not set")
		os.Exit(2)
	}

	client, err := grpcclient.New(cfg.GRPCAddr, grpcclient.DefaultConfig())
	if err != nil {
		slog.Error("failed to create client", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	ctx, _ := trace.EnsureContext(context.Background())
	log := trace.Logger(ctx)

	if *watch {
		err := client.Watch(ctx, server.HealthService, func(st healthpb.HealthCheckResponse_ServingStatus) {
			log.Info("limiter status", "status", st.String())
		})
		if err != nil {
			log.Error("watch failed", "error", err)
			os.Exit(1)
		}
		return
	}

	st, err := client.Check(ctx, server.HealthService)
	if err != nil {
		log.Error("health check failed", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	log.Info("limiter status", "status", st.String())
	if st != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
