// Limiter watches a game window and toggles its frame-rate cap with key
// chords while the picture is static.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/GriffinCanCode/dynamic-fps/internal/config"
	"github.com/GriffinCanCode/dynamic-fps/internal/errors"
	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
	"github.com/GriffinCanCode/dynamic-fps/internal/input"
	"github.com/GriffinCanCode/dynamic-fps/internal/metrics"
	"github.com/GriffinCanCode/dynamic-fps/internal/orchestrator"
	"github.com/GriffinCanCode/dynamic-fps/internal/orchestrator/transitions"
	"github.com/GriffinCanCode/dynamic-fps/internal/resilience"
	"github.com/GriffinCanCode/dynamic-fps/internal/screen"
	"github.com/GriffinCanCode/dynamic-fps/internal/server"
	"github.com/GriffinCanCode/dynamic-fps/internal/similarity"
	"github.com/GriffinCanCode/dynamic-fps/internal/trace"
	"github.com/GriffinCanCode/dynamic-fps/internal/x11"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(2)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("limiter failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, _ = trace.EnsureContext(ctx)

	var session *x11.Session
	err := resilience.Retry(ctx, resilience.DisplayRetryConfig(), func() error {
		s, err := x11.Connect(cfg.Display)
		if err != nil {
			return errors.Wrap(err, errors.CodeDisplayUnavailable, "open display").WithMetadata("display", cfg.Display)
		}
		session = s
		return nil
	})
	if err != nil {
		return err
	}
	defer session.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	sc := cfg.Screen()
	sc.OnBreakerChange = mt.BreakerHook(sc.Breaker.Name)
	source := screen.NewX11(session, sc)
	defer source.Close()

	method, err := similarity.ParseMethod(cfg.HashMethod)
	if err != nil {
		return err
	}
	scorer, err := similarity.NewHashScorer(method)
	if err != nil {
		return err
	}

	chords, err := input.ParseChords(cfg.LowChord, cfg.HighChord)
	if err != nil {
		return err
	}
	var act hysteresis.Actuator
	if cfg.DryRun {
		act = input.NewDryRun(chords)
	} else {
		act = input.NewX11Actuator(session, chords)
	}

	journal := transitions.NewStore(cfg.JournalSize, orchestrator.JournalEventBuffer)
	health := server.NewHealth()
	mgr := orchestrator.New(orchestrator.Options{
		Target:              cfg.TargetWindow,
		CaptureRate:         cfg.CaptureRate,
		DiagnosticInterval:  cfg.Diagnostics(),
		ReassertOnReacquire: cfg.ReassertOnReacquire,
		Controller:          cfg.Controller(),
	}, source, scorer, act).
		WithJournal(journal).
		WithMetrics(mt).
		WithAcquireHook(health.SetAcquired)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if cfg.StatusAddr != "" {
		srv := server.New(mgr, journal, reg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.StatusAddr); err != nil {
				slog.Error("status server error", "error", err)
			}
		}()
	}
	if cfg.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := health.Serve(ctx, cfg.GRPCAddr); err != nil {
				slog.Error("grpc health error", "error", err)
			}
		}()
	}

	trace.Logger(ctx).Info("limiter starting",
		"target", cfg.TargetWindow,
		"hash", scorer.Method(),
		"period", cfg.Period(),
		"low_chord", chords.Low.String(),
		"high_chord", chords.High.String(),
		"dry_run", cfg.DryRun)

	err = mgr.Run(ctx)
	cancel()
	wg.Wait()
	return err
}
