// Command callyx is the main entry point for the Callyx IVR navigation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/callyx/internal/backend"
	"github.com/MrWong99/callyx/internal/call"
	"github.com/MrWong99/callyx/internal/carrier"
	"github.com/MrWong99/callyx/internal/config"
	"github.com/MrWong99/callyx/internal/engine"
	"github.com/MrWong99/callyx/internal/health"
	"github.com/MrWong99/callyx/internal/intent"
	"github.com/MrWong99/callyx/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "callyx: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "callyx: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("callyx starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "callyx"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Result sink (optional) ────────────────────────────────────────────────
	var sink engine.ResultSink
	var backendClient *backend.Client
	if cfg.Backend.BaseURL != "" {
		backendClient, err = backend.NewClient(cfg.Backend.BaseURL,
			backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout.Std()}),
		)
		if err != nil {
			slog.Error("failed to create backend client", "err", err)
			return 1
		}
		sink = backendClient
		slog.Info("backend sink configured", "base_url", cfg.Backend.BaseURL)
	} else {
		slog.Warn("no backend configured — call results will only be logged")
	}

	// ── Decision pipeline ─────────────────────────────────────────────────────
	policy := call.DefaultPolicy()
	if cfg.Policy.MaxMenuRetries > 0 {
		policy.MaxMenuRetries = cfg.Policy.MaxMenuRetries
	}
	if cfg.Policy.MaxInfoRetries > 0 {
		policy.MaxInfoRetries = cfg.Policy.MaxInfoRetries
	}
	if cfg.Policy.MaxUncertainTotal > 0 {
		policy.MaxUncertainTotal = cfg.Policy.MaxUncertainTotal
	}
	if cfg.Navigation.RepeatDigit != "" {
		policy.RepeatDigit = cfg.Navigation.RepeatDigit
	}

	nav := call.NavigationPlan{
		SubmenuDigit: cfg.Navigation.SubmenuDigit,
		StatusDigit:  cfg.Navigation.StatusDigit,
	}

	classifier := intent.New(intent.NewMatcher())
	machine := call.NewMachine(policy, nav)
	eng := engine.New(classifier, machine, sink, metrics)

	// ── HTTP routes ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle(cfg.Carrier.RelayPath, carrier.NewRelay(eng))
	mux.Handle("GET /metrics", promhttp.Handler())

	var checkers []health.Checker
	if backendClient != nil {
		checkers = append(checkers, health.Checker{Name: "backend", Check: backendClient.Ping})
	}
	health.New(eng.ActiveCalls, checkers...).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := eng.RunSweeper(gctx, cfg.Sweep.Interval.Std(), cfg.Sweep.IdleTimeout.Std())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
