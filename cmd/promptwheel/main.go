// Command promptwheel runs the speech-synchronized teleprompter scroll
// engine server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptwheel/promptwheel/internal/config"
	"github.com/promptwheel/promptwheel/internal/engine"
	"github.com/promptwheel/promptwheel/internal/health"
	"github.com/promptwheel/promptwheel/internal/observe"
	"github.com/promptwheel/promptwheel/internal/server"
	"github.com/promptwheel/promptwheel/pkg/report/postgres"
)

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "promptwheel: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "promptwheel: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	slog.Info("promptwheel starting",
		"config", *configPath,
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: metrics via the Prometheus bridge, traces recorded locally.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "promptwheel",
	})
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

	// Report store (optional).
	var checks []health.Check
	var serverOpts []server.Option
	if dsn := cfg.Report.PostgresDSN; dsn != "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect report store", "err", err)
			return 1
		}
		defer store.Close()
		serverOpts = append(serverOpts,
			server.WithStore(store),
		)
		checks = append(checks, health.Check{Name: "report_store", Probe: store.Ping})
		slog.Info("report store connected")
	} else {
		slog.Info("report.postgres_dsn is empty; session reports will not be persisted")
	}
	serverOpts = append(serverOpts, server.WithHealth(health.New(checks...)))

	// The config watcher keeps serving the last valid file; new sessions pick
	// up the latest engine settings and live sessions get the tunable subset.
	// The watcher is created after the server because its callback targets
	// the server; settings() is only called once sessions arrive.
	var watcher *config.Watcher
	settings := func() engine.Settings {
		return watcher.Current().Engine.Settings()
	}

	srv := server.New(addr, settings, serverOpts...)

	watcher, err = config.NewWatcher(*configPath, srv.OnConfigChange)
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

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
