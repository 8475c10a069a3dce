// Command deepfocus is the hybrid routing decision engine server. It answers
// chat requests by classifying each one onto the on-device or cloud tier,
// auditing local confidence, and falling forward to the cloud when the local
// attempt is rejected.
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

	"github.com/deepfocus-ai/deepfocus/internal/config"
	"github.com/deepfocus-ai/deepfocus/internal/health"
	"github.com/deepfocus-ai/deepfocus/internal/library"
	"github.com/deepfocus-ai/deepfocus/internal/observe"
	"github.com/deepfocus-ai/deepfocus/internal/providers"
	"github.com/deepfocus-ai/deepfocus/internal/resilience"
	"github.com/deepfocus-ai/deepfocus/internal/router"
	"github.com/deepfocus-ai/deepfocus/internal/server"
	"github.com/deepfocus-ai/deepfocus/internal/tools"
)

// version is overridden at build time via -ldflags.
var version = "dev"

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
			fmt.Fprintf(os.Stderr, "deepfocus: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "deepfocus: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("deepfocus starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	providers.RegisterBuiltin(reg)

	local, err := reg.CreateBackend(cfg.Backends.Local)
	if err != nil {
		slog.Error("failed to create local backend", "provider", cfg.Backends.Local.Provider, "err", err)
		return 1
	}
	cloudRaw, err := reg.CreateBackend(cfg.Backends.Cloud)
	if err != nil {
		slog.Error("failed to create cloud backend", "provider", cfg.Backends.Cloud.Provider, "err", err)
		return 1
	}
	cloud := resilience.WrapBackend(cloudRaw, resilience.CircuitBreakerConfig{})
	slog.Info("backends ready",
		"local", cfg.Backends.Local.Provider+"/"+cfg.Backends.Local.Model,
		"cloud", cfg.Backends.Cloud.Provider+"/"+cfg.Backends.Cloud.Model,
	)

	// ── Library ───────────────────────────────────────────────────────────────
	libOpts := []library.Option{
		library.WithMaxFileSize(cfg.Library.MaxFileSize),
	}
	var semantic *library.Semantic
	if cfg.Library.PostgresDSN != "" {
		embedder, err := reg.CreateEmbeddings(cfg.Library.Embeddings)
		if err != nil {
			slog.Error("failed to create embeddings provider", "provider", cfg.Library.Embeddings.Provider, "err", err)
			return 1
		}
		semantic, err = library.NewSemantic(ctx, cfg.Library.PostgresDSN, embedder, cfg.Library.EmbeddingDimensions)
		if err != nil {
			slog.Error("failed to connect semantic index", "err", err)
			return 1
		}
		defer semantic.Close()
		libOpts = append(libOpts, library.WithSemantic(semantic))
		slog.Info("semantic index connected",
			"embeddings", cfg.Library.Embeddings.Provider+"/"+cfg.Library.Embeddings.Model,
			"dimensions", cfg.Library.EmbeddingDimensions,
		)
	}
	lib := library.New(cfg.Library.Root, libOpts...)

	// ── Router, tools, server ─────────────────────────────────────────────────
	rt := router.New(local, cloud, router.PolicyFromConfig(cfg.Routing))

	registry := tools.NewRegistry(append(tools.FinanceTools(), library.SearchHubTool(lib, cloud))...)

	checkers := []health.Checker{health.BreakerCheck("cloud_breaker", cloud)}
	if semantic != nil {
		checkers = append(checkers, health.StoreCheck("library_store", semantic))
	}

	srvOpts := []server.Option{server.WithHealth(health.New(checkers...))}
	if cfg.Server.TLS != nil {
		srvOpts = append(srvOpts, server.WithTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile))
	}
	srv := server.New(cfg.Server.ListenAddr, rt, registry, lib, srvOpts...)

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Changed() {
			return
		}
		if d.RoutingChanged {
			rt.UpdatePolicy(router.PolicyFromConfig(new.Routing))
			slog.Info("routing policy reloaded")
		}
		if d.LogLevelChanged {
			slog.SetDefault(newLogger(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.LibraryRootChanged {
			if err := lib.SetRoot(d.NewLibraryRoot); err != nil {
				slog.Warn("library root change rejected", "err", err)
			} else {
				slog.Info("library root changed", "root", d.NewLibraryRoot)
			}
		}
		for _, field := range d.RestartRequired {
			slog.Warn("config change requires restart", "field", field)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Serve ─────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listener error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
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
