package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/presencekit/session-broker/internal/broker"
	"github.com/presencekit/session-broker/internal/config"
	"github.com/presencekit/session-broker/internal/httpserver"
	"github.com/presencekit/session-broker/internal/metrics"
	"github.com/presencekit/session-broker/internal/opentok"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	// Local runs keep credentials in a .env file; absence is fine, the
	// environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting session-broker",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"provider_api_url", cfg.ProviderAPIURL,
		"provider_timeout", cfg.ProviderTimeout,
		"token_ttl", cfg.TokenTTL,
		"presence_session_set", cfg.PresenceSessionID != "",
		"allowed_origins", len(cfg.AllowedOrigins),
	)

	provider, err := opentok.NewClient(opentok.ClientConfig{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.ProviderAPIURL,
		TokenTTL:  cfg.TokenTTL,
	})
	if err != nil {
		logger.Error("failed to configure provider client", "err", err)
		os.Exit(2)
	}

	// Establish the legacy page's session before accepting traffic. This
	// doubles as the provider reachability check: if the provider is down or
	// the credentials are wrong, fail here rather than on the first request.
	startupCtx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout)
	defaultSessionID, err := provider.CreateSession(startupCtx)
	cancel()
	if err != nil {
		logger.Error("failed to create default session", "err", err)
		os.Exit(1)
	}

	// The configured presence session must be mintable, otherwise every
	// /users request would fail; verify once with a throwaway token.
	if _, err := provider.GenerateToken(cfg.PresenceSessionID, opentok.TokenOptions{
		Role: opentok.RoleSubscriber,
	}); err != nil {
		logger.Error("presence session rejected by provider", "err", err)
		os.Exit(1)
	}

	b, err := broker.New(broker.Config{
		APIKey:            cfg.APIKey,
		PresenceSessionID: cfg.PresenceSessionID,
		DefaultSessionID:  defaultSessionID,
		ProviderTimeout:   cfg.ProviderTimeout,
	}, provider, logger)
	if err != nil {
		logger.Error("failed to construct broker", "err", err)
		os.Exit(2)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built})

	b.RegisterRoutes(srv.Mux())
	srv.Mux().Handle("GET /metrics", metrics.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the
	// Go build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
