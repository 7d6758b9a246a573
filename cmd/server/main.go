// Command server runs the Iceberg catalog gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"icegate/internal/api"
	"icegate/internal/catalogcache"
	"icegate/internal/config"
	"icegate/internal/middleware"
	"icegate/internal/provider"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// A provider that cannot be loaded or initialised is fatal.
	catalogs, err := provider.Open(ctx, cfg.Provider, cfg.ProviderProperties(), provider.Options{
		Logger: logger.With("component", "provider"),
	})
	if err != nil {
		return err
	}

	cache := catalogcache.New(catalogs, catalogcache.Options{
		TTL:    cfg.CacheTTL(),
		Logger: logger.With("component", "catalogcache"),
	})
	cache.Start()

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	defer limiter.Close()

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(api.NewHandler(cache, logger), api.RouterConfig{
			Logger:      logger.With("component", "http"),
			RateLimiter: limiter,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalog gateway listening",
			"addr", cfg.ListenAddr,
			"provider", provider.Resolve(cfg.Provider),
			"ttl", cfg.CacheTTL(),
		)
		logger.Info(fmt.Sprintf("try: curl http://%s/v1/namespaces", curlHostForListenAddr(cfg.ListenAddr)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests before closing the handles they use.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := cache.Shutdown(shutdownCtx); err != nil {
		logger.Warn("catalog cache shutdown", "error", err)
	}
	logger.Info("catalog gateway stopped")
	return serveErr
}

// curlHostForListenAddr turns a listen address into a host:port a local
// client can reach.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8181"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
