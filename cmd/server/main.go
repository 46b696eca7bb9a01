package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aslmarket/aslmatch/internal/api"
	"github.com/aslmarket/aslmatch/internal/app"
	"github.com/aslmarket/aslmatch/internal/auth"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	return ln.Close()
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	if cfg.Auth.JWTSecret == "" && !cfg.Auth.TrustGatewayHeaders {
		fatal("auth not configured", errors.New("set auth.jwt_secret (or JWT_SECRET) or enable auth.trust_gateway_headers"))
	}
	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		fatal("pre-flight check failed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("failed to initialize services", err)
	}
	defer a.Close()

	a.StartDelivery()
	go a.ExpirySweeper().Start(ctx)
	if a.UsesAsynq() {
		logger.Info("notifications are delivered by cmd/worker", "queue", cfg.Notifications.Queue)
	}

	server := api.NewServer(cfg, a.Services(), auth.NewManager(cfg.Auth), api.NewHealthChecker(a.HealthDeps()))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("api server listening", "addr", server.Addr(), "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
