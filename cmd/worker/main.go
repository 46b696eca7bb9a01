package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aslmarket/aslmatch/internal/app"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
	"github.com/aslmarket/aslmatch/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
	logger.Info("starting notification worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if !a.UsesAsynq() {
		logger.Error("worker requires the asynq queue", "error", errors.New("set notifications.queue=asynq and redis.addr"))
		os.Exit(1)
	}

	sweeper := a.ExpirySweeper()
	go sweeper.Start(ctx)

	opt := worker.RedisOpt(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	srv, mux := worker.NewDeliveryServer(opt, a.Deliverer, a.RetryPolicy(), cfg.Notifications.Workers)
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start delivery server", "error", err)
		os.Exit(1)
	}
	logger.Info("delivery server started", "queue", worker.NotificationQueue, "concurrency", cfg.Notifications.Workers)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down worker")
	cancel()
	srv.Shutdown()

	runs, expired := sweeper.Stats()
	logger.Info("worker stopped", "sweeps", runs, "expired", expired)
}
