package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"classroll/internal/app"
	"classroll/internal/config"
	"classroll/internal/worker"
)

// Worker consumes roster_saved messages and creates absence alerts.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != config.BackendRedis {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "worker")
	if err := worker.New(a.Queue, a.Alerter, logger).Run(ctx); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}
