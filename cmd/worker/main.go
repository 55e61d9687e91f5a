// Command worker consumes workflow events from Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/luizacavalcantee/gestao-fiscal/internal/app"
	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.Log)

	if !cfg.Queue.Enabled() {
		log.Error("REDIS_ADDR is required to run the worker")
		os.Exit(1)
	}

	archive, err := app.OpenArchive(ctx, log, cfg.Archive)
	if err != nil {
		log.Error("open archive", "error", err)
		os.Exit(1)
	}

	server := asynq.NewServer(queue.RedisOpt(cfg.Queue.RedisAddr, cfg.Queue.RedisPassword, cfg.Queue.RedisDB), asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
	})
	processor := app.NewWorkerProcessor(log, archive)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("worker started", "redis", cfg.Queue.RedisAddr, "concurrency", cfg.Queue.Concurrency)
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
