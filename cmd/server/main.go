// Command server runs the fiscal document HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/luizacavalcantee/gestao-fiscal/internal/api"
	"github.com/luizacavalcantee/gestao-fiscal/internal/app"
	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/documents"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg *config.Config) error {
	store, release, err := app.OpenStore(ctx, log, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer release()

	archive, err := app.OpenArchive(ctx, log, cfg.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	events := app.NewEvents(log, cfg.Queue, archive)
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn("close event publisher", "error", err)
		}
	}()

	deps := api.Deps{
		Intake: documents.NewIntakeService(log, store, events.Publisher),
		Review: documents.NewReviewService(log, store),
		Approval: documents.NewApprovalService(log, store, events.Publisher, documents.ApprovalConfig{
			DefaultApprover:   cfg.Workflow.DefaultApprover,
			StrictTransitions: cfg.Workflow.StrictTransitions,
		}),
		DB:      store,
		Version: app.Version,
	}
	if archive != nil {
		deps.Archive = archive
	}
	srv := api.New(log, cfg.Server, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return events.Run(gctx) })
	return g.Wait()
}
