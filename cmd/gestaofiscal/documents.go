package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/luizacavalcantee/gestao-fiscal/internal/app"
	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/database"
	"github.com/luizacavalcantee/gestao-fiscal/internal/documents"
	"github.com/luizacavalcantee/gestao-fiscal/internal/samples"
)

// withStore loads configuration, opens the configured store and hands both
// to fn.
func withStore(ctx context.Context, fn func(*slog.Logger, *config.Config, documents.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)
	store, release, err := app.OpenStore(ctx, log, cfg.Store)
	if err != nil {
		return err
	}
	defer release()
	return fn(log, cfg, store)
}

// withEvents runs the configured event pipeline around fn and stops it once
// fn returns, so buffered in-process events are handled before the command
// exits.
func withEvents(ctx context.Context, log *slog.Logger, cfg *config.Config, fn func(documents.EventPublisher) error) error {
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

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- events.Run(runCtx) }()

	err = fn(events.Publisher)
	stop()
	if runErr := <-done; err == nil {
		err = runErr
	}
	return err
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, database.Migrate)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, database.Rollback)
			},
		},
	)
	return cmd
}

func migrate(cmd *cobra.Command, step func(context.Context, *pgxpool.Pool) ([]database.MigrationResult, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations apply to the postgres driver, not %q", cfg.Store.Driver)
	}
	pool, err := database.Connect(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer pool.Close()

	results, err := step(cmd.Context(), pool)
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", r.Version, r.Source)
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
	}
	return nil
}

func newSeedCmd() *cobra.Command {
	var times int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Capture the sample NFe and NFSe documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(log *slog.Logger, cfg *config.Config, store documents.Store) error {
				return withEvents(cmd.Context(), log, cfg, func(events documents.EventPublisher) error {
					intake := documents.NewIntakeService(log, store, events)
					for range times {
						for _, raw := range samples.All() {
							res, err := intake.Capture(cmd.Context(), raw)
							if err != nil {
								return err
							}
							fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.ID, res.Document.Tipo, res.Document.Numero)
						}
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().IntVarP(&times, "times", "n", 1, "How many copies of each sample to capture")
	return cmd
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List documents waiting for manual review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(log *slog.Logger, _ *config.Config, store documents.Store) error {
				docs, err := documents.NewReviewService(log, store).ListPendingReview(cmd.Context())
				if err != nil {
					return err
				}
				for _, d := range docs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", d.ID, d.Tipo, d.Numero, d.ValorTotal.StringFixed(2))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", len(docs))
				return nil
			})
		},
	}
}

func newApproveCmd() *cobra.Command {
	var aprovador string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Mark a document ready for payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(log *slog.Logger, cfg *config.Config, store documents.Store) error {
				return withEvents(cmd.Context(), log, cfg, func(events documents.EventPublisher) error {
					svc := documents.NewApprovalService(log, store, events, documents.ApprovalConfig{
						DefaultApprover:   cfg.Workflow.DefaultApprover,
						StrictTransitions: cfg.Workflow.StrictTransitions,
					})
					res, err := svc.Approve(cmd.Context(), args[0], aprovador)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.ID, res.Status, res.Aprovador)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&aprovador, "aprovador", "", "Name recorded as the approver")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Describe the environment variables the services read",
		RunE: func(cmd *cobra.Command, _ []string) error {
			usage, err := config.Usage()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), usage)
			return nil
		},
	}
}
