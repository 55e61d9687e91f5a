package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/database"
	"github.com/luizacavalcantee/gestao-fiscal/internal/documents"
	"github.com/luizacavalcantee/gestao-fiscal/internal/firestoredb"
	"github.com/luizacavalcantee/gestao-fiscal/internal/repository"
	"github.com/luizacavalcantee/gestao-fiscal/internal/storage"
)

// OpenStore connects the document store selected by cfg.Driver and checks
// that it answers. The returned func releases its resources.
func OpenStore(ctx context.Context, log *slog.Logger, cfg config.StoreConfig) (documents.Store, func(), error) {
	var (
		store   documents.Store
		release = func() {}
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			results, err := database.Migrate(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			for _, r := range results {
				log.Info("migration applied", "version", r.Version, "source", r.Source)
			}
		}
		store, release = repository.NewDocumentRepository(pool), pool.Close

	case config.DriverFirestore:
		client, err := firestoredb.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, err
		}
		store = firestoredb.NewStore(client, cfg.FirestoreCollection)
		release = func() {
			if err := client.Close(); err != nil {
				log.Warn("close firestore client", "error", err)
			}
		}

	case config.DriverMemory:
		store = storage.NewMemoryStore()

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if err := store.Ping(ctx); err != nil {
		release()
		return nil, nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}
	log.Info("document store ready", "driver", cfg.Driver)
	return store, release, nil
}
