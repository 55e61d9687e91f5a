package app

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/luizacavalcantee/gestao-fiscal/internal/config"
	"github.com/luizacavalcantee/gestao-fiscal/internal/documents"
	"github.com/luizacavalcantee/gestao-fiscal/internal/processing"
	"github.com/luizacavalcantee/gestao-fiscal/internal/queue"
	"github.com/luizacavalcantee/gestao-fiscal/internal/s3storage"
	"github.com/luizacavalcantee/gestao-fiscal/internal/worker"
)

// OpenArchive returns the payload archive, or nil when archiving is disabled.
// The bucket is created if missing.
func OpenArchive(ctx context.Context, log *slog.Logger, cfg config.ArchiveConfig) (*s3storage.Storage, error) {
	if !cfg.Enabled() {
		log.Info("payload archive disabled")
		return nil, nil
	}
	archive, err := s3storage.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("payload archive ready", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return archive, nil
}

// Events is the workflow event pipeline of the API process: an asynq
// publisher when Redis is configured, an in-process dispatcher otherwise.
type Events struct {
	Publisher documents.EventPublisher

	client     *asynq.Client
	dispatcher *processing.Dispatcher
}

// NewEvents builds the pipeline. archive may be nil.
func NewEvents(log *slog.Logger, cfg config.QueueConfig, archive *s3storage.Storage) *Events {
	if cfg.Enabled() {
		client := asynq.NewClient(queue.RedisOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
		log.Info("publishing events to redis", "addr", cfg.RedisAddr)
		return &Events{Publisher: queue.NewPublisher(client, cfg.MaxRetry), client: client}
	}

	proc := NewWorkerProcessor(log, archive)
	d := processing.New(log, proc.HandleEvent, cfg.Concurrency, cfg.BufferSize)
	log.Info("handling events in process", "workers", cfg.Concurrency)
	return &Events{Publisher: d, dispatcher: d}
}

// NewWorkerProcessor builds the event handler, leaving archiving off when
// archive is nil.
func NewWorkerProcessor(log *slog.Logger, archive *s3storage.Storage) *worker.Processor {
	if archive == nil {
		return worker.NewProcessor(log, nil)
	}
	return worker.NewProcessor(log, archive)
}

// Run drives the in-process dispatcher until ctx is done.
func (e *Events) Run(ctx context.Context) error {
	if e.dispatcher != nil {
		e.dispatcher.Start(ctx)
		defer e.dispatcher.Wait()
	}
	<-ctx.Done()
	return nil
}

// Close releases the Redis client.
func (e *Events) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
