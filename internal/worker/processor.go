// Package worker handles workflow events off the queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/hibiken/asynq"

	"github.com/luizacavalcantee/gestao-fiscal/internal/queue"
)

// archiver stores the original request body of a captured document.
type archiver interface {
	ArchivePayload(ctx context.Context, id string, raw []byte) error
}

// Processor is plugged into the asynq worker loop and the in-process
// dispatcher alike.
type Processor struct {
	archive archiver
	log     *slog.Logger
}

// NewProcessor constructs a worker processor. archive may be nil, in which
// case captured payloads are not archived.
func NewProcessor(log *slog.Logger, archive archiver) *Processor {
	return &Processor{archive: archive, log: log.With("component", "worker")}
}

// Handler registers one asynq handler per event type.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.EventCaptured, p.handleTask)
	mux.HandleFunc(queue.EventApproved, p.handleTask)
	return mux
}

func (p *Processor) handleTask(ctx context.Context, task *asynq.Task) error {
	e, err := queue.Decode(task.Payload())
	if err != nil {
		// Malformed payloads are not retried.
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return p.HandleEvent(ctx, e)
}

// HandleEvent processes one workflow event.
func (p *Processor) HandleEvent(ctx context.Context, e cloudevents.Event) error {
	switch e.Type() {
	case queue.EventCaptured:
		return p.handleCaptured(ctx, e)
	case queue.EventApproved:
		return p.handleApproved(e)
	default:
		p.log.Warn("unknown event type", "type", e.Type(), "event_id", e.ID())
		return nil
	}
}

func (p *Processor) handleCaptured(ctx context.Context, e cloudevents.Event) error {
	data, err := queue.CapturedFrom(e)
	if err != nil {
		return err
	}
	if p.archive == nil {
		p.log.Debug("archive disabled, skipping payload", "id", data.ID)
		return nil
	}
	if err := p.archive.ArchivePayload(ctx, data.ID, data.Payload); err != nil {
		p.log.Error("archive payload failed", "id", data.ID, "error", err)
		return err
	}
	p.log.Info("payload archived", "id", data.ID, "tipo_documento", data.Tipo, "bytes", len(data.Payload))
	return nil
}

func (p *Processor) handleApproved(e cloudevents.Event) error {
	data, err := queue.ApprovedFrom(e)
	if err != nil {
		return err
	}
	p.log.Info("document ready for payment",
		"id", data.ID,
		"status", data.Status,
		"aprovador", data.Aprovador,
		"data_aprovacao", data.DataAprovacao,
	)
	return nil
}
