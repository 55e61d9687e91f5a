// Package processing runs workflow event handlers on an in-process worker
// pool. It stands in for the Redis queue when none is configured.
package processing

import (
	"context"
	"log/slog"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
	"github.com/luizacavalcantee/gestao-fiscal/internal/queue"
)

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, e cloudevents.Event) error

// Dispatcher queues events on a buffered channel consumed by a fixed number
// of goroutines. It implements the document services' event publisher.
type Dispatcher struct {
	handle  HandlerFunc
	queue   chan cloudevents.Event
	workers int
	log     *slog.Logger
	wg      sync.WaitGroup
}

// New builds a Dispatcher. A non-positive buffer defaults to workers*4.
func New(log *slog.Logger, handle HandlerFunc, workers, buffer int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = workers * 4
	}
	return &Dispatcher{
		handle:  handle,
		queue:   make(chan cloudevents.Event, buffer),
		workers: workers,
		log:     log.With("component", "dispatcher"),
	}
}

// Start launches the worker goroutines. When ctx is cancelled they handle the
// events still buffered and exit.
func (d *Dispatcher) Start(ctx context.Context) {
	for range d.workers {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// DocumentCaptured queues EventCaptured.
func (d *Dispatcher) DocumentCaptured(_ context.Context, doc *model.Document, raw []byte) error {
	e, err := queue.NewCapturedEvent(doc, raw)
	if err != nil {
		return err
	}
	d.Submit(e)
	return nil
}

// DocumentApproved queues EventApproved.
func (d *Dispatcher) DocumentApproved(_ context.Context, id string, u model.StatusUpdate) error {
	e, err := queue.NewApprovedEvent(id, u)
	if err != nil {
		return err
	}
	d.Submit(e)
	return nil
}

// Submit queues e without blocking. It reports false and drops the event
// when the buffer is full.
func (d *Dispatcher) Submit(e cloudevents.Event) bool {
	select {
	case d.queue <- e:
		return true
	default:
		d.log.Warn("dispatch queue full, dropping event", "type", e.Type(), "subject", e.Subject())
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return
		case e := <-d.queue:
			d.process(ctx, e)
		}
	}
}

// drain handles whatever is still buffered once shutdown begins.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case e := <-d.queue:
			d.process(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, e cloudevents.Event) {
	if err := d.handle(ctx, e); err != nil {
		d.log.Error("event handler failed", "type", e.Type(), "subject", e.Subject(), "error", err)
	}
}
