package queue

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/hibiken/asynq"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// enqueuer is the part of *asynq.Client the publisher needs.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues workflow events as asynq tasks. The task type is the
// event type and the payload is the CloudEvents JSON document.
type Publisher struct {
	client   enqueuer
	maxRetry int
}

// NewPublisher wraps an asynq client.
func NewPublisher(client enqueuer, maxRetry int) *Publisher {
	return &Publisher{client: client, maxRetry: maxRetry}
}

// RedisOpt builds the asynq connection options.
func RedisOpt(addr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: addr, Password: password, DB: db}
}

// DocumentCaptured enqueues EventCaptured.
func (p *Publisher) DocumentCaptured(ctx context.Context, d *model.Document, raw []byte) error {
	e, err := NewCapturedEvent(d, raw)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, e)
}

// DocumentApproved enqueues EventApproved.
func (p *Publisher) DocumentApproved(ctx context.Context, id string, u model.StatusUpdate) error {
	e, err := NewApprovedEvent(id, u)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, e)
}

func (p *Publisher) enqueue(ctx context.Context, e cloudevents.Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	task := asynq.NewTask(e.Type(), data)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.MaxRetry(p.maxRetry), asynq.TaskID(e.ID())); err != nil {
		return fmt.Errorf("enqueue %s: %w", e.Type(), err)
	}
	return nil
}
