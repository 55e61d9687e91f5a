// Package documents implements the intake, review and approval use cases on
// top of a document store.
package documents

import (
	"context"
	"time"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// Store is the persistence gateway every backend implements.
type Store interface {
	// Insert persists d and returns the identifier assigned by the store.
	Insert(ctx context.Context, d *model.Document) (string, error)
	// FindMany returns the documents matching f, or an empty slice.
	FindMany(ctx context.Context, f model.Filter) ([]*model.Document, error)
	// UpdateStatusFields applies u to the document with the given id and
	// returns how many documents matched. Unknown or malformed ids match 0.
	UpdateStatusFields(ctx context.Context, id string, u model.StatusUpdate) (int64, error)
	// Get returns model.ErrNotFound when no document has the given id.
	Get(ctx context.Context, id string) (*model.Document, error)
	Ping(ctx context.Context) error
}

// EventPublisher announces workflow events to asynchronous consumers.
type EventPublisher interface {
	DocumentCaptured(ctx context.Context, d *model.Document, raw []byte) error
	DocumentApproved(ctx context.Context, id string, u model.StatusUpdate) error
}

type nopPublisher struct{}

func (nopPublisher) DocumentCaptured(context.Context, *model.Document, []byte) error { return nil }

func (nopPublisher) DocumentApproved(context.Context, string, model.StatusUpdate) error {
	return nil
}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func utcNow() time.Time { return time.Now().UTC() }
