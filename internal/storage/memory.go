// Package storage contains the in-memory document store used for local runs
// and tests.
package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// MemoryStore keeps documents in a map guarded by an RWMutex. Listings come
// back in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*model.Document
	order []string
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*model.Document),
	}
}

// Insert stores a copy of d under a fresh identifier.
func (m *MemoryStore) Insert(ctx context.Context, d *model.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", model.StorageError("memory insert", err)
	}

	rec := d.Clone()
	rec.ID = uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return rec.ID, nil
}

// FindMany returns copies of the matching documents.
func (m *MemoryStore) FindMany(ctx context.Context, f model.Filter) ([]*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.StorageError("memory find", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Document, 0)
	for _, id := range m.order {
		if rec := m.docs[id]; f.Match(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// UpdateStatusFields applies u to the stored document. Unknown ids match 0.
func (m *MemoryStore) UpdateStatusFields(ctx context.Context, id string, u model.StatusUpdate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.StorageError("memory update", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return 0, nil
	}
	u.Apply(rec)
	return 1, nil
}

// Get returns a copy of the stored document.
func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.StorageError("memory get", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.Clone(), nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns how many documents are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
