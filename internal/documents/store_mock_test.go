package documents

import (
	"context"
	"sync"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

var _ Store = &storeMock{}

type storeMock struct {
	InsertFunc             func(ctx context.Context, d *model.Document) (string, error)
	FindManyFunc           func(ctx context.Context, f model.Filter) ([]*model.Document, error)
	UpdateStatusFieldsFunc func(ctx context.Context, id string, u model.StatusUpdate) (int64, error)
	GetFunc                func(ctx context.Context, id string) (*model.Document, error)
	PingFunc               func(ctx context.Context) error

	calls struct {
		Insert []struct {
			D *model.Document
		}
		FindMany []struct {
			F model.Filter
		}
		UpdateStatusFields []struct {
			ID string
			U  model.StatusUpdate
		}
		Get []struct {
			ID string
		}
		Ping []struct{}
	}
	lock sync.RWMutex
}

func (mock *storeMock) Insert(ctx context.Context, d *model.Document) (string, error) {
	if mock.InsertFunc == nil {
		panic("storeMock.InsertFunc: method is nil but Store.Insert was just called")
	}
	mock.lock.Lock()
	mock.calls.Insert = append(mock.calls.Insert, struct{ D *model.Document }{D: d})
	mock.lock.Unlock()
	return mock.InsertFunc(ctx, d)
}

func (mock *storeMock) InsertCalls() []struct{ D *model.Document } {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.Insert
}

func (mock *storeMock) FindMany(ctx context.Context, f model.Filter) ([]*model.Document, error) {
	if mock.FindManyFunc == nil {
		panic("storeMock.FindManyFunc: method is nil but Store.FindMany was just called")
	}
	mock.lock.Lock()
	mock.calls.FindMany = append(mock.calls.FindMany, struct{ F model.Filter }{F: f})
	mock.lock.Unlock()
	return mock.FindManyFunc(ctx, f)
}

func (mock *storeMock) FindManyCalls() []struct{ F model.Filter } {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.FindMany
}

func (mock *storeMock) UpdateStatusFields(ctx context.Context, id string, u model.StatusUpdate) (int64, error) {
	if mock.UpdateStatusFieldsFunc == nil {
		panic("storeMock.UpdateStatusFieldsFunc: method is nil but Store.UpdateStatusFields was just called")
	}
	mock.lock.Lock()
	mock.calls.UpdateStatusFields = append(mock.calls.UpdateStatusFields, struct {
		ID string
		U  model.StatusUpdate
	}{ID: id, U: u})
	mock.lock.Unlock()
	return mock.UpdateStatusFieldsFunc(ctx, id, u)
}

func (mock *storeMock) UpdateStatusFieldsCalls() []struct {
	ID string
	U  model.StatusUpdate
} {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.UpdateStatusFields
}

func (mock *storeMock) Get(ctx context.Context, id string) (*model.Document, error) {
	if mock.GetFunc == nil {
		panic("storeMock.GetFunc: method is nil but Store.Get was just called")
	}
	mock.lock.Lock()
	mock.calls.Get = append(mock.calls.Get, struct{ ID string }{ID: id})
	mock.lock.Unlock()
	return mock.GetFunc(ctx, id)
}

func (mock *storeMock) GetCalls() []struct{ ID string } {
	mock.lock.RLock()
	defer mock.lock.RUnlock()
	return mock.calls.Get
}

func (mock *storeMock) Ping(ctx context.Context) error {
	if mock.PingFunc == nil {
		panic("storeMock.PingFunc: method is nil but Store.Ping was just called")
	}
	mock.lock.Lock()
	mock.calls.Ping = append(mock.calls.Ping, struct{}{})
	mock.lock.Unlock()
	return mock.PingFunc(ctx)
}

var _ EventPublisher = &publisherMock{}

// publisherMock records published events and returns err for each of them.
type publisherMock struct {
	err error

	mu       sync.Mutex
	captured []string
	approved []model.StatusUpdate
	raws     [][]byte
}

func (p *publisherMock) DocumentCaptured(_ context.Context, d *model.Document, raw []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured = append(p.captured, d.ID)
	p.raws = append(p.raws, raw)
	return p.err
}

func (p *publisherMock) DocumentApproved(_ context.Context, _ string, u model.StatusUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved = append(p.approved, u)
	return p.err
}
